package pattern

import (
	"github.com/mna/pez/bytecode"
	"github.com/mna/pez/internal/cfg"
)

// DetectTry implements spec.md §4.3's TryPattern detection, extracted
// from exception edges (3.11+) or from the SETUP_* stack (earlier), per
// spec.md §4.1/§4.3.
func DetectTry(x Ctx, b cfg.BlockId) (*TryPattern, bool) {
	blk := x.block(b)

	var handlers []cfg.BlockId
	for _, e := range blk.Out {
		if e.Kind == cfg.Exception {
			handlers = append(handlers, e.Target)
		}
	}
	if len(handlers) == 0 {
		return nil, false
	}

	p := &TryPattern{TryBlock: b}
	seen := map[cfg.BlockId]bool{}
	for _, h := range handlers {
		if seen[h] {
			continue
		}
		seen[h] = true
		p.Handlers = append(p.Handlers, classifyHandler(x, h))
	}

	pd := x.Dom.PostDom()
	// The exit is the common post-dominator of the try block and every
	// handler. Only ExitBlock/HasExit are set from it: HasElse and
	// HasFinally are never set, here or by the driver, so else and
	// finally clauses are not reconstructed.
	merge := b
	first := true
	for _, h := range p.Handlers {
		if first {
			if m, ok := pd.CommonPostDom(b, h.HandlerBlock); ok {
				merge = m
			}
			first = false
			continue
		}
		if m, ok := pd.CommonPostDom(merge, h.HandlerBlock); ok {
			merge = m
		}
	}
	if merge != b {
		p.ExitBlock, p.HasExit = merge, true
	}

	// Bare handlers (no type check) must come last, matching CPython's own
	// compiler output and spec.md §8's boundary scenario.
	for i, h := range p.Handlers {
		if h.IsBare && i != len(p.Handlers)-1 {
			p.Handlers[i], p.Handlers[len(p.Handlers)-1] = p.Handlers[len(p.Handlers)-1], p.Handlers[i]
		}
	}

	return p, true
}

// classifyHandler inspects a handler block's opening instructions to
// decide whether it's bare, type-checked, or a finally block: a finally
// handler has no CHECK_EXC_MATCH/JUMP_IF_NOT_EXC_MATCH and ends by
// re-raising unconditionally via RERAISE after running cleanup code for
// every exit path (normal and exceptional) from the protected region,
// while an except handler is entered only on a matching exception type.
func classifyHandler(x Ctx, h cfg.BlockId) ExceptClause {
	blk := x.block(h)
	c := ExceptClause{HandlerBlock: h}

	for _, in := range blk.Instrs {
		if in.Op == bytecode.OpCheckExcMatch || in.Op == bytecode.OpJumpIfNotExcMatch {
			c.ExcTypeExpr = true
		}
	}
	if !c.ExcTypeExpr {
		// No type check: either a bare `except:` or a `finally:`. Both are
		// tagged IsBare; nothing sets IsFinally, so a finally handler is
		// emitted as a bare except.
		c.IsBare = true
	}
	return c
}
