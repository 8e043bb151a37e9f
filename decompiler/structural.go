package decompiler

import (
	"github.com/mna/pez/ast"
	"github.com/mna/pez/internal/cfg"
	"github.com/mna/pez/internal/pattern"
	"github.com/mna/pez/internal/stackval"
)

// emitBody walks blocks starting at start, stopping once it reaches stop
// (exclusive, ignored if stop == noNext) or a block with no further
// non-exception successor, dispatching each block through the detector
// priority spec.md §4.5.2 assigns the driver: And/Or (a BoolOp chain),
// then a Ternary chain, then the six structural statement shapes via
// pattern.Detect, falling back to straight-line emission.
func (d *Decompiler) emitBody(start, stop cfg.BlockId) ([]ast.Stmt, error) {
	var out []ast.Stmt
	id := start

	for id != stop {
		if d.consumed[id] {
			break
		}

		ctx := pattern.Ctx{CFG: d.cfg, Dom: d.dom}

		if chain, ok := pattern.DetectAndOr(ctx, id); ok {
			stmts, mergeID, override, err := d.emitAndOr(chain)
			if err != nil {
				return nil, err
			}
			out = append(out, stmts...)
			id = mergeID
			d.pendingOverride[mergeID] = override
			continue
		}

		if chain, ok := pattern.DetectTernaryChain(ctx, id); ok {
			stmts, mergeID, override, err := d.emitTernaryChain(chain)
			if err != nil {
				return nil, err
			}
			out = append(out, stmts...)
			id = mergeID
			d.pendingOverride[mergeID] = override
			continue
		}

		p := pattern.Detect(ctx, id)
		switch p.Kind {
		case pattern.KindIf:
			stmts, next, err := d.emitIf(id, p.If)
			if err != nil {
				return nil, err
			}
			out = append(out, stmts...)
			id = next
			continue
		case pattern.KindWhile:
			stmts, next, err := d.emitWhile(id, p.While)
			if err != nil {
				return nil, err
			}
			out = append(out, stmts...)
			id = next
			continue
		case pattern.KindFor:
			stmts, next, err := d.emitFor(id, p.For)
			if err != nil {
				return nil, err
			}
			out = append(out, stmts...)
			id = next
			continue
		case pattern.KindTry:
			stmts, next, err := d.emitTry(id, p.Try)
			if err != nil {
				return nil, err
			}
			out = append(out, stmts...)
			id = next
			continue
		case pattern.KindWith:
			stmts, next, err := d.emitWith(id, p.With)
			if err != nil {
				return nil, err
			}
			out = append(out, stmts...)
			id = next
			continue
		case pattern.KindMatch:
			stmts, next, err := d.emitMatch(id, p.Match)
			if err != nil {
				return nil, err
			}
			out = append(out, stmts...)
			id = next
			continue
		}

		// Straight-line fallback: no structural pattern roots here.
		d.consumed[id] = true
		override := d.pendingOverride[id]
		delete(d.pendingOverride, id)
		res, err := d.emitStraightLine(id, override)
		if err != nil {
			return nil, err
		}
		out = append(out, res.stmts...)

		next, ok := soleSuccessor(d.cfg.Block(id))
		if !ok {
			break
		}
		id = next
	}

	return out, nil
}

// soleSuccessor reports the block's one non-exception, non-loop-back
// successor, when there is exactly one — the straight-line fallback's
// "keep walking" case. Blocks with zero (returns/raises) or more than one
// (unrecognized branch shape) successors stop emission here; an
// unrecognized multi-successor shape is a structural gap the detectors
// above should have claimed, so it is left for the caller's stop/next
// block bookkeeping rather than guessed at.
func soleSuccessor(b *cfg.BasicBlock) (cfg.BlockId, bool) {
	var cand cfg.BlockId
	n := 0
	for _, e := range b.Out {
		if e.Kind == cfg.Exception {
			continue
		}
		cand = e.Target
		n++
	}
	if n == 1 {
		return cand, true
	}
	return 0, false
}

// emitAndOr builds the BoolOp expression for a `a and b and c` / `a or b
// or c` short-circuit chain (length 1 for a plain `a and b`) and returns
// the merge block plus the stack it should be entered with (the generic
// dataflow merge collapsed every arm to Unknown; the real value is this
// BoolOp).
func (d *Decompiler) emitAndOr(chain []*pattern.BoolOpPattern) ([]ast.Stmt, cfg.BlockId, *stackval.OperandStack, error) {
	first := chain[0]
	id := first.LeftBlock
	merge := first.MergeBlock

	d.consumed[id] = true
	left, err := d.emitStraightLine(id, d.pendingOverride[id])
	if err != nil {
		return nil, 0, nil, err
	}
	delete(d.pendingOverride, id)

	leftExpr, ok := topExpr(left.stack)
	if !ok {
		return left.stmts, merge, left.stack, nil
	}

	values := []ast.Expr{leftExpr}
	stmts := left.stmts
	stack := left.stack
	for _, bp := range chain {
		d.consumed[bp.RightBlock] = true
		right, err := d.emitStraightLine(bp.RightBlock, nil)
		if err != nil {
			return nil, 0, nil, err
		}
		stmts = append(stmts, right.stmts...)
		rightExpr, ok := topExpr(right.stack)
		if !ok {
			return stmts, merge, right.stack, nil
		}
		values = append(values, rightExpr)
		stack = right.stack
	}

	off := leftExpr.Offset()
	merged := stack.Clone()
	merged.Pop(off)
	merged.Push(stackval.AsExpr(&ast.BoolOp{Base: ast.Base{Off: off}, Op: first.Op, Values: values}))
	return stmts, merge, merged, nil
}

// emitTernaryChain builds the IfExp for a conditional-expression diamond
// (`a if cond else b`), or a nested run of them for `a if c1 else (b if c2
// else d)` (spec.md §4.3's ternary chain): each link beyond the first is
// rooted at the previous link's FalseBlock, which DetectTernaryChain has
// already confirmed is itself a TernaryPattern sharing the outer merge
// block, so the nested IfExp is built by recursing into the tail.
func (d *Decompiler) emitTernaryChain(chain []*pattern.TernaryPattern) ([]ast.Stmt, cfg.BlockId, *stackval.OperandStack, error) {
	cur := chain[0]
	id := cur.ConditionBlock
	merge := cur.MergeBlock

	d.consumed[id] = true
	cond, err := d.emitStraightLine(id, d.pendingOverride[id])
	if err != nil {
		return nil, 0, nil, err
	}
	delete(d.pendingOverride, id)

	if cond.cond == nil {
		return cond.stmts, merge, cond.stack, nil
	}

	d.consumed[cur.TrueBlock] = true
	trueRes, err := d.emitStraightLine(cur.TrueBlock, cond.stack.Clone())
	if err != nil {
		return nil, 0, nil, err
	}
	trueExpr, tok := topExpr(trueRes.stack)

	var falseStmts []ast.Stmt
	var falseExpr ast.Expr
	var fok bool
	if len(chain) > 1 {
		fs, _, fstack, err := d.emitTernaryChain(chain[1:])
		if err != nil {
			return nil, 0, nil, err
		}
		falseStmts = fs
		falseExpr, fok = topExpr(fstack)
	} else {
		d.consumed[cur.FalseBlock] = true
		falseRes, err := d.emitStraightLine(cur.FalseBlock, cond.stack.Clone())
		if err != nil {
			return nil, 0, nil, err
		}
		falseStmts = falseRes.stmts
		falseExpr, fok = topExpr(falseRes.stack)
	}

	stmts := append(cond.stmts, append(trueRes.stmts, falseStmts...)...)
	if !tok || !fok {
		return stmts, merge, cond.stack, nil
	}

	ifexp := &ast.IfExp{Base: ast.Base{Off: cond.cond.Offset()}, Test: cond.cond, Body: trueExpr, Orelse: falseExpr}
	merged := cond.stack.Clone()
	merged.Push(stackval.AsExpr(ifexp))
	return stmts, merge, merged, nil
}

func topExpr(s *stackval.OperandStack) (ast.Expr, bool) {
	items := s.Slice()
	if len(items) == 0 {
		return nil, false
	}
	return items[len(items)-1].AsAstExpr()
}
