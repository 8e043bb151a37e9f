package pattern

import (
	"github.com/mna/pez/bytecode"
	"github.com/mna/pez/internal/cfg"
)

// DetectWith implements spec.md §4.3's WithPattern detection (BEFORE_WITH/
// SETUP_WITH/LOAD_SPECIAL prologues), extended by SPEC_FULL.md's
// DetectWithItems supplement that collapses the nested single-manager
// prologues CPython emits for `with a, b:` into one multi-item pattern.
func DetectWith(x Ctx, b cfg.BlockId) (*WithPattern, bool) {
	blk := x.block(b)

	setupOp := findSetupWithOp(blk)
	if setupOp == "" {
		return nil, false
	}

	body, ok := edgeTo(blk, cfg.Fallthrough)
	if !ok {
		return nil, false
	}

	cleanup, ok := findCleanupBlock(x, body)
	if !ok {
		return nil, false
	}
	cleanupBlk := x.block(cleanup)

	exit, hasExit := edgeTo(cleanupBlk, cfg.Fallthrough)

	isAsync := hasOp(blk, bytecode.OpBeforeAsyncWith)

	p := &WithPattern{
		SetupBlock:   b,
		Items:        []WithItem{{SetupBlock: b}},
		BodyBlock:    body,
		CleanupBlock: cleanup,
		IsAsync:      isAsync,
	}
	if hasExit {
		p.ExitBlock = exit
	}

	// DetectWithItems: CPython compiles `with a, b:` as nested
	// single-manager prologues, where the body block of the outer manager
	// is itself another with-setup block for the inner manager sharing the
	// same cleanup chain (the inner cleanup immediately precedes the outer
	// cleanup). Collapse that chain into one pattern with multiple Items.
	for {
		innerBlk := x.block(p.BodyBlock)
		innerOp := findSetupWithOp(innerBlk)
		if innerOp == "" {
			break
		}
		innerBody, ok := edgeTo(innerBlk, cfg.Fallthrough)
		if !ok {
			break
		}
		innerCleanup, ok := findCleanupBlock(x, innerBody)
		if !ok {
			break
		}
		innerCleanupBlk := x.block(innerCleanup)
		nextCleanup, ok := edgeTo(innerCleanupBlk, cfg.Fallthrough)
		if !ok || nextCleanup != p.CleanupBlock {
			break
		}
		p.Items = append(p.Items, WithItem{SetupBlock: p.BodyBlock})
		p.BodyBlock = innerBody
		p.CleanupBlock = innerCleanup
	}

	return p, true
}

func findSetupWithOp(b *cfg.BasicBlock) bytecode.Opcode {
	for _, in := range b.Instrs {
		switch in.Op {
		case bytecode.OpBeforeWith, bytecode.OpSetupWith, bytecode.OpBeforeAsyncWith:
			return in.Op
		}
	}
	return ""
}

func hasOp(b *cfg.BasicBlock, op bytecode.Opcode) bool {
	for _, in := range b.Instrs {
		if in.Op == op {
			return true
		}
	}
	return false
}

// findCleanupBlock walks forward from the with-body looking for the block
// containing WITH_EXCEPT_START / the legacy __exit__ call sequence that
// every with-statement's normal exit path reaches.
func findCleanupBlock(x Ctx, body cfg.BlockId) (cfg.BlockId, bool) {
	visited := map[cfg.BlockId]bool{}
	cur := body
	for i := 0; i < len(x.CFG.Blocks)+1; i++ {
		if visited[cur] {
			return 0, false
		}
		visited[cur] = true
		blk := x.block(cur)
		if hasOp(blk, bytecode.OpWithExceptStart) {
			return cur, true
		}
		next, ok := edgeTo(blk, cfg.Fallthrough)
		if !ok {
			next, ok = edgeTo(blk, cfg.Jump)
		}
		if !ok {
			return 0, false
		}
		cur = next
	}
	return 0, false
}
