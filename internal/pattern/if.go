package pattern

import (
	"github.com/mna/pez/bytecode"
	"github.com/mna/pez/internal/cfg"
)

// DetectIf implements spec.md §4.3's IfPattern detection: the block's
// terminator is a conditional jump; then_block is the not-taken side
// (tested false means "enter the if"); else_block is the taken side
// unless it lies at or past the natural join with the fallthrough.
func DetectIf(x Ctx, b cfg.BlockId) (*IfPattern, bool) {
	blk := x.block(b)
	term, ok := terminator(blk)
	if !ok || !bytecode.IsConditionalJump(term.Op) {
		return nil, false
	}
	// JUMP_IF_*_OR_POP belong to the bool-op/and-or families, not a
	// structural if; they leave the tested value on the stack rather than
	// discarding it unconditionally.
	if term.Op == bytecode.OpJumpIfTrueOrPop || term.Op == bytecode.OpJumpIfFalseOrPop {
		return nil, false
	}

	thenBlock, ok := edgeTo(blk, cfg.ConditionalFalse)
	if !ok {
		return nil, false
	}
	elseBlock, ok := edgeTo(blk, cfg.ConditionalTrue)
	if !ok {
		return nil, false
	}

	p := &IfPattern{ConditionBlock: b, ThenBlock: thenBlock}

	pd := x.Dom.PostDom()
	merge, hasMerge := pd.CommonPostDom(thenBlock, elseBlock)

	switch {
	case hasMerge && elseBlock == merge:
		// else branch is empty: the "taken" target IS the join point.
		p.MergeBlock, p.HasMerge = merge, true
	default:
		p.ElseBlock, p.HasElse = elseBlock, true
		if hasMerge {
			p.MergeBlock, p.HasMerge = merge, true
		}
	}

	if p.HasElse {
		if inner, ok := DetectIf(x, p.ElseBlock); ok {
			if inner.HasMerge && p.HasMerge && inner.MergeBlock == p.MergeBlock {
				p.IsElif = true
			} else if !p.HasMerge && !inner.HasMerge {
				p.IsElif = true
			}
		}
	}

	return p, true
}
