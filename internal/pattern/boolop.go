package pattern

import (
	"github.com/mna/pez/bytecode"
	"github.com/mna/pez/internal/cfg"
)

// DetectBoolOp recognizes the short-circuit region CPython compiles for
// `a and b` / `a or b`: the left operand's terminator is JUMP_IF_*_OR_POP,
// keeping the left value on the stack when it short-circuits, and falling
// through otherwise into a right-operand block that merges with the
// short-circuit target. Consulted by the driver ahead of detect_pattern,
// narrower than TernaryPattern, per spec.md §4.3.
func DetectBoolOp(x Ctx, b cfg.BlockId) (*BoolOpPattern, bool) {
	blk := x.block(b)
	term, ok := terminator(blk)
	if !ok {
		return nil, false
	}

	var op string
	switch term.Op {
	case bytecode.OpJumpIfTrueOrPop:
		op = "or"
	case bytecode.OpJumpIfFalseOrPop:
		op = "and"
	default:
		return nil, false
	}

	merge, ok := edgeTo(blk, cfg.ConditionalTrue)
	if !ok {
		return nil, false
	}
	right, ok := edgeTo(blk, cfg.ConditionalFalse)
	if !ok {
		return nil, false
	}

	rightBlk := x.block(right)
	rightMerge, ok := edgeTo(rightBlk, cfg.Fallthrough)
	if !ok || rightMerge != merge {
		return nil, false
	}

	return &BoolOpPattern{Op: op, LeftBlock: b, RightBlock: right, MergeBlock: merge}, true
}

// DetectAndOr collapses a chain of DetectBoolOp regions sharing the same
// operator and merge block into the flat operand list a single `a and b
// and c` (or all-`or`) expression needs.
func DetectAndOr(x Ctx, b cfg.BlockId) ([]*BoolOpPattern, bool) {
	first, ok := DetectBoolOp(x, b)
	if !ok {
		return nil, false
	}
	chain := []*BoolOpPattern{first}
	cur := first
	for {
		inner, ok := DetectBoolOp(x, cur.RightBlock)
		if !ok || inner.Op != first.Op || inner.MergeBlock != first.MergeBlock {
			break
		}
		chain = append(chain, inner)
		cur = inner
	}
	return chain, true
}
