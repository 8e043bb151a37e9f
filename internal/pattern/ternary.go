package pattern

import (
	"github.com/mna/pez/bytecode"
	"github.com/mna/pez/internal/cfg"
)

// DetectTernary recognizes the diamond region CPython compiles for
// `a if cond else b`: a conditional terminator whose two branches each
// fall through into the same merge block without any intervening
// structural statement, consulted by the driver ahead of detect_pattern
// per spec.md §4.3.
func DetectTernary(x Ctx, b cfg.BlockId) (*TernaryPattern, bool) {
	blk := x.block(b)
	term, ok := terminator(blk)
	if !ok || !isPlainConditional(term.Op) {
		return nil, false
	}

	trueBlock, ok := edgeTo(blk, cfg.ConditionalFalse)
	if !ok {
		return nil, false
	}
	falseBlock, ok := edgeTo(blk, cfg.ConditionalTrue)
	if !ok {
		return nil, false
	}

	trueBlk, falseBlk := x.block(trueBlock), x.block(falseBlock)
	trueMerge, ok1 := edgeTo(trueBlk, cfg.Fallthrough)
	falseMerge, ok2 := edgeTo(falseBlk, cfg.Fallthrough)
	if !ok1 || !ok2 || trueMerge != falseMerge {
		return nil, false
	}

	return &TernaryPattern{
		ConditionBlock: b,
		TrueBlock:      trueBlock,
		FalseBlock:     falseBlock,
		MergeBlock:     trueMerge,
	}, true
}

// DetectTernaryChain collapses a run of nested ternaries compiled for
// `a if c1 else (b if c2 else d)` into the flat list of
// (condition, value) arms a single chained conditional expression needs;
// it stops as soon as a branch doesn't itself reduce to a TernaryPattern
// sharing the outer merge block.
func DetectTernaryChain(x Ctx, b cfg.BlockId) ([]*TernaryPattern, bool) {
	first, ok := DetectTernary(x, b)
	if !ok {
		return nil, false
	}
	chain := []*TernaryPattern{first}
	cur := first
	for {
		inner, ok := DetectTernary(x, cur.FalseBlock)
		if !ok || inner.MergeBlock != cur.MergeBlock {
			break
		}
		chain = append(chain, inner)
		cur = inner
	}
	return chain, true
}

func isPlainConditional(op bytecode.Opcode) bool {
	if !bytecode.IsConditionalJump(op) {
		return false
	}
	return op != bytecode.OpJumpIfTrueOrPop && op != bytecode.OpJumpIfFalseOrPop
}
