package pattern

import (
	"github.com/mna/pez/bytecode"
	"github.com/mna/pez/internal/cfg"
)

// DetectMatch implements spec.md §4.3's MatchPattern detection: a subject
// block feeding a chain of case-test blocks built from the
// MATCH_SEQUENCE/MATCH_MAPPING/MATCH_CLASS/MATCH_KEYS/GET_LEN opcode
// family, each falling through to the next test on failure and jumping to
// its own body on success.
func DetectMatch(x Ctx, b cfg.BlockId) (*MatchPattern, bool) {
	blk := x.block(b)
	if !hasMatchOp(blk) {
		return nil, false
	}

	p := &MatchPattern{SubjectBlock: b}

	cur := b
	visited := map[cfg.BlockId]bool{}
	for i := 0; i < len(x.CFG.Blocks)+1; i++ {
		if visited[cur] {
			break
		}
		visited[cur] = true
		curBlk := x.block(cur)
		if !hasMatchOp(curBlk) {
			break
		}
		caseBody, ok := edgeTo(curBlk, cfg.ConditionalFalse)
		if !ok {
			caseBody, ok = edgeTo(curBlk, cfg.ConditionalTrue)
		}
		if ok {
			if n := len(p.CaseBlocks); n > 0 && p.CaseBlocks[n-1] == caseBody {
				// Another test block falling through to the same body as the
				// previous one: an OR-pattern (`case 1 | 2:`), not a new case.
				p.TestBlocks[n-1] = append(p.TestBlocks[n-1], cur)
			} else {
				p.CaseBlocks = append(p.CaseBlocks, caseBody)
				p.TestBlocks = append(p.TestBlocks, []cfg.BlockId{cur})
			}
		}
		next, ok := edgeTo(curBlk, cfg.ConditionalTrue)
		if !ok || next == caseBody {
			next, ok = edgeTo(curBlk, cfg.Fallthrough)
		}
		if !ok {
			break
		}
		cur = next
	}
	if len(p.CaseBlocks) == 0 {
		return nil, false
	}

	pd := x.Dom.PostDom()
	merge := p.CaseBlocks[0]
	for _, c := range p.CaseBlocks[1:] {
		if m, ok := pd.CommonPostDom(merge, c); ok {
			merge = m
		}
	}
	p.ExitBlock, p.HasExit = merge, true

	return p, true
}

func hasMatchOp(b *cfg.BasicBlock) bool {
	for _, in := range b.Instrs {
		switch in.Op {
		case bytecode.OpMatchSequence, bytecode.OpMatchMapping, bytecode.OpMatchClass,
			bytecode.OpMatchKeys, bytecode.OpGetLen:
			return true
		}
	}
	return false
}
