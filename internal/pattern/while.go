package pattern

import (
	"github.com/mna/pez/bytecode"
	"github.com/mna/pez/internal/cfg"
)

// DetectWhile implements spec.md §4.3's WhilePattern detection: a loop
// header (reached by a back-edge) whose terminator is a conditional jump;
// the body is loop_body(header).
func DetectWhile(x Ctx, b cfg.BlockId) (*WhilePattern, bool) {
	blk := x.block(b)
	if !blk.IsLoopHeader {
		return nil, false
	}
	term, ok := terminator(blk)
	if !ok || !bytecode.IsConditionalJump(term.Op) {
		return nil, false
	}
	if term.Op == bytecode.OpJumpIfTrueOrPop || term.Op == bytecode.OpJumpIfFalseOrPop {
		return nil, false
	}

	body, ok := edgeTo(blk, cfg.ConditionalFalse)
	if !ok {
		return nil, false
	}
	exit, ok := edgeTo(blk, cfg.ConditionalTrue)
	if !ok {
		return nil, false
	}

	loopBody := x.Dom.LoopBody(b)
	if !loopBody[body] {
		return nil, false
	}

	return &WhilePattern{HeaderBlock: b, BodyBlock: body, ExitBlock: exit}, true
}
