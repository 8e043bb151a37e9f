package pattern

import (
	"github.com/mna/pez/bytecode"
	"github.com/mna/pez/internal/cfg"
)

// DetectFor implements spec.md §4.3's ForPattern detection (the header's
// terminator is FOR_ITER, or the legacy 1.x-2.2 FOR_LOOP), plus
// SPEC_FULL.md's DetectAsyncFor supplement for `async for`.
func DetectFor(x Ctx, b cfg.BlockId) (*ForPattern, bool) {
	if p, ok := detectSyncFor(x, b); ok {
		return p, true
	}
	return DetectAsyncFor(x, b)
}

func detectSyncFor(x Ctx, b cfg.BlockId) (*ForPattern, bool) {
	blk := x.block(b)
	term, ok := terminator(blk)
	if !ok || (term.Op != bytecode.OpForIter && term.Op != bytecode.OpForLoop) {
		return nil, false
	}

	body, ok := edgeTo(blk, cfg.Fallthrough)
	if !ok {
		return nil, false
	}
	exit, ok := edgeTo(blk, cfg.ConditionalFalse)
	if !ok {
		return nil, false
	}

	setup, ok := findIterSetup(x, b, term.Op)
	if !ok {
		return nil, false
	}

	p := &ForPattern{SetupBlock: setup, HeaderBlock: b, BodyBlock: body, ExitBlock: exit}

	// An `else:` clause on a for-loop is reached only via the FOR_ITER
	// exit edge, never from within the body. DetectFor does not tell such
	// a clause apart from ordinary code after the loop, and neither
	// DetectFor nor the driver assigns ElseBlock or HasElse, so a for-else
	// clause is not reconstructed: its statements follow the loop.
	return p, true
}

// findIterSetup finds the unique predecessor of header that runs GET_ITER
// (modern) or the legacy sequence that pushes sequence+index for
// FOR_LOOP, per spec.md §4.3 and §9's open question about the legacy
// stack shape.
func findIterSetup(x Ctx, header cfg.BlockId, op bytecode.Opcode) (cfg.BlockId, bool) {
	blk := x.block(header)
	if len(blk.In) == 0 {
		return 0, false
	}
	// The loop-back predecessor doesn't set up the iterator; only a
	// dominating, non-loop-back predecessor can.
	var candidate cfg.BlockId
	found := false
	for _, p := range blk.In {
		if !x.Dom.Dominates(p, header) {
			continue
		}
		pb := x.block(p)
		for _, in := range pb.Instrs {
			if op == bytecode.OpForIter && in.Op == bytecode.OpGetIter {
				candidate, found = p, true
			}
			if op == bytecode.OpForLoop {
				// Legacy shape: spec.md §9 requires the pre-FOR_LOOP stack be
				// exactly [..., sequence] with the index injected by the
				// header; we accept any dominating predecessor as the setup
				// block and let the stack simulator reject (InvalidBytecode)
				// if that invariant doesn't hold when it actually simulates
				// the block, per the "deviations must be rejected" rule.
				candidate, found = p, true
			}
		}
	}
	return candidate, found
}

// DetectAsyncFor recognizes the GET_AITER/.../YIELD_FROM-or-SEND/
// StopAsyncIteration family (SPEC_FULL.md supplement) and reports it as a
// ForPattern tagged IsAsync.
func DetectAsyncFor(x Ctx, b cfg.BlockId) (*ForPattern, bool) {
	blk := x.block(b)
	term, ok := terminator(blk)
	if !ok {
		return nil, false
	}
	// 3.11+: header block ends in SEND, with a conditional/exception exit
	// to a block that runs END_ASYNC_FOR. 3.5-3.10: header ends in
	// YIELD_FROM guarded by a SETUP_EXCEPT/SETUP_FINALLY whose handler
	// checks StopAsyncIteration.
	isHeader := term.Op == bytecode.OpSend || term.Op == bytecode.OpYieldFrom
	if !isHeader {
		return nil, false
	}

	setup, ok := findAiterSetup(x, b)
	if !ok {
		return nil, false
	}

	body, ok := edgeTo(blk, cfg.Fallthrough)
	if !ok {
		body, ok = edgeTo(blk, cfg.ConditionalFalse)
	}
	if !ok {
		return nil, false
	}

	var exit cfg.BlockId
	hasExit := false
	for _, e := range blk.Out {
		if e.Kind == cfg.Exception {
			exit, hasExit = e.Target, true
		}
	}
	if !hasExit {
		exit, hasExit = edgeTo(blk, cfg.ConditionalTrue)
	}
	if !hasExit {
		return nil, false
	}

	return &ForPattern{SetupBlock: setup, HeaderBlock: b, BodyBlock: body, ExitBlock: exit, IsAsync: true}, true
}

func findAiterSetup(x Ctx, header cfg.BlockId) (cfg.BlockId, bool) {
	blk := x.block(header)
	for _, p := range blk.In {
		if !x.Dom.Dominates(p, header) {
			continue
		}
		pb := x.block(p)
		for _, in := range pb.Instrs {
			if in.Op == bytecode.OpGetAiter || in.Op == bytecode.OpGetAnext {
				return p, true
			}
		}
	}
	return 0, false
}
