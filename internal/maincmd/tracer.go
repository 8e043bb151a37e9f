package maincmd

import (
	"fmt"
	"io"
	"strconv"
)

// cliTracer implements decompiler.Tracer over the --trace-decisions/
// --trace-loop-guards/--trace-sim-block flags, writing to stderr exactly
// when each flag asked for that category of trace.
type cliTracer struct {
	w               io.Writer
	decisions       bool
	loopGuards      bool
	simBlockFilter  uint32
	hasSimBlockFilt bool
}

func newTracer(w io.Writer, decisions, loopGuards bool, simBlock string) (*cliTracer, error) {
	t := &cliTracer{w: w, decisions: decisions, loopGuards: loopGuards}
	if simBlock != "" {
		id, err := strconv.ParseUint(simBlock, 10, 32)
		if err != nil {
			return nil, err
		}
		t.simBlockFilter = uint32(id)
		t.hasSimBlockFilt = true
	}
	return t, nil
}

func (t *cliTracer) Decision(format string, args ...any) {
	if !t.decisions {
		return
	}
	fmt.Fprintf(t.w, "[decision] "+format+"\n", args...)
}

func (t *cliTracer) LoopGuard(format string, args ...any) {
	if !t.loopGuards {
		return
	}
	fmt.Fprintf(t.w, "[loop-guard] "+format+"\n", args...)
}

func (t *cliTracer) SimBlock(blockID uint32, format string, args ...any) {
	if !t.hasSimBlockFilt || blockID != t.simBlockFilter {
		return
	}
	fmt.Fprintf(t.w, "[sim-block %d] "+format+"\n", append([]any{blockID}, args...)...)
}
