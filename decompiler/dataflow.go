package decompiler

import (
	"github.com/mna/pez/bytecode"
	"github.com/mna/pez/internal/cfg"
	"github.com/mna/pez/internal/stackval"
)

// computeStackIn runs spec.md §4.5.1's fixpoint worklist: seed the entry
// block with an empty strict stack, flow each block's instructions through
// a Simulator to get its exit shape, apply edge-specific adjustments for
// the handful of opcodes whose effect differs per outgoing edge, unify at
// each successor, and repeat until nothing changes. Exception-handler
// blocks are excluded from this propagation (their incoming edges carry no
// useful stack shape — CPython starts them with a fresh exception-state
// stack) and are seeded separately once the non-exception fixpoint settles.
func (d *Decompiler) computeStackIn() error {
	d.stackIn = make(map[cfg.BlockId]*stackval.OperandStack, len(d.cfg.Blocks))

	entry := d.cfg.Entry
	d.stackIn[entry] = stackval.NewOperandStack(false)

	rpo := d.cfg.ReversePostorder()
	worklist := make([]cfg.BlockId, 0, len(rpo))
	onWorklist := make(map[cfg.BlockId]bool, len(rpo))
	for _, id := range rpo {
		worklist = append(worklist, id)
		onWorklist[id] = true
	}

	for len(worklist) > 0 {
		id := worklist[0]
		worklist = worklist[1:]
		onWorklist[id] = false

		in, ok := d.stackIn[id]
		if !ok {
			// Not yet reached by any predecessor; defer until one seeds it.
			continue
		}

		exit, err := d.flowBlock(id, in)
		if err != nil {
			return err
		}

		b := d.cfg.Block(id)
		for _, e := range b.Out {
			if e.Kind == cfg.Exception {
				continue
			}
			adjusted := adjustForEdge(exit, b, e)
			changed, err := d.mergeInto(e.Target, adjusted)
			if err != nil {
				return err
			}
			if changed && !onWorklist[e.Target] {
				worklist = append(worklist, e.Target)
				onWorklist[e.Target] = true
			}
		}
	}

	for i := range d.cfg.Blocks {
		id := cfg.BlockId(i)
		if _, ok := d.stackIn[id]; !ok {
			// Unreached by propagation: an exception handler, or a
			// lenient-mode unreachable block (dead code the compiler left
			// behind, or a CFG quirk in an unsupported legacy encoding).
			d.stackIn[id] = stackval.NewOperandStack(true)
		}
	}
	return nil
}

// flowBlock simulates one block's instructions starting from a clone of
// in (the caller's stack_in is not mutated: it may still feed other
// successors), discarding the emitted Results — this phase only cares
// about the resulting stack shape, not the statements, per spec.md
// §4.5.1's "a lightweight pass, not the real emission".
func (d *Decompiler) flowBlock(id cfg.BlockId, in *stackval.OperandStack) (*stackval.OperandStack, error) {
	work := in.Clone()
	sim := stackval.NewSimulator(d.code, d.ver, work)
	b := d.cfg.Block(id)
	for _, instr := range b.Instrs {
		if _, err := sim.Step(instr); err != nil {
			if isSoftSim(err) {
				work.AllowUnderflow = true
				continue
			}
			return nil, d.newError(KindInvalidBlock, id, instr.Offset, string(instr.Op), err)
		}
	}
	return work, nil
}

// adjustForEdge applies the edge-specific corrections spec.md §4.5.1 calls
// out by name: FOR_ITER/FOR_LOOP's two edges disagree about whether the
// iterator and loop variable are on the stack, and JUMP_IF_TRUE_OR_POP /
// JUMP_IF_FALSE_OR_POP leave the peeked value in place on one edge but pop
// it on the other. Step already performed the single-outcome pop/peek a
// plain linear simulation sees; this corrects the edge Step couldn't fork
// for.
func adjustForEdge(exit *stackval.OperandStack, b *cfg.BasicBlock, e cfg.Edge) *stackval.OperandStack {
	if len(b.Instrs) == 0 {
		return exit.Clone()
	}
	term := b.Instrs[len(b.Instrs)-1]
	adjusted := exit.Clone()

	switch term.Op {
	case bytecode.OpForIter, bytecode.OpForLoop:
		if e.Kind == cfg.ConditionalFalse {
			// Loop-exhausted edge: the iterator itself is popped here (Step
			// left it on the stack since it doesn't know which edge fires).
			adjusted.Pop(term.Offset)
		} else {
			// Fallthrough into the loop body: the next item is pushed.
			adjusted.Push(stackval.UnknownValue())
		}
	case bytecode.OpJumpIfTrueOrPop, bytecode.OpJumpIfFalseOrPop:
		takenKind := cfg.ConditionalTrue
		if term.Op == bytecode.OpJumpIfFalseOrPop {
			takenKind = cfg.ConditionalFalse
		}
		if e.Kind != takenKind {
			// The fallthrough side: the peeked value is consumed.
			adjusted.Pop(term.Offset)
		}
		// The taken side keeps the peeked value exactly as Step left it.
	}
	return adjusted
}

// mergeInto unifies incoming into the accumulated stack_in for target,
// aligned at top-of-stack (spec.md §4.5.1): the merged stack is as deep as
// the shallower of the two, so positions only the deeper stack has are
// dropped rather than kept as Unknown; positions both have stay as they
// are where Equal and become Unknown where they differ. Reports whether
// the stored value changed so the worklist knows whether to re-process
// target.
func (d *Decompiler) mergeInto(target cfg.BlockId, incoming *stackval.OperandStack) (bool, error) {
	existing, ok := d.stackIn[target]
	if !ok {
		d.stackIn[target] = incoming
		return true, nil
	}

	a, b := existing.Slice(), incoming.Slice()
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	merged := make([]stackval.StackValue, n)
	changed := len(a) != len(b)
	// Align at top-of-stack: index from the end.
	for i := 0; i < n; i++ {
		av := a[len(a)-n+i]
		bv := b[len(b)-n+i]
		if av.Equal(bv) {
			merged[i] = av
		} else {
			merged[i] = stackval.UnknownValue()
			changed = true
		}
	}
	if !changed {
		return false, nil
	}
	d.stackIn[target] = stackval.FromSlice(merged, existing.AllowUnderflow || incoming.AllowUnderflow)
	return true, nil
}

func isSoftSim(err error) bool {
	_, ok := err.(*stackval.SoftSim)
	return ok
}
