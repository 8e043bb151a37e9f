package decompiler

import (
	"github.com/mna/pez/ast"
	"github.com/mna/pez/internal/cfg"
	"github.com/mna/pez/internal/stackval"
)

// blockResult is what emitStraightLine hands back to the structural
// emitter: the statements one block produced, the final stack shape (for
// callers that need to read a leftover condition/expression value off the
// top), and the last Step's Cond, if its terminator was a conditional
// jump.
type blockResult struct {
	stmts []ast.Stmt
	stack *stackval.OperandStack
	cond  ast.Expr
}

// emitStraightLine runs spec.md §4.5.4 over one block: seed a Simulator
// with its dataflow-computed (or caller-overridden) entry stack, walk its
// instructions, and collect the statements each Step produces. A SoftSim
// from any individual instruction downgrades that instruction to a no-op
// (spec.md §7's local-recovery contract) and switches the stack to lenient
// mode for the remainder of the block rather than aborting it.
func (d *Decompiler) emitStraightLine(id cfg.BlockId, override *stackval.OperandStack) (blockResult, error) {
	in := override
	if in == nil {
		in = d.stackIn[id]
	}
	work := in.Clone()
	sim := stackval.NewSimulator(d.code, d.ver, work)

	b := d.cfg.Block(id)
	instrs := b.Instrs
	if skip := d.skipInstrs[id]; skip > 0 && skip <= len(instrs) {
		instrs = instrs[skip:]
		delete(d.skipInstrs, id)
		// Each skipped instruction was a single-operand STORE_* whose
		// meaning a structural emitter already extracted directly (see
		// forTarget); pop its operand here so later offsets in the block
		// still see the stack depth they expect.
		for i := 0; i < skip; i++ {
			work.Pop(b.Instrs[i].Offset)
		}
	}
	var stmts []ast.Stmt
	var cond ast.Expr

	for _, instr := range instrs {
		res, err := sim.Step(instr)
		if err != nil {
			if ss, ok := err.(*stackval.SoftSim); ok {
				d.opts.Tracer.SimBlock(uint32(id), "soft-sim fallback at offset %d: %s", instr.Offset, ss.Reason)
				work.AllowUnderflow = true
				continue
			}
			return blockResult{}, d.newError(KindInvalidBlock, id, instr.Offset, string(instr.Op), err)
		}

		d.opts.Tracer.SimBlock(uint32(id), "%s", instr.Op)

		switch {
		case res.PendingFunction != nil:
			stmt, err := d.materializeFunction(res.PendingFunctionName, res.PendingFunction, instr.Offset)
			if err != nil {
				return blockResult{}, err
			}
			stmts = append(stmts, stmt)
		case res.PendingClass != nil:
			stmt, err := d.materializeClass(res.PendingClassName, res.PendingClass, instr.Offset)
			if err != nil {
				return blockResult{}, err
			}
			stmts = append(stmts, stmt)
		case res.PendingComprehension != nil:
			stmt, err := d.materializeComprehension(res.PendingComprehensionName, res.PendingComprehension, instr.Offset)
			if err != nil {
				return blockResult{}, err
			}
			stmts = append(stmts, stmt)
		case res.Stmt != nil:
			stmts = append(stmts, res.Stmt)
			d.shared.nodes.trackStmt()
		}
		if res.Cond != nil {
			cond = res.Cond
		}
	}

	return blockResult{stmts: stmts, stack: work, cond: cond}, nil
}

// materializeFunction finishes spec.md §4.5.5's Function builder: it
// recurses into the nested code object before the FunctionDef can be
// built, satisfying the invariant that the nested decompilation completes
// before the outer Store emits its statement.
func (d *Decompiler) materializeFunction(name string, fb *stackval.FunctionBuilder, off int) (ast.Stmt, error) {
	// A nested code object's own failure (bad bytecode, recursion limit,
	// ...) degrades to an empty body rather than aborting the outer
	// decompilation: spec.md §7's "a focused child can fail while its
	// parent succeeds" applies just as much to an ordinary nested def.
	// decompileNested already folded the failure into d.errs.
	body, _ := d.decompileNested(fb.Code)
	return buildFunctionDef(name, fb, body, off), nil
}

func (d *Decompiler) materializeClass(name string, cb *stackval.ClassBuilder, off int) (ast.Stmt, error) {
	body, _ := d.decompileNested(cb.Code)
	return buildClassDef(name, cb, body, off), nil
}
