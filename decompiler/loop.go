package decompiler

import (
	"github.com/mna/pez/ast"
	"github.com/mna/pez/bytecode"
	"github.com/mna/pez/internal/cfg"
	"github.com/mna/pez/internal/pattern"
)

// emitWhile builds an ast.While from a WhilePattern (spec.md §4.3/§4.5.3).
// The body is emitted from BodyBlock up to the header block. Break and
// continue are not reconstructed: an unconditional jump to the loop's exit
// or header yields no statement from Step, and nothing here or in
// straight-line emission builds an ast.Break or ast.Continue for it.
func (d *Decompiler) emitWhile(id cfg.BlockId, p *pattern.WhilePattern) ([]ast.Stmt, cfg.BlockId, error) {
	d.consumed[p.HeaderBlock] = true
	cond, err := d.emitStraightLine(p.HeaderBlock, d.pendingOverride[p.HeaderBlock])
	if err != nil {
		return nil, 0, err
	}
	delete(d.pendingOverride, p.HeaderBlock)

	body, err := d.emitBody(p.BodyBlock, p.HeaderBlock)
	if err != nil {
		return nil, 0, err
	}

	test := cond.cond
	if test == nil {
		test = &ast.Constant{Value: true}
	}
	stmt := &ast.While{Base: ast.Base{Off: test.Offset()}, Test: test, Body: body}
	out := append(cond.stmts, stmt)
	return out, p.ExitBlock, nil
}

// emitFor builds an ast.For from a ForPattern. The loop target is read
// directly off the body's first instruction (the STORE_* that binds each
// item FOR_ITER produced) rather than through the generic stack simulator:
// that store's source operand is the Unknown placeholder
// adjustForEdge pushes for the per-iteration value (spec.md §4.5.1 has no
// way to know the concrete item ahead of time), so recovering the bound
// name has to read the instruction's own operand instead of the simulated
// stack value.
func (d *Decompiler) emitFor(id cfg.BlockId, p *pattern.ForPattern) ([]ast.Stmt, cfg.BlockId, error) {
	d.consumed[p.SetupBlock] = true
	setup, err := d.emitStraightLine(p.SetupBlock, d.pendingOverride[p.SetupBlock])
	if err != nil {
		return nil, 0, err
	}
	delete(d.pendingOverride, p.SetupBlock)

	iter, _ := topExpr(setup.stack)

	d.consumed[p.HeaderBlock] = true
	target, bodyStart := d.forTarget(p.BodyBlock)

	body, err := d.emitBody(bodyStart, p.HeaderBlock)
	if err != nil {
		return nil, 0, err
	}

	var orelse []ast.Stmt
	if p.HasElse {
		orelse, err = d.emitBody(p.ElseBlock, p.ExitBlock)
		if err != nil {
			return nil, 0, err
		}
	}

	stmt := &ast.For{Target: target, Iter: iter, Body: body, Orelse: orelse, IsAsync: p.IsAsync}
	out := append(setup.stmts, stmt)
	return out, p.ExitBlock, nil
}

// forTarget reads the loop-variable store off bodyBlock's first
// instruction only and returns the target expression plus the block to
// resume straight-line emission from (always bodyBlock). A single
// STORE_FAST/STORE_NAME/STORE_GLOBAL/STORE_DEREF yields a Name and that
// one instruction is skipped via d.skipInstrs. Any other first
// instruction, including the UNPACK_SEQUENCE of a tuple target like
// `for k, v in d.items():`, yields the target `_` and skips nothing.
func (d *Decompiler) forTarget(bodyBlock cfg.BlockId) (ast.Expr, cfg.BlockId) {
	b := d.cfg.Block(bodyBlock)
	if len(b.Instrs) == 0 {
		return &ast.Name{ID: "_", Ctx: ast.Store}, bodyBlock
	}
	first := b.Instrs[0]
	name, ok := d.storeTargetName(first)
	if !ok {
		return &ast.Name{ID: "_", Ctx: ast.Store}, bodyBlock
	}
	d.skipInstrs[bodyBlock] = 1
	return &ast.Name{Base: ast.Base{Off: first.Offset}, ID: name, Ctx: ast.Store}, bodyBlock
}

// storeTargetName resolves a STORE_FAST/STORE_NAME/STORE_GLOBAL/
// STORE_DEREF instruction to the name it binds, replicating the small
// per-opcode name-table lookup internal/stackval's names.go performs
// (cellvars-then-freevars for STORE_DEREF), since that helper is
// unexported and this is the one place outside C4 that needs it.
func (d *Decompiler) storeTargetName(in bytecode.Instruction) (string, bool) {
	switch in.Op {
	case bytecode.OpStoreFast:
		if in.Arg >= 0 && in.Arg < len(d.code.Varnames) {
			return d.code.Varnames[in.Arg], true
		}
	case bytecode.OpStoreName, bytecode.OpStoreGlobal:
		if in.Arg >= 0 && in.Arg < len(d.code.Names) {
			return d.code.Names[in.Arg], true
		}
	case bytecode.OpStoreDeref:
		if in.Arg >= 0 && in.Arg < len(d.code.Cellvars) {
			return d.code.Cellvars[in.Arg], true
		}
		idx := in.Arg - len(d.code.Cellvars)
		if idx >= 0 && idx < len(d.code.Freevars) {
			return d.code.Freevars[idx], true
		}
	}
	return "", false
}
