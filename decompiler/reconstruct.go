package decompiler

import (
	"github.com/mna/pez/ast"
	"github.com/mna/pez/bytecode"
	"github.com/mna/pez/internal/cfg"
)

// Index resolution into a Code object's name tables, mirroring
// internal/stackval/names.go: C5 needs the same lookups to rebuild an
// expression directly from a single instruction (exceptionTypeExpr,
// buildMatchPattern) without re-running the block simulator.

func nameAt(c *bytecode.Code, idx int) string {
	if idx < 0 || idx >= len(c.Names) {
		return ""
	}
	return c.Names[idx]
}

func varnameAt(c *bytecode.Code, idx int) string {
	if idx < 0 || idx >= len(c.Varnames) {
		return ""
	}
	return c.Varnames[idx]
}

func derefAt(c *bytecode.Code, idx int) string {
	if idx < len(c.Cellvars) {
		return c.Cellvars[idx]
	}
	idx -= len(c.Cellvars)
	if idx >= 0 && idx < len(c.Freevars) {
		return c.Freevars[idx]
	}
	return ""
}

func constAt(c *bytecode.Code, idx int) bytecode.Object {
	if idx < 0 || idx >= len(c.Consts) {
		return nil
	}
	return c.Consts[idx]
}

// loadExprAt builds the leaf expression a single LOAD_* instruction
// pushes, without following any further chain (no LOAD_ATTR base
// resolution) — enough to recover an except clause's exception name or a
// match case's literal/class operand, which are always one plain load
// away from the test that consumes them.
func loadExprAt(code *bytecode.Code, in bytecode.Instruction) (ast.Expr, bool) {
	off := in.Offset
	switch in.Op {
	case bytecode.OpLoadConst:
		if c, ok := constAt(code, in.Arg).(*bytecode.Code); ok {
			_ = c
			return nil, false
		}
		return &ast.Constant{Base: ast.Base{Off: off}, Value: constAt(code, in.Arg)}, true
	case bytecode.OpLoadName, bytecode.OpLoadGlobal:
		return &ast.Name{Base: ast.Base{Off: off}, ID: nameAt(code, in.Arg), Ctx: ast.Load}, true
	case bytecode.OpLoadFast:
		return &ast.Name{Base: ast.Base{Off: off}, ID: varnameAt(code, in.Arg), Ctx: ast.Load}, true
	case bytecode.OpLoadDeref:
		return &ast.Name{Base: ast.Base{Off: off}, ID: derefAt(code, in.Arg), Ctx: ast.Load}, true
	}
	return nil, false
}

// precedingLoad scans a block's instructions backward from just before
// beforeIdx for the nearest LOAD_CONST/LOAD_NAME/LOAD_GLOBAL/LOAD_FAST/
// LOAD_DEREF, the idiom an except handler's type check and a match case's
// literal/class test both share: the operand the test compares against is
// always loaded immediately before the test opcode itself, with at most
// intervening bookkeeping (DUP_TOP, a second subject reload) that carries
// no new operand of its own.
func precedingLoad(b *cfg.BasicBlock, code *bytecode.Code, beforeIdx int) (ast.Expr, bool) {
	for i := beforeIdx - 1; i >= 0; i-- {
		if e, ok := loadExprAt(code, b.Instrs[i]); ok {
			return e, true
		}
	}
	return nil, false
}

// findInstr returns the index of the first instruction in b matching any
// of ops.
func findInstr(b *cfg.BasicBlock, ops ...bytecode.Opcode) (int, bool) {
	for i, in := range b.Instrs {
		for _, op := range ops {
			if in.Op == op {
				return i, true
			}
		}
	}
	return 0, false
}

// exceptionTypeExpr rebuilds a type-checked except clause's exception
// expression (`except ValueError:`, `except (TypeError, KeyError):`) by
// locating the handler block's CHECK_EXC_MATCH/JUMP_IF_NOT_EXC_MATCH test
// and reading the load that feeds it, the only operand that
// instruction's stack effect depends on besides the in-flight exception
// itself. A handler whose type expression cannot be recovered this way
// (an unusual shape internal/pattern still classified as ExcTypeExpr)
// degrades to a bare except rather than guessing.
func (d *Decompiler) exceptionTypeExpr(handlerBlock cfg.BlockId) ast.Expr {
	b := d.cfg.Block(handlerBlock)
	idx, ok := findInstr(b, bytecode.OpCheckExcMatch, bytecode.OpJumpIfNotExcMatch)
	if !ok {
		return nil
	}
	e, ok := precedingLoad(b, d.code, idx)
	if !ok {
		return nil
	}
	return e
}

// buildMatchPattern reconstructs the ast.Pattern a case's test block(s)
// check, per spec.md §4.3's MatchPattern: a single test block yields the
// literal/class/structural pattern that block's MATCH_*/COMPARE_OP family
// checks; more than one test block sharing a case body (TestBlocks[i]) is
// an OR-pattern, each alternative built the same way and folded into a
// MatchOr.
func (d *Decompiler) buildMatchPattern(testBlocks []cfg.BlockId) ast.Pattern {
	if len(testBlocks) == 1 {
		return d.buildSingleMatchPattern(testBlocks[0])
	}
	patterns := make([]ast.Pattern, 0, len(testBlocks))
	for _, tb := range testBlocks {
		patterns = append(patterns, d.buildSingleMatchPattern(tb))
	}
	return &ast.MatchOr{Patterns: patterns}
}

// buildSingleMatchPattern handles one test block. MATCH_SEQUENCE/
// MATCH_MAPPING's own sub-pattern destructuring depends on captured
// bindings C4 deliberately leaves as Unknown placeholders (stackval's own
// doc comment), so those two shapes reconstruct only their outer kind,
// with no sub-patterns, rather than guess at bindings that were never
// simulated.
func (d *Decompiler) buildSingleMatchPattern(tb cfg.BlockId) ast.Pattern {
	b := d.cfg.Block(tb)

	if idx, ok := findInstr(b, bytecode.OpMatchClass); ok {
		cls, _ := precedingLoad(b, d.code, idx)
		return &ast.MatchClass{Cls: cls}
	}
	if _, ok := findInstr(b, bytecode.OpMatchMapping); ok {
		return &ast.MatchMapping{}
	}
	if _, ok := findInstr(b, bytecode.OpMatchSequence); ok {
		return &ast.MatchSequence{StarIdx: -1}
	}
	if idx, ok := findInstr(b, bytecode.OpCompareOp, bytecode.OpIsOp); ok {
		val, ok := precedingLoad(b, d.code, idx)
		if !ok {
			return &ast.MatchAs{}
		}
		if c, ok := val.(*ast.Constant); ok {
			switch c.Value.(type) {
			case nil:
				return &ast.MatchSingleton{Value: nil}
			case bool:
				return &ast.MatchSingleton{Value: c.Value}
			}
		}
		return &ast.MatchValue{Value: val}
	}

	return &ast.MatchAs{}
}
