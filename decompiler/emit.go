package decompiler

import (
	"github.com/mna/pez/ast"
	"github.com/mna/pez/internal/cfg"
	"github.com/mna/pez/internal/pattern"
)

// emitIf builds an ast.If from an IfPattern (spec.md §4.3/§4.5.2). An
// elif chain falls out naturally: emitBody recursing into ElseBlock
// detects the nested IfPattern rooted there and produces a single-element
// Orelse containing another *ast.If, without this function needing to
// special-case IsElif itself.
func (d *Decompiler) emitIf(id cfg.BlockId, p *pattern.IfPattern) ([]ast.Stmt, cfg.BlockId, error) {
	d.consumed[id] = true
	cond, err := d.emitStraightLine(id, d.pendingOverride[id])
	if err != nil {
		return nil, 0, err
	}
	delete(d.pendingOverride, id)

	stop := noNext
	if p.HasMerge {
		stop = p.MergeBlock
	}

	thenBody, err := d.emitBody(p.ThenBlock, stop)
	if err != nil {
		return nil, 0, err
	}

	var elseBody []ast.Stmt
	if p.HasElse {
		elseBody, err = d.emitBody(p.ElseBlock, stop)
		if err != nil {
			return nil, 0, err
		}
	}

	test := cond.cond
	if test == nil {
		test = &ast.Constant{Value: true}
	}
	stmt := &ast.If{Base: ast.Base{Off: test.Offset()}, Test: test, Body: thenBody, Orelse: elseBody}
	out := append(cond.stmts, stmt)

	next := noNext
	if p.HasMerge {
		next = p.MergeBlock
	}
	return out, next, nil
}

// emitTry builds an ast.Try from a TryPattern (spec.md §4.3). Each
// handler's body is emitted from its HandlerBlock to the try statement's
// shared exit; a bare-except or type-checked except is distinguished by
// ExceptClause.ExcTypeExpr exactly as C3 detected it, and for a type-checked
// handler the exception type itself is recovered by exceptionTypeExpr
// reading the CHECK_EXC_MATCH/JUMP_IF_NOT_EXC_MATCH test's operand
// directly off the handler block's instructions.
func (d *Decompiler) emitTry(id cfg.BlockId, p *pattern.TryPattern) ([]ast.Stmt, cfg.BlockId, error) {
	d.consumed[id] = true
	stop := noNext
	if p.HasExit {
		stop = p.ExitBlock
	}

	tryBody, err := d.emitBody(p.TryBlock, stop)
	if err != nil {
		return nil, 0, err
	}

	var handlers []ast.ExceptHandler
	for _, h := range p.Handlers {
		if h.IsFinally {
			continue
		}
		d.consumed[h.HandlerBlock] = true
		body, err := d.emitBody(h.HandlerBlock, stop)
		if err != nil {
			return nil, 0, err
		}
		var typ ast.Expr
		if h.ExcTypeExpr {
			typ = d.exceptionTypeExpr(h.HandlerBlock)
		}
		handlers = append(handlers, ast.ExceptHandler{Type: typ, Name: h.Name, Body: body})
	}

	var orelse []ast.Stmt
	if p.HasElse {
		orelse, err = d.emitBody(p.ElseBlock, stop)
		if err != nil {
			return nil, 0, err
		}
	}

	var finalbody []ast.Stmt
	if p.HasFinally {
		finalbody, err = d.emitBody(p.FinallyBlock, stop)
		if err != nil {
			return nil, 0, err
		}
	}

	stmt := &ast.Try{Body: tryBody, Handlers: handlers, Orelse: orelse, Finalbody: finalbody}

	next := noNext
	if p.HasExit {
		next = p.ExitBlock
	}
	return []ast.Stmt{stmt}, next, nil
}

// emitWith builds an ast.With from a (possibly multi-item, DetectWithItems-
// collapsed) WithPattern: one ast.WithItem per entry of p.Items, each
// straight-line-simulated from its own SetupBlock for its context
// expression, in source order (`with a, b:`'s manager-evaluation order).
func (d *Decompiler) emitWith(id cfg.BlockId, p *pattern.WithPattern) ([]ast.Stmt, cfg.BlockId, error) {
	var out []ast.Stmt
	var items []ast.WithItem
	for _, wi := range p.Items {
		d.consumed[wi.SetupBlock] = true
		setup, err := d.emitStraightLine(wi.SetupBlock, d.pendingOverride[wi.SetupBlock])
		if err != nil {
			return nil, 0, err
		}
		delete(d.pendingOverride, wi.SetupBlock)

		ctxExpr, _ := topExpr(setup.stack)
		items = append(items, ast.WithItem{ContextExpr: ctxExpr})
		out = append(out, setup.stmts...)
	}

	body, err := d.emitBody(p.BodyBlock, p.CleanupBlock)
	if err != nil {
		return nil, 0, err
	}

	stmt := &ast.With{Items: items, Body: body, IsAsync: p.IsAsync}
	out = append(out, stmt)
	return out, p.ExitBlock, nil
}

// emitMatch builds an ast.Match from a MatchPattern: each case's pattern
// is rebuilt by buildMatchPattern from the TestBlocks that feed its body
// (a case with more than one test block is an OR-pattern, folded into a
// MatchOr), falling back to a bare capture for any case whose test shape
// buildMatchPattern does not recognize.
func (d *Decompiler) emitMatch(id cfg.BlockId, p *pattern.MatchPattern) ([]ast.Stmt, cfg.BlockId, error) {
	d.consumed[id] = true
	subj, err := d.emitStraightLine(id, d.pendingOverride[id])
	if err != nil {
		return nil, 0, err
	}
	delete(d.pendingOverride, id)
	subject, _ := topExpr(subj.stack)

	stop := noNext
	if p.HasExit {
		stop = p.ExitBlock
	}

	var cases []ast.MatchCase
	for i, cb := range p.CaseBlocks {
		d.consumed[cb] = true
		var testBlocks []cfg.BlockId
		if i < len(p.TestBlocks) {
			testBlocks = p.TestBlocks[i]
			for _, tb := range testBlocks {
				d.consumed[tb] = true
			}
		}
		body, err := d.emitBody(cb, stop)
		if err != nil {
			return nil, 0, err
		}
		pat := ast.Pattern(&ast.MatchAs{})
		if len(testBlocks) > 0 {
			pat = d.buildMatchPattern(testBlocks)
		}
		cases = append(cases, ast.MatchCase{
			Pattern: pat,
			Body:    body,
		})
	}

	stmt := &ast.Match{Subject: subject, Cases: cases}
	out := append(subj.stmts, stmt)

	next := noNext
	if p.HasExit {
		next = p.ExitBlock
	}
	return out, next, nil
}
