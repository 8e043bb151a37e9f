package decompiler

import (
	"github.com/mna/pez/ast"
	"github.com/mna/pez/internal/stackval"
)

// materializeComprehension finishes spec.md §4.4's comprehension-builder
// group: the nested comprehension code object is decompiled through the
// ordinary pipeline exactly like a Function/Class body (it recurses before
// the Store can turn the result into an Assign), then reconstructComprehension
// walks the already-correct decompiled shape described by builders.go's
// listAppend/setAdd/mapAdd doc comment — a For/If chain whose innermost
// effect is mutating a List/Set/Dict literal that rides the stack until
// the trailing RETURN_VALUE — to pull out the ast.Comprehension generators
// and the accumulated element/key-value pair.
func (d *Decompiler) materializeComprehension(name string, cb *stackval.ComprehensionBuilder, off int) (ast.Stmt, error) {
	body, _ := d.decompileNested(cb.Code)
	e := reconstructComprehension(cb, body, off)
	target := &ast.Name{Base: ast.Base{Off: off}, ID: name, Ctx: ast.Store}
	return &ast.AssignStmt{Base: ast.Base{Off: off}, Targets: []ast.Expr{target}, Value: e}, nil
}

// reconstructComprehension builds the ListComp/SetComp/DictComp/
// GeneratorExp node for one comprehension builder. Any shape it doesn't
// recognize (an unusual nested-code structure a future CPython version
// compiles differently) degrades to a plain Call of the builtin list, set,
// dict or iter (by builder kind) on its iterable; the element expression
// is not recovered in that case.
func reconstructComprehension(cb *stackval.ComprehensionBuilder, body []ast.Stmt, off int) ast.Expr {
	gens, innerBody, ok := walkGenerators(body, cb.Iter)
	if !ok || len(gens) == 0 {
		return fallbackComprehensionCall(cb, off)
	}

	if cb.Kind == "gen" {
		yield, ok := findYieldValue(innerBody)
		if !ok {
			return fallbackComprehensionCall(cb, off)
		}
		return &ast.GeneratorExp{Base: ast.Base{Off: off}, Elt: yield, Generators: gens}
	}

	container, ok := findReturnedContainer(body)
	if !ok {
		return fallbackComprehensionCall(cb, off)
	}

	switch cb.Kind {
	case "list":
		lst, ok := container.(*ast.List)
		if !ok || len(lst.Elts) != 1 {
			return fallbackComprehensionCall(cb, off)
		}
		return &ast.ListComp{Base: ast.Base{Off: off}, Elt: lst.Elts[0], Generators: gens}
	case "set":
		set, ok := container.(*ast.Set)
		if !ok || len(set.Elts) != 1 {
			return fallbackComprehensionCall(cb, off)
		}
		return &ast.SetComp{Base: ast.Base{Off: off}, Elt: set.Elts[0], Generators: gens}
	case "dict":
		d, ok := container.(*ast.Dict)
		if !ok || len(d.Values) != 1 {
			return fallbackComprehensionCall(cb, off)
		}
		return &ast.DictComp{Base: ast.Base{Off: off}, Key: d.Keys[0], Value: d.Values[0], Generators: gens}
	}
	return fallbackComprehensionCall(cb, off)
}

// walkGenerators descends through the leading For/If chain a comprehension
// body compiles to, collecting one ast.Comprehension per For (its nested
// filter Ifs folded into that same generator's Ifs, matching Python's own
// `for ... if ... if ...` grouping) until it reaches a block that isn't
// itself headed by a further For, returning that block as innerBody.
func walkGenerators(stmts []ast.Stmt, outerIter ast.Expr) ([]ast.Comprehension, []ast.Stmt, bool) {
	if len(stmts) == 0 {
		return nil, nil, false
	}
	forStmt, ok := stmts[0].(*ast.For)
	if !ok {
		return nil, nil, false
	}

	gen := ast.Comprehension{Target: forStmt.Target, Iter: outerIter, IsAsync: forStmt.IsAsync}
	cur := forStmt.Body
	for len(cur) > 0 {
		ifStmt, ok := cur[0].(*ast.If)
		if !ok || len(ifStmt.Orelse) > 0 {
			break
		}
		gen.Ifs = append(gen.Ifs, ifStmt.Test)
		cur = ifStmt.Body
	}

	gens := []ast.Comprehension{gen}
	if nested, rest, ok := walkGenerators(cur, innerIterName(cur)); ok {
		gens = append(gens, nested...)
		return gens, rest, true
	}
	return gens, cur, true
}

// innerIterName recovers a nested `for` clause's iterable: CPython
// re-materializes it from the outer loop's bound variable rather than a
// constant the builder ever captured, so the nested For's own Iter
// expression (already rebuilt by the ordinary pipeline) is used directly
// instead of cb.Iter, which only ever describes the outermost clause.
func innerIterName(stmts []ast.Stmt) ast.Expr {
	if len(stmts) == 0 {
		return nil
	}
	if f, ok := stmts[0].(*ast.For); ok {
		return f.Iter
	}
	return nil
}

// findYieldValue locates the sole `yield <expr>` expression statement a
// generator-expression's innermost body reduces to (the OpPopTop/ExprStmt
// fix is what makes this visible at all; previously the yield's value
// vanished silently).
func findYieldValue(stmts []ast.Stmt) (ast.Expr, bool) {
	for _, s := range stmts {
		if es, ok := s.(*ast.ExprStmt); ok {
			if y, ok := es.Value.(*ast.Yield); ok && y.Value != nil {
				return y.Value, true
			}
		}
	}
	return nil, false
}

// findReturnedContainer finds the comprehension body's trailing `return
// <container>` and reports its value, the list/set/dict literal that rode
// the stack, accumulating via LIST_APPEND/SET_ADD/MAP_ADD, through the
// whole for-loop.
func findReturnedContainer(stmts []ast.Stmt) (ast.Expr, bool) {
	for i := len(stmts) - 1; i >= 0; i-- {
		if ret, ok := stmts[i].(*ast.Return); ok && ret.Value != nil {
			return ret.Value, true
		}
	}
	return nil, false
}

func fallbackComprehensionCall(cb *stackval.ComprehensionBuilder, off int) ast.Expr {
	return &ast.Call{
		Base: ast.Base{Off: off},
		Func: &ast.Name{Base: ast.Base{Off: off}, ID: comprehensionFuncName(cb.Kind), Ctx: ast.Load},
		Args: []ast.Expr{cb.Iter},
	}
}

func comprehensionFuncName(kind string) string {
	switch kind {
	case "list":
		return "list"
	case "set":
		return "set"
	case "dict":
		return "dict"
	default:
		return "iter"
	}
}
