package stackval

import (
	"github.com/mna/pez/ast"
	"github.com/mna/pez/bytecode"
)

// constantEqual compares two constant-pool values without risking a panic
// on the uncomparable dynamic types (FrozenSet's slice field, tuples
// represented as []bytecode.Object) that `any == any` would otherwise
// attempt to compare directly.
func constantEqual(x, y bytecode.Object) bool {
	switch xv := x.(type) {
	case bytecode.FrozenSet:
		yv, ok := y.(bytecode.FrozenSet)
		if !ok || len(xv.Items) != len(yv.Items) {
			return false
		}
		for i := range xv.Items {
			if !constantEqual(xv.Items[i], yv.Items[i]) {
				return false
			}
		}
		return true
	case []bytecode.Object:
		yv, ok := y.([]bytecode.Object)
		if !ok || len(xv) != len(yv) {
			return false
		}
		for i := range xv {
			if !constantEqual(xv[i], yv[i]) {
				return false
			}
		}
		return true
	default:
		return x == y
	}
}

// cloneExpr deep-copies an AST expression subtree so the same value can be
// propagated down more than one CFG successor edge without aliasing,
// per spec.md §4.4's cloning paragraph.
func cloneExpr(e ast.Expr) ast.Expr {
	if e == nil {
		return nil
	}
	switch n := e.(type) {
	case *ast.Name:
		cp := *n
		return &cp
	case *ast.Constant:
		cp := *n
		return &cp
	case *ast.BinOp:
		cp := *n
		cp.Left, cp.Right = cloneExpr(n.Left), cloneExpr(n.Right)
		return &cp
	case *ast.UnaryOp:
		cp := *n
		cp.Operand = cloneExpr(n.Operand)
		return &cp
	case *ast.BoolOp:
		cp := *n
		cp.Values = cloneExprs(n.Values)
		return &cp
	case *ast.Compare:
		cp := *n
		cp.Left = cloneExpr(n.Left)
		cp.Comparators = cloneExprs(n.Comparators)
		return &cp
	case *ast.IfExp:
		cp := *n
		cp.Test, cp.Body, cp.Orelse = cloneExpr(n.Test), cloneExpr(n.Body), cloneExpr(n.Orelse)
		return &cp
	case *ast.Call:
		cp := *n
		cp.Func = cloneExpr(n.Func)
		cp.Args = cloneExprs(n.Args)
		cp.Keywords = cloneKeywords(n.Keywords)
		cp.StarArgs = cloneExprs(n.StarArgs)
		cp.StarKwargs = cloneExprs(n.StarKwargs)
		return &cp
	case *ast.Attribute:
		cp := *n
		cp.Value = cloneExpr(n.Value)
		return &cp
	case *ast.Subscript:
		cp := *n
		cp.Value, cp.Index = cloneExpr(n.Value), cloneExpr(n.Index)
		return &cp
	case *ast.Slice:
		cp := *n
		cp.Lower, cp.Upper, cp.Step = cloneExpr(n.Lower), cloneExpr(n.Upper), cloneExpr(n.Step)
		return &cp
	case *ast.Tuple:
		cp := *n
		cp.Elts = cloneExprs(n.Elts)
		return &cp
	case *ast.List:
		cp := *n
		cp.Elts = cloneExprs(n.Elts)
		return &cp
	case *ast.Set:
		cp := *n
		cp.Elts = cloneExprs(n.Elts)
		return &cp
	case *ast.Dict:
		cp := *n
		cp.Keys, cp.Values = cloneExprs(n.Keys), cloneExprs(n.Values)
		return &cp
	case *ast.ListComp:
		cp := *n
		cp.Elt = cloneExpr(n.Elt)
		cp.Generators = cloneGenerators(n.Generators)
		return &cp
	case *ast.SetComp:
		cp := *n
		cp.Elt = cloneExpr(n.Elt)
		cp.Generators = cloneGenerators(n.Generators)
		return &cp
	case *ast.GeneratorExp:
		cp := *n
		cp.Elt = cloneExpr(n.Elt)
		cp.Generators = cloneGenerators(n.Generators)
		return &cp
	case *ast.DictComp:
		cp := *n
		cp.Key, cp.Value = cloneExpr(n.Key), cloneExpr(n.Value)
		cp.Generators = cloneGenerators(n.Generators)
		return &cp
	case *ast.Lambda:
		cp := *n
		cp.Body = cloneExpr(n.Body)
		return &cp
	case *ast.Starred:
		cp := *n
		cp.Value = cloneExpr(n.Value)
		return &cp
	case *ast.Yield:
		cp := *n
		cp.Value = cloneExpr(n.Value)
		return &cp
	case *ast.YieldFrom:
		cp := *n
		cp.Value = cloneExpr(n.Value)
		return &cp
	case *ast.Await:
		cp := *n
		cp.Value = cloneExpr(n.Value)
		return &cp
	case *ast.FormattedValue:
		cp := *n
		cp.Value = cloneExpr(n.Value)
		cp.FormatSpec = cloneExpr(n.FormatSpec)
		return &cp
	case *ast.JoinedStr:
		cp := *n
		cp.Values = cloneExprs(n.Values)
		return &cp
	case *ast.NamedExpr:
		cp := *n
		if t, ok := cloneExpr(n.Target).(*ast.Name); ok {
			cp.Target = t
		}
		cp.Value = cloneExpr(n.Value)
		return &cp
	case *ast.ParenExpr:
		cp := *n
		cp.Value = cloneExpr(n.Value)
		return &cp
	default:
		return e
	}
}

func cloneExprs(es []ast.Expr) []ast.Expr {
	if es == nil {
		return nil
	}
	out := make([]ast.Expr, len(es))
	for i, e := range es {
		out[i] = cloneExpr(e)
	}
	return out
}

func cloneKeywords(ks []ast.Keyword) []ast.Keyword {
	if ks == nil {
		return nil
	}
	out := make([]ast.Keyword, len(ks))
	for i, k := range ks {
		out[i] = ast.Keyword{Name: k.Name, Value: cloneExpr(k.Value)}
	}
	return out
}

func cloneGenerators(gs []ast.Comprehension) []ast.Comprehension {
	if gs == nil {
		return nil
	}
	out := make([]ast.Comprehension, len(gs))
	for i, g := range gs {
		out[i] = ast.Comprehension{
			Target:  cloneExpr(g.Target),
			Iter:    cloneExpr(g.Iter),
			Ifs:     cloneExprs(g.Ifs),
			IsAsync: g.IsAsync,
		}
	}
	return out
}

// exprEqual implements the structural-equality half of spec.md §4.5.1's
// merge unification: names match, constants match, identical AST shape.
func exprEqual(a, b ast.Expr) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case *ast.Name:
		y, ok := b.(*ast.Name)
		return ok && x.ID == y.ID && x.Ctx == y.Ctx
	case *ast.Constant:
		y, ok := b.(*ast.Constant)
		return ok && constantEqual(x.Value, y.Value)
	case *ast.Attribute:
		y, ok := b.(*ast.Attribute)
		return ok && x.Attr == y.Attr && x.Ctx == y.Ctx && exprEqual(x.Value, y.Value)
	case *ast.BinOp:
		y, ok := b.(*ast.BinOp)
		return ok && x.Op == y.Op && exprEqual(x.Left, y.Left) && exprEqual(x.Right, y.Right)
	case *ast.Subscript:
		y, ok := b.(*ast.Subscript)
		return ok && exprEqual(x.Value, y.Value) && exprEqual(x.Index, y.Index)
	case *ast.Tuple:
		y, ok := b.(*ast.Tuple)
		return ok && exprSliceEqual(x.Elts, y.Elts)
	case *ast.Call:
		y, ok := b.(*ast.Call)
		return ok && exprEqual(x.Func, y.Func) && exprSliceEqual(x.Args, y.Args)
	default:
		// Conservatively unequal for shapes not named by spec.md's merge
		// example list; the driver still converges because Unknown is a
		// fixpoint, just possibly sooner via a coarser comparison.
		return false
	}
}

func exprSliceEqual(a, b []ast.Expr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !exprEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
