package decompiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mna/pez/ast"
	"github.com/mna/pez/internal/stackval"
)

// listCompBody models the decompiled shape builders.go's own doc comment
// describes for `[x*2 for x in xs if x]`: a single For whose body is an
// If guarding a (pointer-mutated, statement-less) LIST_APPEND, followed by
// a Return of the accumulator list literal holding the one appended
// element symbolically.
func listCompBody() []ast.Stmt {
	elt := &ast.BinOp{Left: &ast.Name{ID: "x"}, Op: "*", Right: &ast.Constant{Value: int64(2)}}
	lst := &ast.List{Elts: []ast.Expr{elt}}
	forStmt := &ast.For{
		Target: &ast.Name{ID: "x"},
		Iter:   &ast.Name{ID: ".0"},
		Body: []ast.Stmt{
			&ast.If{Test: &ast.Name{ID: "x"}, Body: nil},
		},
	}
	return []ast.Stmt{forStmt, &ast.Return{Value: lst}}
}

func TestReconstructListComprehension(t *testing.T) {
	cb := &stackval.ComprehensionBuilder{Kind: "list", Iter: &ast.Name{ID: "xs"}}
	e := reconstructComprehension(cb, listCompBody(), 0)

	lc, ok := e.(*ast.ListComp)
	require.True(t, ok, "expected a ListComp, got %T", e)
	require.Len(t, lc.Generators, 1)
	require.Equal(t, "x", lc.Generators[0].Target.(*ast.Name).ID)
	require.Same(t, cb.Iter, lc.Generators[0].Iter)
	require.Len(t, lc.Generators[0].Ifs, 1)

	bin, ok := lc.Elt.(*ast.BinOp)
	require.True(t, ok)
	require.Equal(t, "*", bin.Op)
}

// genExpBody models `(x for x in xs)`'s decompiled shape: the
// OpPopTop/ExprStmt fix is what makes the bare `yield x` statement visible
// at all; without it this body would have an empty For.Body.
func genExpBody() []ast.Stmt {
	yield := &ast.Yield{Value: &ast.Name{ID: "x"}}
	forStmt := &ast.For{
		Target: &ast.Name{ID: "x"},
		Iter:   &ast.Name{ID: ".0"},
		Body:   []ast.Stmt{&ast.ExprStmt{Value: yield}},
	}
	return []ast.Stmt{forStmt}
}

func TestReconstructGeneratorExpression(t *testing.T) {
	cb := &stackval.ComprehensionBuilder{Kind: "gen", Iter: &ast.Name{ID: "xs"}}
	e := reconstructComprehension(cb, genExpBody(), 0)

	ge, ok := e.(*ast.GeneratorExp)
	require.True(t, ok, "expected a GeneratorExp, got %T", e)
	require.Len(t, ge.Generators, 1)
	name, ok := ge.Elt.(*ast.Name)
	require.True(t, ok)
	require.Equal(t, "x", name.ID)
}

// TestReconstructComprehensionFallback confirms an unrecognized nested-code
// shape degrades to a plain call rather than panicking or silently
// dropping the comprehension.
func TestReconstructComprehensionFallback(t *testing.T) {
	cb := &stackval.ComprehensionBuilder{Kind: "list", Iter: &ast.Name{ID: "xs"}}
	e := reconstructComprehension(cb, nil, 0)

	call, ok := e.(*ast.Call)
	require.True(t, ok, "expected a fallback Call, got %T", e)
	require.Equal(t, "list", call.Func.(*ast.Name).ID)
}
