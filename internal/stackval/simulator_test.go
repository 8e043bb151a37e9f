package stackval_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mna/pez/ast"
	"github.com/mna/pez/bytecode"
	"github.com/mna/pez/internal/stackval"
)

func step(t *testing.T, code *bytecode.Code, stack *stackval.OperandStack, in bytecode.Instruction) stackval.Result {
	t.Helper()
	sim := stackval.NewSimulator(code, bytecode.V311, stack)
	res, err := sim.Step(in)
	require.NoError(t, err)
	return res
}

// TestPopTopDiscardsCallAsExprStmt covers a bare expression statement
// (`foo()`), the shape POP_TOP previously dropped on the floor entirely.
func TestPopTopDiscardsCallAsExprStmt(t *testing.T) {
	code := &bytecode.Code{Name: "m"}
	stack := stackval.NewOperandStack(false)
	stack.Push(stackval.AsExpr(&ast.Call{Func: &ast.Name{ID: "foo"}}))

	res := step(t, code, stack, bytecode.Instruction{Op: bytecode.OpPopTop, Offset: 4})

	es, ok := res.Stmt.(*ast.ExprStmt)
	require.True(t, ok, "expected an ExprStmt, got %T", res.Stmt)
	call, ok := es.Value.(*ast.Call)
	require.True(t, ok)
	require.Equal(t, "foo", call.Func.(*ast.Name).ID)
}

// TestPopTopSilentlyDropsNonEffectfulValue confirms an ordinary discarded
// value (a constant left over from stack bookkeeping) still produces no
// statement, preserving the existing behaviour for the common case.
func TestPopTopSilentlyDropsNonEffectfulValue(t *testing.T) {
	code := &bytecode.Code{Name: "m"}
	stack := stackval.NewOperandStack(false)
	stack.Push(stackval.AsExpr(&ast.Constant{Value: int64(1)}))

	res := step(t, code, stack, bytecode.Instruction{Op: bytecode.OpPopTop, Offset: 4})

	require.Nil(t, res.Stmt)
}

// TestPopTopDiscardsYieldAsExprStmt covers a statement-position `yield x`.
func TestPopTopDiscardsYieldAsExprStmt(t *testing.T) {
	code := &bytecode.Code{Name: "m"}
	stack := stackval.NewOperandStack(false)
	stack.Push(stackval.AsExpr(&ast.Yield{Value: &ast.Name{ID: "x"}}))

	res := step(t, code, stack, bytecode.Instruction{Op: bytecode.OpPopTop, Offset: 4})

	es, ok := res.Stmt.(*ast.ExprStmt)
	require.True(t, ok, "expected an ExprStmt, got %T", res.Stmt)
	require.IsType(t, &ast.Yield{}, es.Value)
}
