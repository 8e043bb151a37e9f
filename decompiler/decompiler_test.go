package decompiler_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mna/pez/ast"
	"github.com/mna/pez/bytecode"
	"github.com/mna/pez/decompiler"
)

func instr(off int, op bytecode.Opcode, arg int) bytecode.Instruction {
	return bytecode.Instruction{Offset: off, Op: op, Arg: arg, Size: 2}
}

// TestDecompileEmptyFunction covers spec.md §8's boundary scenario: a
// function whose body is exactly `pass` compiles to
// [RESUME 0, LOAD_CONST None, RETURN_VALUE], and must decompile to a
// single Pass statement, not an empty body and not a spurious `return
// None`.
func TestDecompileEmptyFunction(t *testing.T) {
	code := &bytecode.Code{
		Name:   "f",
		Consts: []bytecode.Object{nil},
		Instructions: []bytecode.Instruction{
			instr(0, bytecode.OpResume, 0),
			instr(2, bytecode.OpLoadConst, 0),
			instr(4, bytecode.OpReturnValue, 0),
		},
		RawBytes: make([]byte, 6),
	}

	mod, err := decompiler.Decompile(code, bytecode.V311, decompiler.Options{})
	require.NoError(t, err)
	require.Len(t, mod.Body, 1)

	_, ok := mod.Body[0].(*ast.Pass)
	require.True(t, ok, "expected a single Pass, got %T", mod.Body[0])
}

// TestDecompileStraightLineReturn exercises the simplest multi-instruction
// straight-line block: `return a + b`.
func TestDecompileStraightLineReturn(t *testing.T) {
	code := &bytecode.Code{
		Name:     "add",
		Varnames: []string{"a", "b"},
		Argcount: 2,
		Instructions: []bytecode.Instruction{
			instr(0, bytecode.OpResume, 0),
			instr(2, bytecode.OpLoadFast, 0),
			instr(4, bytecode.OpLoadFast, 1),
			instr(6, bytecode.OpBinaryOp, 0), // "+"
			instr(8, bytecode.OpReturnValue, 0),
		},
		RawBytes: make([]byte, 10),
	}

	mod, err := decompiler.Decompile(code, bytecode.V311, decompiler.Options{})
	require.NoError(t, err)
	require.Len(t, mod.Body, 1)

	ret, ok := mod.Body[0].(*ast.Return)
	require.True(t, ok)
	bin, ok := ret.Value.(*ast.BinOp)
	require.True(t, ok)
	require.Equal(t, "+", bin.Op)

	left, ok := bin.Left.(*ast.Name)
	require.True(t, ok)
	require.Equal(t, "a", left.ID)
	right, ok := bin.Right.(*ast.Name)
	require.True(t, ok)
	require.Equal(t, "b", right.ID)
}

// TestDecompileFocusNotFound confirms the --focus path's error shape when
// the dotted segment doesn't name any nested code object.
func TestDecompileFocusNotFound(t *testing.T) {
	code := &bytecode.Code{
		Name: "m",
		Instructions: []bytecode.Instruction{
			instr(0, bytecode.OpResume, 0),
			instr(2, bytecode.OpLoadConst, 0),
			instr(4, bytecode.OpReturnValue, 0),
		},
		Consts:   []bytecode.Object{nil},
		RawBytes: make([]byte, 6),
	}

	_, err := decompiler.Decompile(code, bytecode.V311, decompiler.Options{Focus: []string{"missing"}})
	require.Error(t, err)
}
