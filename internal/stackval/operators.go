package stackval

import (
	"github.com/mna/pez/ast"
	"github.com/mna/pez/bytecode"
)

// binaryOpNames mirrors CPython's nb_op enum that BINARY_OP's arg indexes
// (3.11+); earlier versions use dedicated BINARY_ADD/BINARY_SUBTRACT/...
// opcodes that the out-of-scope decoder normalizes down to BINARY_OP with
// the matching arg, per code.go's decoding note. Indices 13-25 are the
// in-place (augmented-assignment) variants of 0-12.
var binaryOpNames = [...]string{
	0: "+", 1: "&", 2: "//", 3: "<<", 4: "@", 5: "*", 6: "%", 7: "|", 8: "**",
	9: ">>", 10: "-", 11: "/", 12: "^",
	13: "+", 14: "&", 15: "//", 16: "<<", 17: "@", 18: "*", 19: "%", 20: "|",
	21: "**", 22: ">>", 23: "-", 24: "/", 25: "^",
}

func isInplaceBinaryOp(arg int) bool { return arg >= 13 && arg <= 25 }

var compareOpNames = [...]string{"<", "<=", "==", "!=", ">", ">="}

func compareOpName(arg int) (string, bool) {
	if arg < 0 || arg >= len(compareOpNames) {
		return "", false
	}
	return compareOpNames[arg], true
}

func unaryOpSymbol(op bytecode.Opcode) (string, bool) {
	switch op {
	case bytecode.OpUnaryNot:
		return "not", true
	case bytecode.OpUnaryNeg:
		return "-", true
	case bytecode.OpUnaryPos:
		return "+", true
	case bytecode.OpUnaryInv:
		return "~", true
	}
	return "", false
}

// binaryOp implements BINARY_OP: pop right then left, push a BinOp. An
// in-place arg (13-25) produces the same BinOp node; store() is the one
// that decides whether the eventual assignment surfaces as Assign or
// AugAssign; the simulator doesn't know the assignment target yet.
func (s *Simulator) binaryOp(arg, offset int) error {
	sym, ok := binaryOpNames2(arg)
	if !ok {
		return &SoftSim{Reason: "unknown BINARY_OP argument", Offset: offset}
	}
	right, err := s.popExpr(offset)
	if err != nil {
		return err
	}
	left, err := s.popExpr(offset)
	if err != nil {
		return err
	}
	s.Stack.Push(AsExpr(&ast.BinOp{Base: ast.Base{Off: offset}, Left: left, Op: sym, Right: right}))
	return nil
}

func binaryOpNames2(arg int) (string, bool) {
	if arg < 0 || arg >= len(binaryOpNames) {
		return "", false
	}
	sym := binaryOpNames[arg]
	if sym == "" {
		return "", false
	}
	return sym, true
}

// compareOp implements COMPARE_OP (pre-3.12 dedicated-arg form; 3.12+'s
// bit-5-as-boolean-conversion-flag is stripped by the out-of-scope decoder
// before this core sees the arg, per code.go's decoding note). Chained
// comparisons (`a < b < c`) are reassembled by the driver from a run of
// COMPARE_OP/DUP_TOP/JUMP_IF_FALSE_OR_POP per spec.md §8's boundary
// scenario, not here: this only ever builds a single two-operand Compare.
func (s *Simulator) compareOp(arg, offset int) error {
	sym, ok := compareOpName(arg)
	if !ok {
		return &SoftSim{Reason: "unknown COMPARE_OP argument", Offset: offset}
	}
	right, err := s.popExpr(offset)
	if err != nil {
		return err
	}
	left, err := s.popExpr(offset)
	if err != nil {
		return err
	}
	s.Stack.Push(AsExpr(&ast.Compare{Base: ast.Base{Off: offset}, Left: left, Ops: []string{sym}, Comparators: []ast.Expr{right}}))
	return nil
}

// compareSymbol implements IS_OP/CONTAINS_OP, whose single arg bit selects
// between the positive and negated form of an otherwise fixed operator.
func (s *Simulator) compareSymbol(symbols map[int]string, arg, offset int) error {
	sym, ok := symbols[arg]
	if !ok {
		return &SoftSim{Reason: "unknown comparison-op argument", Offset: offset}
	}
	right, err := s.popExpr(offset)
	if err != nil {
		return err
	}
	left, err := s.popExpr(offset)
	if err != nil {
		return err
	}
	s.Stack.Push(AsExpr(&ast.Compare{Base: ast.Base{Off: offset}, Left: left, Ops: []string{sym}, Comparators: []ast.Expr{right}}))
	return nil
}

func (s *Simulator) unaryOp(op bytecode.Opcode, offset int) error {
	sym, ok := unaryOpSymbol(op)
	if !ok {
		return &SoftSim{Reason: "unknown unary operator", Offset: offset}
	}
	operand, err := s.popExpr(offset)
	if err != nil {
		return err
	}
	s.Stack.Push(AsExpr(&ast.UnaryOp{Base: ast.Base{Off: offset}, Op: sym, Operand: operand}))
	return nil
}
