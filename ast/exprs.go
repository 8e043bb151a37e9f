package ast

import "fmt"

// ExprContext distinguishes how a Name/Attribute/Subscript/Tuple/List is
// used: as a value (Load), an assignment target (Store), or a deletion
// target (Del). Mirrors Python's own ast.expr_context.
type ExprContext int

const (
	Load ExprContext = iota
	Store
	Del
)

func (c ExprContext) String() string {
	switch c {
	case Store:
		return "store"
	case Del:
		return "del"
	default:
		return "load"
	}
}

// Base is embedded in every node to carry its originating bytecode offset.
// It is exported so that internal/stackval and decompiler, which build
// nodes while simulating a block's instructions, can set it directly in a
// composite literal.
type Base struct{ Off int }

func (b Base) Offset() int { return b.Off }

// exprMarker is embedded (unexported) only by types declared in this file,
// closing the Expr interface's implementation set to this package.
type exprMarker struct{}

func (exprMarker) expr() {}

// Name is an identifier reference or binding target, e.g. `x`.
type Name struct {
	Base
	exprMarker
	ID  string
	Ctx ExprContext
}

// Constant is a literal: int, float, complex, str, bytes, bool, None,
// Ellipsis, or a frozen tuple/frozenset of constants.
type Constant struct {
	Base
	exprMarker
	Value any // bytecode.Object
}

// BinOp is a binary arithmetic/bitwise expression, e.g. `a + b`.
type BinOp struct {
	Base
	exprMarker
	Left, Right Expr
	Op          string // "+", "-", "*", "//", "%", "**", "&", "|", "^", "<<", ">>", "@"
}

// UnaryOp is a unary expression, e.g. `-x`, `not x`, `~x`.
type UnaryOp struct {
	Base
	exprMarker
	Operand Expr
	Op      string // "-", "+", "~", "not"
}

// BoolOp is a short-circuit `and`/`or` chain with two or more values.
type BoolOp struct {
	Base
	exprMarker
	Op     string // "and" | "or"
	Values []Expr
}

// Compare is a (possibly chained) comparison, e.g. `a < b < c`.
type Compare struct {
	Base
	exprMarker
	Left        Expr
	Ops         []string // "<", "<=", ">", ">=", "==", "!=", "is", "is not", "in", "not in"
	Comparators []Expr
}

// IfExp is a ternary conditional expression `a if cond else b`.
type IfExp struct {
	Base
	exprMarker
	Test, Body, Orelse Expr
}

// Keyword is a `name=value` call argument, or a `**value` splat when Name
// is empty.
type Keyword struct {
	Name  string
	Value Expr
}

// Call is a function/method invocation.
type Call struct {
	Base
	exprMarker
	Func     Expr
	Args     []Expr
	Keywords []Keyword
	// StarArgs/StarKwargs hold `*args`/`**kwargs` splats, kept distinct from
	// Args/Keywords because they must be re-emitted with their star prefix.
	StarArgs   []Expr
	StarKwargs []Expr
}

// Attribute is `value.attr`.
type Attribute struct {
	Base
	exprMarker
	Value Expr
	Attr  string
	Ctx   ExprContext
}

// Subscript is `value[index]`.
type Subscript struct {
	Base
	exprMarker
	Value, Index Expr
	Ctx          ExprContext
}

// Slice is `lo:hi:step`, any part of which may be nil.
type Slice struct {
	Base
	exprMarker
	Lower, Upper, Step Expr
}

// Tuple/List/Set/Dict are composite literals.
type Tuple struct {
	Base
	exprMarker
	Elts []Expr
	Ctx  ExprContext
}
type List struct {
	Base
	exprMarker
	Elts []Expr
	Ctx  ExprContext
}
type Set struct {
	Base
	exprMarker
	Elts []Expr
}
type Dict struct {
	Base
	exprMarker
	// Keys[i] is nil for a `**value` merge entry, in which case
	// Values[i] is the merged expression.
	Keys, Values []Expr
}

// Comprehension is one `for ... in ... if ...` clause of a comprehension.
type Comprehension struct {
	Target  Expr
	Iter    Expr
	Ifs     []Expr
	IsAsync bool
}

// ListComp/SetComp/DictComp/GeneratorExp share the same generator shape;
// DictComp has both Key and Value, the others only Elt.
type ListComp struct {
	Base
	exprMarker
	Elt        Expr
	Generators []Comprehension
}
type SetComp struct {
	Base
	exprMarker
	Elt        Expr
	Generators []Comprehension
}
type GeneratorExp struct {
	Base
	exprMarker
	Elt        Expr
	Generators []Comprehension
}
type DictComp struct {
	Base
	exprMarker
	Key, Value Expr
	Generators []Comprehension
}

// Lambda is an anonymous single-expression function.
type Lambda struct {
	Base
	exprMarker
	Params Params
	Body   Expr
}

// Starred is `*value`, valid in assignment targets, call args, and
// display literals.
type Starred struct {
	Base
	exprMarker
	Value Expr
	Ctx   ExprContext
}

// Yield/YieldFrom/Await are suspension-point expressions.
type Yield struct {
	Base
	exprMarker
	Value Expr // nil for bare `yield`
}
type YieldFrom struct {
	Base
	exprMarker
	Value Expr
}
type Await struct {
	Base
	exprMarker
	Value Expr
}

// FormattedValue/JoinedStr implement f-strings.
type FormattedValue struct {
	Base
	exprMarker
	Value      Expr
	Conversion rune // 0, 's', 'r', 'a'
	FormatSpec Expr // nil or a JoinedStr/Constant
}
type JoinedStr struct {
	Base
	exprMarker
	Values []Expr // Constant or FormattedValue
}

// NamedExpr is the walrus operator `x := value`.
type NamedExpr struct {
	Base
	exprMarker
	Target *Name
	Value  Expr
}

// ParenExpr wraps another expression to force an explicit grouping; the
// decompiler only emits it where omitting parens would change precedence.
type ParenExpr struct {
	Base
	exprMarker
	Value Expr
}

func (n *Name) Format(f fmt.State, verb rune)      { format(f, verb, n, "name "+n.ID, nil) }
func (n *Name) Walk(Visitor)                       {}
func (n *Constant) Format(f fmt.State, verb rune)   { format(f, verb, n, fmt.Sprintf("const %v", n.Value), nil) }
func (n *Constant) Walk(Visitor)                    {}
func (n *BinOp) Format(f fmt.State, verb rune)      { format(f, verb, n, "binop "+n.Op, nil) }
func (n *BinOp) Walk(v Visitor)                     { Walk(v, n.Left); Walk(v, n.Right) }
func (n *UnaryOp) Format(f fmt.State, verb rune)    { format(f, verb, n, "unaryop "+n.Op, nil) }
func (n *UnaryOp) Walk(v Visitor)                   { Walk(v, n.Operand) }
func (n *BoolOp) Format(f fmt.State, verb rune) {
	format(f, verb, n, "boolop "+n.Op, map[string]int{"values": len(n.Values)})
}
func (n *BoolOp) Walk(v Visitor) {
	for _, e := range n.Values {
		Walk(v, e)
	}
}
func (n *Compare) Format(f fmt.State, verb rune) {
	format(f, verb, n, "compare", map[string]int{"ops": len(n.Ops)})
}
func (n *Compare) Walk(v Visitor) {
	Walk(v, n.Left)
	for _, e := range n.Comparators {
		Walk(v, e)
	}
}
func (n *IfExp) Format(f fmt.State, verb rune) { format(f, verb, n, "ifexp", nil) }
func (n *IfExp) Walk(v Visitor)                { Walk(v, n.Test); Walk(v, n.Body); Walk(v, n.Orelse) }
func (n *Call) Format(f fmt.State, verb rune) {
	format(f, verb, n, "call", map[string]int{"args": len(n.Args), "kwargs": len(n.Keywords)})
}
func (n *Call) Walk(v Visitor) {
	Walk(v, n.Func)
	for _, e := range n.Args {
		Walk(v, e)
	}
	for _, k := range n.Keywords {
		Walk(v, k.Value)
	}
	for _, e := range n.StarArgs {
		Walk(v, e)
	}
	for _, e := range n.StarKwargs {
		Walk(v, e)
	}
}
func (n *Attribute) Format(f fmt.State, verb rune) { format(f, verb, n, "attribute ."+n.Attr, nil) }
func (n *Attribute) Walk(v Visitor)                { Walk(v, n.Value) }
func (n *Subscript) Format(f fmt.State, verb rune)  { format(f, verb, n, "subscript", nil) }
func (n *Subscript) Walk(v Visitor)                 { Walk(v, n.Value); Walk(v, n.Index) }
func (n *Slice) Format(f fmt.State, verb rune)      { format(f, verb, n, "slice", nil) }
func (n *Slice) Walk(v Visitor) {
	Walk(v, n.Lower)
	Walk(v, n.Upper)
	Walk(v, n.Step)
}
func (n *Tuple) Format(f fmt.State, verb rune) {
	format(f, verb, n, "tuple", map[string]int{"elts": len(n.Elts)})
}
func (n *Tuple) Walk(v Visitor) {
	for _, e := range n.Elts {
		Walk(v, e)
	}
}
func (n *List) Format(f fmt.State, verb rune) {
	format(f, verb, n, "list", map[string]int{"elts": len(n.Elts)})
}
func (n *List) Walk(v Visitor) {
	for _, e := range n.Elts {
		Walk(v, e)
	}
}
func (n *Set) Format(f fmt.State, verb rune) {
	format(f, verb, n, "set", map[string]int{"elts": len(n.Elts)})
}
func (n *Set) Walk(v Visitor) {
	for _, e := range n.Elts {
		Walk(v, e)
	}
}
func (n *Dict) Format(f fmt.State, verb rune) {
	format(f, verb, n, "dict", map[string]int{"pairs": len(n.Values)})
}
func (n *Dict) Walk(v Visitor) {
	for i := range n.Values {
		if n.Keys[i] != nil {
			Walk(v, n.Keys[i])
		}
		Walk(v, n.Values[i])
	}
}
func (n *ListComp) Format(f fmt.State, verb rune) { format(f, verb, n, "listcomp", nil) }
func (n *ListComp) Walk(v Visitor)                { walkComp(v, n.Elt, nil, n.Generators) }
func (n *SetComp) Format(f fmt.State, verb rune)  { format(f, verb, n, "setcomp", nil) }
func (n *SetComp) Walk(v Visitor)                 { walkComp(v, n.Elt, nil, n.Generators) }
func (n *GeneratorExp) Format(f fmt.State, verb rune) { format(f, verb, n, "genexp", nil) }
func (n *GeneratorExp) Walk(v Visitor)                { walkComp(v, n.Elt, nil, n.Generators) }
func (n *DictComp) Format(f fmt.State, verb rune)     { format(f, verb, n, "dictcomp", nil) }
func (n *DictComp) Walk(v Visitor)                    { walkComp(v, n.Key, n.Value, n.Generators) }

func walkComp(v Visitor, elt, val Expr, gens []Comprehension) {
	if elt != nil {
		Walk(v, elt)
	}
	if val != nil {
		Walk(v, val)
	}
	for _, g := range gens {
		Walk(v, g.Target)
		Walk(v, g.Iter)
		for _, e := range g.Ifs {
			Walk(v, e)
		}
	}
}

func (n *Lambda) Format(f fmt.State, verb rune) { format(f, verb, n, "lambda", nil) }
func (n *Lambda) Walk(v Visitor)                { Walk(v, n.Body) }
func (n *Starred) Format(f fmt.State, verb rune) { format(f, verb, n, "starred", nil) }
func (n *Starred) Walk(v Visitor)                { Walk(v, n.Value) }
func (n *Yield) Format(f fmt.State, verb rune)    { format(f, verb, n, "yield", nil) }
func (n *Yield) Walk(v Visitor) {
	if n.Value != nil {
		Walk(v, n.Value)
	}
}
func (n *YieldFrom) Format(f fmt.State, verb rune) { format(f, verb, n, "yieldfrom", nil) }
func (n *YieldFrom) Walk(v Visitor)                { Walk(v, n.Value) }
func (n *Await) Format(f fmt.State, verb rune)     { format(f, verb, n, "await", nil) }
func (n *Await) Walk(v Visitor)                    { Walk(v, n.Value) }
func (n *FormattedValue) Format(f fmt.State, verb rune) {
	format(f, verb, n, "formattedvalue", nil)
}
func (n *FormattedValue) Walk(v Visitor) {
	Walk(v, n.Value)
	if n.FormatSpec != nil {
		Walk(v, n.FormatSpec)
	}
}
func (n *JoinedStr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "joinedstr", map[string]int{"parts": len(n.Values)})
}
func (n *JoinedStr) Walk(v Visitor) {
	for _, e := range n.Values {
		Walk(v, e)
	}
}
func (n *NamedExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "namedexpr", nil) }
func (n *NamedExpr) Walk(v Visitor)                { Walk(v, n.Target); Walk(v, n.Value) }
func (n *ParenExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "paren", nil) }
func (n *ParenExpr) Walk(v Visitor)                { Walk(v, n.Value) }

// Unwrap strips ParenExpr wrappers, mirroring how the teacher's
// ast.Unwrap collapses nested grouping parens before structural checks.
func Unwrap(e Expr) Expr {
	for {
		p, ok := e.(*ParenExpr)
		if !ok {
			return e
		}
		e = p.Value
	}
}

// IsAssignable reports whether e can appear as an assignment target: a
// Name, Attribute, Subscript, Tuple, List, or Starred whose own value is
// assignable.
func IsAssignable(e Expr) bool {
	switch e := Unwrap(e).(type) {
	case *Name, *Attribute, *Subscript:
		return true
	case *Tuple:
		return allAssignable(e.Elts)
	case *List:
		return allAssignable(e.Elts)
	case *Starred:
		return IsAssignable(e.Value)
	default:
		return false
	}
}

func allAssignable(elts []Expr) bool {
	for _, e := range elts {
		if !IsAssignable(e) {
			return false
		}
	}
	return true
}
