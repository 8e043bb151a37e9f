package stackval

import (
	"github.com/mna/pez/ast"
	"github.com/mna/pez/bytecode"
)

// Kind discriminates StackValue's closed sum, spec.md §3.
type Kind int

const (
	Unknown Kind = iota
	ExprValue
	FunctionValue
	ClassValue
	ComprehensionValue
	ImportValue
	CodeRefValue
	SavedLocalValue
	NullMarker
)

// FunctionBuilder accumulates the pieces MAKE_FUNCTION/SET_FUNCTION_ATTRIBUTE
// attach to a nested code object before the pending Store turns it into an
// ast.FunctionDef; the nested Code itself is decompiled by a fresh
// Decompiler in the parent's arena once the driver (not C4) reaches that
// point, per spec.md §4.4's function/class construction paragraph.
type FunctionBuilder struct {
	Code        *bytecode.Code
	Qualname    string
	Defaults    []ast.Expr
	KwDefaults  []ast.Keyword
	Annotations map[string]ast.Expr
	Closure     []ast.Expr
}

// ClassBuilder accumulates the operands of a `__build_class__(func, name,
// *bases, **keywords)` call into the pieces an ast.ClassDef needs.
type ClassBuilder struct {
	Code     *bytecode.Code
	Name     string
	Bases    []ast.Expr
	Keywords []ast.Keyword
}

// ComprehensionBuilder is a nested comprehension code object plus the
// outermost iterable it was called with, before C5 reconstructs the
// ast.ListComp/SetComp/DictComp/GeneratorExp generators from its CFG.
type ComprehensionBuilder struct {
	Kind string // "list" | "set" | "dict" | "gen"
	Code *bytecode.Code
	Iter ast.Expr
}

// Import carries an IMPORT_NAME/IMPORT_FROM/IMPORT_STAR's operands, per
// spec.md §3's `Import{module, level, fromlist}` variant.
type Import struct {
	Module   string
	Level    int
	Fromlist []string
	IsStar   bool
}

// StackValue is the closed tagged union spec.md §3 describes: Expr,
// Function, Class, Comprehension, Import, CodeRef, SavedLocal, NullMarker,
// Unknown. Exactly one payload field is meaningful, selected by Kind.
// Unknown is the merge identity (spec.md §4.5.1): merging two differing
// concrete values yields Unknown, and the only safe operation on it is to
// pop it.
type StackValue struct {
	Kind Kind

	Expr          ast.Expr
	Function      *FunctionBuilder
	Class         *ClassBuilder
	Comprehension *ComprehensionBuilder
	Import        *Import
	CodeRef       *bytecode.Code
	SavedLocal    string
}

// AsExpr builds an Expr-kind value.
func AsExpr(e ast.Expr) StackValue { return StackValue{Kind: ExprValue, Expr: e} }

// AsCodeRef wraps a nested code-object constant, pushed in place of an
// ordinary Constant by the loads dispatcher when LOAD_CONST's operand is a
// *bytecode.Code rather than a literal.
func AsCodeRef(c *bytecode.Code) StackValue { return StackValue{Kind: CodeRefValue, CodeRef: c} }

// AsSavedLocal marks a value the simulator knows only by the local-variable
// slot name it came from, used for DUP-free local/cell bookkeeping across
// exception-handler boundaries where the concrete expression was lost.
func AsSavedLocal(name string) StackValue { return StackValue{Kind: SavedLocalValue, SavedLocal: name} }

// Null is the PUSH_NULL / self-marker placeholder CALL's operand layout
// needs distinguished from an actual Unknown payload.
func Null() StackValue { return StackValue{Kind: NullMarker} }

// UnknownValue constructs the merge-identity / underflow placeholder.
func UnknownValue() StackValue { return StackValue{Kind: Unknown} }

// IsUnknown reports whether v is the Unknown variant.
func (v StackValue) IsUnknown() bool { return v.Kind == Unknown }

// AsAstExpr returns v's expression if it holds one usable as an Expr (an
// Expr value, or a CodeRef/Import promoted nowhere — those are not
// expressions and return ok=false), for callers (Stores, operators,
// builders) that require an operand to already be an expression.
func (v StackValue) AsAstExpr() (ast.Expr, bool) {
	if v.Kind == ExprValue && v.Expr != nil {
		return v.Expr, true
	}
	return nil, false
}

// Clone deep-copies v so the dataflow worklist of spec.md §4.5.1 can
// propagate a stack across more than one successor edge without aliasing.
// Expr clones deep-copy the AST subtree; Function/Class/Import clones are
// shallow reference copies to their builder, consistent with spec.md §4.4's
// cloning paragraph (the builder is appended to only by construction and
// frozen by the time a Store reads it).
func (v StackValue) Clone() StackValue {
	switch v.Kind {
	case ExprValue:
		return StackValue{Kind: ExprValue, Expr: cloneExpr(v.Expr)}
	default:
		return v
	}
}

// Equal implements spec.md §4.5.1's merge unification: structural equality
// for Expr (names match, constants match, identical AST shape), reference/
// field equality for everything else.
func (v StackValue) Equal(other StackValue) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case ExprValue:
		return exprEqual(v.Expr, other.Expr)
	case FunctionValue:
		return v.Function == other.Function
	case ClassValue:
		return v.Class == other.Class
	case ComprehensionValue:
		return v.Comprehension == other.Comprehension
	case ImportValue:
		return v.Import == other.Import
	case CodeRefValue:
		return v.CodeRef == other.CodeRef
	case SavedLocalValue:
		return v.SavedLocal == other.SavedLocal
	default:
		return true // NullMarker, Unknown: identical by kind alone
	}
}
