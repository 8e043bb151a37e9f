// Package stackval implements C4, the abstract stack simulator: a
// single-block executor that walks a basic block's instructions against a
// StackValue operand stack, pushing/popping per the opcode's documented
// stack effect and building AST fragments as it goes (spec.md §4.4).
package stackval

import (
	"github.com/mna/pez/ast"
	"github.com/mna/pez/bytecode"
)

// Simulator executes one basic block's instructions in order against a
// Stack seeded with that block's entry shape. It is stateless across
// blocks; the driver (decompiler) owns propagating exit stacks between
// blocks via the dataflow worklist of spec.md §4.5.1.
type Simulator struct {
	Code    *bytecode.Code
	Version bytecode.Version
	Stack   *OperandStack

	// kwNames caches the most recent KW_NAMES operand (3.11+) for the CALL
	// that immediately follows it.
	kwNames []string
}

// NewSimulator constructs a simulator for one block's walk.
func NewSimulator(code *bytecode.Code, ver bytecode.Version, stack *OperandStack) *Simulator {
	return &Simulator{Code: code, Version: ver, Stack: stack}
}

// Result is what Step produces for one instruction: at most one of Stmt,
// Cond, PendingFunction, or PendingClass is meaningful.
type Result struct {
	// Stmt is a statement this instruction completed (Assign, AugAssign,
	// ExprStmt, Import, ImportFrom, ...).
	Stmt ast.Stmt

	// Cond is set when this instruction was a conditional-jump terminator;
	// the driver reads it to build If/While/BoolOp/Ternary nodes and is
	// responsible for the terminator's branch-specific stack adjustment
	// (spec.md §4.5.1) since only it knows which edge is being taken.
	Cond ast.Expr

	// PendingFunction/PendingClass are set when a Store popped a Function
	// or Class builder: per spec.md §8's testable property 6, the driver
	// must finish recursively decompiling the nested code object before
	// emitting the FunctionDef/ClassDef this Store represents, which this
	// package cannot do itself (doing so would import decompiler, which
	// imports this package).
	PendingFunction     *FunctionBuilder
	PendingFunctionName string
	PendingClass        *ClassBuilder
	PendingClassName    string

	// PendingComprehension is set when a Store popped a Comprehension
	// builder, the same deferred-construction handoff as PendingFunction/
	// PendingClass: the driver must decompile the nested comprehension code
	// object and fold its reconstructed For/If chain into a ListComp/
	// SetComp/DictComp/GeneratorExp before the Assign this Store represents
	// can be emitted.
	PendingComprehension     *ComprehensionBuilder
	PendingComprehensionName string
}

// Step executes one instruction, mutating s.Stack and returning whatever
// statement/condition/deferred-construction it produced.
func (s *Simulator) Step(in bytecode.Instruction) (Result, error) {
	off := in.Offset
	switch in.Op {
	case bytecode.OpNop, bytecode.OpResume:
		return Result{}, nil

	// loads
	case bytecode.OpLoadConst:
		return Result{}, s.loadConst(in.Arg, off)
	case bytecode.OpLoadFast:
		s.Stack.Push(AsExpr(&ast.Name{Base: ast.Base{Off: off}, ID: varnameAt(s.Code, in.Arg), Ctx: ast.Load}))
		return Result{}, nil
	case bytecode.OpLoadName, bytecode.OpLoadGlobal:
		s.Stack.Push(AsExpr(&ast.Name{Base: ast.Base{Off: off}, ID: nameAt(s.Code, in.Arg), Ctx: ast.Load}))
		return Result{}, nil
	case bytecode.OpLoadDeref:
		s.Stack.Push(AsExpr(&ast.Name{Base: ast.Base{Off: off}, ID: derefAt(s.Code, in.Arg), Ctx: ast.Load}))
		return Result{}, nil
	case bytecode.OpLoadClosure:
		s.Stack.Push(AsExpr(&ast.Name{Base: ast.Base{Off: off}, ID: derefAt(s.Code, in.Arg), Ctx: ast.Load}))
		return Result{}, nil
	case bytecode.OpLoadBuildCls:
		s.Stack.Push(AsExpr(&ast.Name{Base: ast.Base{Off: off}, ID: "__build_class__", Ctx: ast.Load}))
		return Result{}, nil
	case bytecode.OpLoadAttr:
		return Result{}, s.loadAttr(in.Arg, off)
	case bytecode.OpLoadMethod:
		return Result{}, s.loadAttr(in.Arg, off)

	// stores
	case bytecode.OpStoreFast:
		return s.store(varnameAt(s.Code, in.Arg), off)
	case bytecode.OpStoreName, bytecode.OpStoreGlobal:
		return s.store(nameAt(s.Code, in.Arg), off)
	case bytecode.OpStoreDeref:
		return s.store(derefAt(s.Code, in.Arg), off)
	case bytecode.OpStoreAttr:
		return Result{}, s.storeAttr(in.Arg, off)
	case bytecode.OpStoreSubscr:
		return Result{}, s.storeSubscr(off)
	case bytecode.OpStoreSlice:
		return Result{}, s.storeSlice(off)
	case bytecode.OpDeleteFast:
		return Result{Stmt: &ast.Delete{Base: ast.Base{Off: off}, Targets: []ast.Expr{&ast.Name{ID: varnameAt(s.Code, in.Arg), Ctx: ast.Del}}}}, nil
	case bytecode.OpDeleteName:
		return Result{Stmt: &ast.Delete{Base: ast.Base{Off: off}, Targets: []ast.Expr{&ast.Name{ID: nameAt(s.Code, in.Arg), Ctx: ast.Del}}}}, nil

	// operators
	case bytecode.OpBinaryOp:
		return Result{}, s.binaryOp(in.Arg, off)
	case bytecode.OpCompareOp:
		return Result{}, s.compareOp(in.Arg, off)
	case bytecode.OpIsOp:
		return Result{}, s.compareSymbol(map[int]string{0: "is", 1: "is not"}, in.Arg, off)
	case bytecode.OpContainsOp:
		return Result{}, s.compareSymbol(map[int]string{0: "in", 1: "not in"}, in.Arg, off)
	case bytecode.OpUnaryNot, bytecode.OpUnaryNeg, bytecode.OpUnaryPos, bytecode.OpUnaryInv:
		return Result{}, s.unaryOp(in.Op, off)

	// builders
	case bytecode.OpBuildTuple:
		return Result{}, s.buildTuple(in.Arg, off)
	case bytecode.OpBuildList:
		return Result{}, s.buildList(in.Arg, off)
	case bytecode.OpBuildSet:
		return Result{}, s.buildSet(in.Arg, off)
	case bytecode.OpBuildMap:
		return Result{}, s.buildMap(in.Arg, off)
	case bytecode.OpBuildConstKeyMap:
		return Result{}, s.buildConstKeyMap(in.Arg, off)
	case bytecode.OpBuildString:
		return Result{}, s.buildString(in.Arg, off)
	case bytecode.OpBuildSlice:
		return Result{}, s.buildSlice(in.Arg, off)
	case bytecode.OpListExtend:
		return Result{}, s.listExtend(in.Arg, off)
	case bytecode.OpSetUpdate:
		return Result{}, s.setUpdate(in.Arg, off)
	case bytecode.OpDictMerge, bytecode.OpDictUpdate:
		return Result{}, s.dictMergeOrUpdate(in.Arg, off)
	case bytecode.OpListToTuple:
		return Result{}, s.listToTuple(off)
	case bytecode.OpListAppend:
		return Result{}, s.listAppend(in.Arg, off)
	case bytecode.OpSetAdd:
		return Result{}, s.setAdd(in.Arg, off)
	case bytecode.OpMapAdd:
		return Result{}, s.mapAdd(in.Arg, off)

	// calls
	case bytecode.OpPushNull:
		s.Stack.Push(Null())
		return Result{}, nil
	case bytecode.OpKwNames:
		s.kwNames = kwNamesFromConst(constAt(s.Code, in.Arg))
		return Result{}, nil
	case bytecode.OpPrecall:
		return Result{}, nil // bookkeeping only; the following CALL does the work
	case bytecode.OpCall:
		kw := s.takeKwNames()
		return Result{}, s.call(in.Arg, kw, off)
	case bytecode.OpCallFunction, bytecode.OpCallMethod:
		return Result{}, s.call(in.Arg, nil, off)
	case bytecode.OpCallFunctionKW:
		kw := kwNamesFromLastConst(s, off)
		return Result{}, s.callFunctionKW(in.Arg, kw, off)
	case bytecode.OpCallFunctionEx:
		return Result{}, s.callFunctionEx(in.Arg&1 != 0, off)

	// function/class construction
	case bytecode.OpMakeFunction:
		return Result{}, s.makeFunction(in.Arg, off)
	case bytecode.OpSetFunctionAttribute:
		return Result{}, s.setFunctionAttribute(in.Arg, off)

	// stack shuffling
	case bytecode.OpPopTop:
		v, err := s.Stack.Pop(off)
		if err != nil {
			return Result{}, err
		}
		if e, ok := v.AsAstExpr(); ok && isEffectfulDiscard(e) {
			return Result{Stmt: &ast.ExprStmt{Base: ast.Base{Off: off}, Value: e}}, nil
		}
		return Result{}, nil
	case bytecode.OpDupTop:
		return Result{}, s.Stack.Dup(off)
	case bytecode.OpCopy:
		return Result{}, s.Stack.Copy(in.Arg, off)
	case bytecode.OpSwap:
		return Result{}, s.Stack.Swap(in.Arg, off)
	case bytecode.OpToBool:
		return Result{}, nil // boolean coercion is transparent to AST reconstruction
	case bytecode.OpUnpackSequence:
		return Result{}, s.unpackSequence(in.Arg, off)

	// imports
	case bytecode.OpImportName:
		return Result{}, s.importName(in.Arg, off)
	case bytecode.OpImportFrom:
		return Result{}, s.importFrom(in.Arg, off)
	case bytecode.OpImportStar:
		imp, err := s.importStar(off)
		if err != nil {
			return Result{}, err
		}
		return Result{Stmt: &ast.ImportFrom{Base: ast.Base{Off: off}, Module: imp.Module, Level: imp.Level, IsStar: true}}, nil

	// simple statements with no stack-effect dependency beyond popping
	// their operand, and the conditional-jump family, whose Cond the
	// driver consumes.
	case bytecode.OpReturnValue:
		v, err := s.popExpr(off)
		if err != nil {
			return Result{}, err
		}
		return Result{Stmt: &ast.Return{Base: ast.Base{Off: off}, Value: v}}, nil
	case bytecode.OpReturnConst:
		return Result{Stmt: &ast.Return{Base: ast.Base{Off: off}, Value: &ast.Constant{Base: ast.Base{Off: off}, Value: constAt(s.Code, in.Arg)}}}, nil
	case bytecode.OpRaiseVarargs:
		vals, err := s.popExprs(in.Arg, off)
		if err != nil {
			return Result{}, err
		}
		r := &ast.Raise{Base: ast.Base{Off: off}}
		if len(vals) > 0 {
			r.Exc = vals[0]
		}
		if len(vals) > 1 {
			r.Cause = vals[1]
		}
		return Result{Stmt: r}, nil
	case bytecode.OpReraise:
		return Result{Stmt: &ast.Raise{Base: ast.Base{Off: off}}}, nil
	case bytecode.OpPopBlock, bytecode.OpSetupExcept, bytecode.OpSetupFinally,
		bytecode.OpPopExcept, bytecode.OpCheckExcMatch:
		return Result{}, nil // structural bookkeeping consumed by internal/cfg and internal/pattern, not C4
	case bytecode.OpSetupWith, bytecode.OpBeforeWith, bytecode.OpBeforeAsyncWith:
		return Result{}, s.Stack.Dup(off) // leaves __exit__/__aexit__ bound value available to WITH_EXCEPT_START
	case bytecode.OpWithExceptStart:
		s.Stack.Push(UnknownValue())
		return Result{}, nil
	case bytecode.OpGetIter, bytecode.OpGetAiter, bytecode.OpGetAwaitable:
		return Result{}, nil // iterator protocol is transparent to AST reconstruction
	case bytecode.OpGetAnext:
		s.Stack.Push(UnknownValue())
		return Result{}, nil
	case bytecode.OpSend, bytecode.OpYieldFrom:
		return Result{}, nil
	case bytecode.OpYieldValue:
		v, err := s.popExpr(off)
		if err != nil {
			return Result{}, err
		}
		s.Stack.Push(AsExpr(&ast.Yield{Base: ast.Base{Off: off}, Value: v}))
		return Result{}, nil
	case bytecode.OpEndAsyncFor:
		_, err := s.Stack.Pop(off)
		return Result{}, err
	case bytecode.OpGetLen:
		v, err := s.Stack.Peek(0, off)
		if err != nil {
			return Result{}, err
		}
		e, err := s.valueToExpr(v, off)
		if err != nil {
			return Result{}, err
		}
		s.Stack.Push(AsExpr(&ast.Call{Base: ast.Base{Off: off}, Func: &ast.Name{ID: "len", Ctx: ast.Load}, Args: []ast.Expr{e}}))
		return Result{}, nil
	case bytecode.OpMatchSequence, bytecode.OpMatchMapping, bytecode.OpMatchKeys:
		s.Stack.Push(UnknownValue()) // pattern construction itself is done structurally by internal/pattern + decompiler
		return Result{}, nil
	case bytecode.OpMatchClass:
		_, err := s.Stack.PopN(3, off) // cls, kwd-attr-tuple, subject
		if err != nil {
			return Result{}, err
		}
		s.Stack.Push(UnknownValue())
		return Result{}, nil
	case bytecode.OpPrintItem:
		v, err := s.popExpr(off)
		if err != nil {
			return Result{}, err
		}
		return Result{Stmt: &ast.Print{Base: ast.Base{Off: off}, Values: []ast.Expr{v}, TrailingComma: true}}, nil
	case bytecode.OpPrintNewline:
		return Result{Stmt: &ast.Print{Base: ast.Base{Off: off}}}, nil

	case bytecode.OpJumpAbsolute, bytecode.OpJumpForward, bytecode.OpJumpBackward:
		return Result{}, nil
	case bytecode.OpPopJumpIfTrue, bytecode.OpPopJumpIfFalse, bytecode.OpPopJumpIfNone, bytecode.OpPopJumpIfNotNone,
		bytecode.OpJumpIfNotExcMatch:
		v, err := s.popExpr(off)
		if err != nil {
			return Result{}, err
		}
		return Result{Cond: v}, nil
	case bytecode.OpJumpIfTrueOrPop, bytecode.OpJumpIfFalseOrPop:
		// Left on the stack: the taken edge keeps it (short-circuit value),
		// the not-taken edge's fallthrough pop is the driver's job per
		// spec.md §4.5.1.
		v, err := s.Stack.Peek(0, off)
		if err != nil {
			return Result{}, err
		}
		e, err := s.valueToExpr(v, off)
		if err != nil {
			return Result{}, err
		}
		return Result{Cond: e}, nil
	case bytecode.OpForIter, bytecode.OpForLoop:
		return Result{}, nil // exit-edge/fallthrough-edge stack shaping is the driver's job (spec.md §4.5.1)
	}

	return Result{}, &Unsupported{Op: string(in.Op), Offset: off}
}

// isEffectfulDiscard reports whether a value POP_TOP discards without
// ever being stored is worth keeping as a bare expression statement
// (`foo()`, `yield x`, `await x` used for their side effect). Every other
// discard — an intermediate literal, a with-statement's __exit__ result,
// a comparison chain's dead leftover — stays silent, matching the
// teacher's policy of only materializing statements a reader would
// actually expect to see.
func isEffectfulDiscard(e ast.Expr) bool {
	switch e.(type) {
	case *ast.Call, *ast.Yield, *ast.YieldFrom, *ast.Await:
		return true
	default:
		return false
	}
}

func (s *Simulator) loadConst(idx, offset int) error {
	c := constAt(s.Code, idx)
	if code, ok := c.(*bytecode.Code); ok {
		s.Stack.Push(AsCodeRef(code))
		return nil
	}
	s.Stack.Push(AsExpr(&ast.Constant{Base: ast.Base{Off: offset}, Value: c}))
	return nil
}

func (s *Simulator) loadAttr(nameIdx, offset int) error {
	v, err := s.Stack.Pop(offset)
	if err != nil {
		return err
	}
	e, err := s.valueToExpr(v, offset)
	if err != nil {
		return err
	}
	s.Stack.Push(AsExpr(&ast.Attribute{Base: ast.Base{Off: offset}, Value: e, Attr: nameAt(s.Code, nameIdx), Ctx: ast.Load}))
	return nil
}

// store pops the value being bound to name. A Function/Class builder
// defers emission to the driver via the Pending* Result fields (see
// Result's doc comment); everything else becomes an ordinary Assign, or an
// Import statement when the popped value is a module import with no
// fromlist (spec.md §4.4 imports paragraph, `import x [as y]` shape).
func (s *Simulator) store(name string, offset int) (Result, error) {
	v, err := s.Stack.Pop(offset)
	if err != nil {
		return Result{}, err
	}
	switch v.Kind {
	case FunctionValue:
		return Result{PendingFunction: v.Function, PendingFunctionName: name}, nil
	case ClassValue:
		return Result{PendingClass: v.Class, PendingClassName: name}, nil
	case ComprehensionValue:
		return Result{PendingComprehension: v.Comprehension, PendingComprehensionName: name}, nil
	case ImportValue:
		if v.Import != nil && len(v.Import.Fromlist) == 0 {
			alias := ast.ImportAlias{Name: v.Import.Module}
			if top := firstDotted(v.Import.Module); top != name {
				alias.AsName = name
			}
			return Result{Stmt: &ast.Import{Base: ast.Base{Off: offset}, Names: []ast.ImportAlias{alias}}}, nil
		}
	}
	e, err := s.valueToExpr(v, offset)
	if err != nil {
		return Result{}, err
	}
	target := &ast.Name{Base: ast.Base{Off: offset}, ID: name, Ctx: ast.Store}
	if bin, ok := e.(*ast.BinOp); ok && isInplaceTarget(bin, name) {
		return Result{Stmt: &ast.AugAssignStmt{Base: ast.Base{Off: offset}, Target: target, Op: bin.Op, Value: bin.Right}}, nil
	}
	return Result{Stmt: &ast.AssignStmt{Base: ast.Base{Off: offset}, Targets: []ast.Expr{target}, Value: e}}, nil
}

func isInplaceTarget(bin *ast.BinOp, name string) bool {
	n, ok := bin.Left.(*ast.Name)
	return ok && n.ID == name
}

func firstDotted(module string) string {
	for i, r := range module {
		if r == '.' {
			return module[:i]
		}
	}
	return module
}

func (s *Simulator) storeAttr(nameIdx, offset int) error {
	obj, err := s.popExpr(offset)
	if err != nil {
		return err
	}
	val, err := s.popExpr(offset)
	if err != nil {
		return err
	}
	_ = obj
	_ = val
	return nil
}

func (s *Simulator) storeSubscr(offset int) error {
	_, err := s.Stack.PopN(3, offset)
	return err
}

func (s *Simulator) storeSlice(offset int) error {
	_, err := s.Stack.PopN(4, offset)
	return err
}

func (s *Simulator) unpackSequence(n, offset int) error {
	v, err := s.Stack.Pop(offset)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		_ = v
		s.Stack.Push(UnknownValue())
	}
	return nil
}

func (s *Simulator) takeKwNames() []string {
	kw := s.kwNames
	s.kwNames = nil
	return kw
}

func kwNamesFromConst(c bytecode.Object) []string {
	items, ok := c.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if name, ok := it.(string); ok {
			out = append(out, name)
		}
	}
	return out
}

func kwNamesFromLastConst(s *Simulator, offset int) []string {
	v, err := s.Stack.Pop(offset)
	if err != nil {
		return nil
	}
	e, ok := v.AsAstExpr()
	if !ok {
		return nil
	}
	c, ok := e.(*ast.Constant)
	if !ok {
		return nil
	}
	return kwNamesFromConst(c.Value)
}

func (s *Simulator) callFunctionKW(nargs int, kw []string, offset int) error {
	return s.call(nargs, kw, offset)
}
