package stackval

import "github.com/mna/pez/ast"

// call implements spec.md §4.4's Calls group: CALL/CALL_FUNCTION/
// CALL_METHOD's unified shape once the out-of-scope decoder has resolved
// the version-specific split (PRECALL/CALL on 3.11, CALL_FUNCTION on
// earlier) down to a plain (nargs, kwNames) pair. Two special callee shapes
// are recognised before falling back to an ordinary ast.Call:
//   - the LOAD_BUILD_CLASS marker, which turns the call into class
//     construction (spec.md §4.4's function/class construction group);
//   - an immediately-invoked Function value whose code object is a
//     comprehension, the nested-code-object pattern that signals a list/
//     set/dict/generator comprehension (spec.md §4.4's comprehensions
//     paragraph).
func (s *Simulator) call(nargs int, kwNames []string, offset int) error {
	argVals, err := s.Stack.PopN(nargs, offset)
	if err != nil {
		return err
	}
	callee, err := s.Stack.Pop(offset)
	if err != nil {
		return err
	}
	if marker, err := s.Stack.Peek(0, offset); err == nil && marker.Kind == NullMarker {
		_, _ = s.Stack.Pop(offset)
	}

	npos := nargs - len(kwNames)
	if npos < 0 {
		return &SoftSim{Reason: "CALL has more keyword names than arguments", Offset: offset}
	}

	if callee.Kind == FunctionValue {
		return s.callComprehension(callee.Function, argVals, nargs, kwNames, offset)
	}
	if isBuildClassMarker(callee) {
		return s.callBuildClass(argVals, npos, kwNames, offset)
	}

	calleeExpr, err := s.valueToExpr(callee, offset)
	if err != nil {
		return err
	}
	args, err := s.valuesToExprs(argVals[:npos], offset)
	if err != nil {
		return err
	}
	keywords, err := s.zipKeywords(kwNames, argVals[npos:], offset)
	if err != nil {
		return err
	}
	s.Stack.Push(AsExpr(&ast.Call{Base: ast.Base{Off: offset}, Func: calleeExpr, Args: args, Keywords: keywords}))
	return nil
}

func (s *Simulator) callComprehension(fb *FunctionBuilder, argVals []StackValue, nargs int, kwNames []string, offset int) error {
	if fb == nil || fb.Code == nil || !fb.Code.IsComprehension() || nargs != 1 || len(kwNames) != 0 {
		return &SoftSim{Reason: "invalid comprehension invocation shape", Offset: offset}
	}
	iter, err := s.valueToExpr(argVals[0], offset)
	if err != nil {
		return err
	}
	s.Stack.Push(StackValue{
		Kind: ComprehensionValue,
		Comprehension: &ComprehensionBuilder{
			Kind: fb.Code.ComprehensionKind(),
			Code: fb.Code,
			Iter: iter,
		},
	})
	return nil
}

func (s *Simulator) callBuildClass(argVals []StackValue, npos int, kwNames []string, offset int) error {
	if npos < 2 {
		return &SoftSim{Reason: "__build_class__ called with too few arguments", Offset: offset}
	}
	if argVals[0].Kind != FunctionValue || argVals[0].Function == nil {
		return &SoftSim{Reason: "__build_class__'s first argument is not a function body", Offset: offset}
	}
	nameExpr, err := s.valueToExpr(argVals[1], offset)
	if err != nil {
		return err
	}
	nameConst, ok := nameExpr.(*ast.Constant)
	if !ok {
		return &SoftSim{Reason: "__build_class__'s class-name argument is not a constant", Offset: offset}
	}
	name, _ := nameConst.Value.(string)

	bases, err := s.valuesToExprs(argVals[2:npos], offset)
	if err != nil {
		return err
	}
	keywords, err := s.zipKeywords(kwNames, argVals[npos:], offset)
	if err != nil {
		return err
	}
	s.Stack.Push(StackValue{
		Kind: ClassValue,
		Class: &ClassBuilder{
			Code:     argVals[0].Function.Code,
			Name:     name,
			Bases:    bases,
			Keywords: keywords,
		},
	})
	return nil
}

// callFunctionEx implements CALL_FUNCTION_EX: callee(*args[, **kwargs]).
func (s *Simulator) callFunctionEx(hasKwargs bool, offset int) error {
	var kwargsExpr ast.Expr
	if hasKwargs {
		v, err := s.popExpr(offset)
		if err != nil {
			return err
		}
		kwargsExpr = v
	}
	argsExpr, err := s.popExpr(offset)
	if err != nil {
		return err
	}
	callee, err := s.Stack.Pop(offset)
	if err != nil {
		return err
	}
	if marker, err := s.Stack.Peek(0, offset); err == nil && marker.Kind == NullMarker {
		_, _ = s.Stack.Pop(offset)
	}
	calleeExpr, err := s.valueToExpr(callee, offset)
	if err != nil {
		return err
	}
	call := &ast.Call{Base: ast.Base{Off: offset}, Func: calleeExpr, StarArgs: []ast.Expr{argsExpr}}
	if kwargsExpr != nil {
		call.StarKwargs = []ast.Expr{kwargsExpr}
	}
	s.Stack.Push(AsExpr(call))
	return nil
}

func isBuildClassMarker(v StackValue) bool {
	e, ok := v.AsAstExpr()
	if !ok {
		return false
	}
	n, ok := e.(*ast.Name)
	return ok && n.ID == "__build_class__"
}

func (s *Simulator) valueToExpr(v StackValue, offset int) (ast.Expr, error) {
	if e, ok := v.AsAstExpr(); ok {
		return e, nil
	}
	if v.IsUnknown() {
		return &ast.Name{Base: ast.Base{Off: offset}, ID: "<unknown>", Ctx: ast.Load}, nil
	}
	return nil, &SoftSim{Reason: "operand is not an expression", Offset: offset}
}

func (s *Simulator) valuesToExprs(vs []StackValue, offset int) ([]ast.Expr, error) {
	out := make([]ast.Expr, len(vs))
	for i, v := range vs {
		e, err := s.valueToExpr(v, offset)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func (s *Simulator) zipKeywords(names []string, vals []StackValue, offset int) ([]ast.Keyword, error) {
	if len(names) != len(vals) {
		return nil, &SoftSim{Reason: "keyword name/value count mismatch", Offset: offset}
	}
	out := make([]ast.Keyword, len(names))
	for i, n := range names {
		e, err := s.valueToExpr(vals[i], offset)
		if err != nil {
			return nil, err
		}
		out[i] = ast.Keyword{Name: n, Value: e}
	}
	return out, nil
}
