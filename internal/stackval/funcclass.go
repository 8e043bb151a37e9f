package stackval

import "github.com/mna/pez/ast"

// MAKE_FUNCTION flag bits, stable across the versions that use the
// bitmask form (pre-3.13; 3.13+ uses per-attribute SET_FUNCTION_ATTRIBUTE
// instead, with the same bit meanings).
const (
	mkfnDefaults    = 0x01
	mkfnKwdefaults  = 0x02
	mkfnAnnotations = 0x04
	mkfnClosure     = 0x08
)

// makeFunction implements spec.md §4.4's function/class construction group
// for MAKE_FUNCTION: pop the code object (pushed as a CodeRef by the loads
// dispatcher) plus whichever of defaults/kwdefaults/annotations/closure arg
// flags this version sets, and push a Function value the driver later
// turns into an ast.FunctionDef once it has recursively decompiled Code.
func (s *Simulator) makeFunction(arg, offset int) error {
	var closure []ast.Expr
	var annotations map[string]ast.Expr
	var kwdefaults []ast.Keyword
	var defaults []ast.Expr
	var err error

	if arg&mkfnClosure != 0 {
		if closure, err = s.popTupleExprs(offset); err != nil {
			return err
		}
	}
	if arg&mkfnAnnotations != 0 {
		if annotations, err = s.popAnnotationsDict(offset); err != nil {
			return err
		}
	}
	if arg&mkfnKwdefaults != 0 {
		if kwdefaults, err = s.popKeywordDict(offset); err != nil {
			return err
		}
	}
	if arg&mkfnDefaults != 0 {
		if defaults, err = s.popTupleExprs(offset); err != nil {
			return err
		}
	}

	codeVal, err := s.Stack.Pop(offset)
	if err != nil {
		return err
	}
	if codeVal.Kind != CodeRefValue || codeVal.CodeRef == nil {
		return &SoftSim{Reason: "MAKE_FUNCTION operand is not a code object", Offset: offset}
	}

	s.Stack.Push(StackValue{
		Kind: FunctionValue,
		Function: &FunctionBuilder{
			Code:        codeVal.CodeRef,
			Qualname:    codeVal.CodeRef.Qualname,
			Defaults:    defaults,
			KwDefaults:  kwdefaults,
			Annotations: annotations,
			Closure:     closure,
		},
	})
	return nil
}

// setFunctionAttribute implements 3.13+'s per-attribute replacement for
// MAKE_FUNCTION's flag bits: pop the attribute value (a tuple or dict,
// depending on which attribute), then the in-progress Function value,
// attach, and push it back.
func (s *Simulator) setFunctionAttribute(arg, offset int) error {
	attr, err := s.popExpr(offset)
	if err != nil {
		return err
	}
	fnVal, err := s.Stack.Pop(offset)
	if err != nil {
		return err
	}
	if fnVal.Kind != FunctionValue || fnVal.Function == nil {
		return &SoftSim{Reason: "SET_FUNCTION_ATTRIBUTE operand is not a function", Offset: offset}
	}
	fb := fnVal.Function
	switch arg {
	case mkfnClosure:
		tup, ok := attr.(*ast.Tuple)
		if !ok {
			return &SoftSim{Reason: "closure attribute is not a tuple", Offset: offset}
		}
		fb.Closure = tup.Elts
	case mkfnAnnotations:
		d, ok := attr.(*ast.Dict)
		if !ok {
			return &SoftSim{Reason: "annotations attribute is not a dict", Offset: offset}
		}
		fb.Annotations = make(map[string]ast.Expr, len(d.Keys))
		for i, k := range d.Keys {
			if name, ok := constStringName(k); ok {
				fb.Annotations[name] = d.Values[i]
			}
		}
	case mkfnKwdefaults:
		d, ok := attr.(*ast.Dict)
		if !ok {
			return &SoftSim{Reason: "kwdefaults attribute is not a dict", Offset: offset}
		}
		fb.KwDefaults = make([]ast.Keyword, len(d.Keys))
		for i, k := range d.Keys {
			name, _ := constStringName(k)
			fb.KwDefaults[i] = ast.Keyword{Name: name, Value: d.Values[i]}
		}
	case mkfnDefaults:
		tup, ok := attr.(*ast.Tuple)
		if !ok {
			return &SoftSim{Reason: "defaults attribute is not a tuple", Offset: offset}
		}
		fb.Defaults = tup.Elts
	default:
		return &SoftSim{Reason: "unknown SET_FUNCTION_ATTRIBUTE flag", Offset: offset}
	}
	s.Stack.Push(fnVal)
	return nil
}

func (s *Simulator) popTupleExprs(offset int) ([]ast.Expr, error) {
	e, err := s.popExpr(offset)
	if err != nil {
		return nil, err
	}
	tup, ok := e.(*ast.Tuple)
	if !ok {
		return nil, &SoftSim{Reason: "expected a tuple operand", Offset: offset}
	}
	return tup.Elts, nil
}

func (s *Simulator) popAnnotationsDict(offset int) (map[string]ast.Expr, error) {
	e, err := s.popExpr(offset)
	if err != nil {
		return nil, err
	}
	d, ok := e.(*ast.Dict)
	if !ok {
		return nil, &SoftSim{Reason: "expected an annotations dict operand", Offset: offset}
	}
	out := make(map[string]ast.Expr, len(d.Keys))
	for i, k := range d.Keys {
		name, ok := constStringName(k)
		if !ok {
			return nil, &SoftSim{Reason: "annotation key is not a name constant", Offset: offset}
		}
		out[name] = d.Values[i]
	}
	return out, nil
}

func (s *Simulator) popKeywordDict(offset int) ([]ast.Keyword, error) {
	e, err := s.popExpr(offset)
	if err != nil {
		return nil, err
	}
	d, ok := e.(*ast.Dict)
	if !ok {
		return nil, &SoftSim{Reason: "expected a keyword-defaults dict operand", Offset: offset}
	}
	out := make([]ast.Keyword, len(d.Keys))
	for i, k := range d.Keys {
		name, ok := constStringName(k)
		if !ok {
			return nil, &SoftSim{Reason: "keyword-default key is not a name constant", Offset: offset}
		}
		out[i] = ast.Keyword{Name: name, Value: d.Values[i]}
	}
	return out, nil
}

func constStringName(e ast.Expr) (string, bool) {
	c, ok := e.(*ast.Constant)
	if !ok {
		return "", false
	}
	name, ok := c.Value.(string)
	return name, ok
}
