package stackval

import "github.com/mna/pez/ast"

func (s *Simulator) buildTuple(n, offset int) error {
	elts, err := s.popExprs(n, offset)
	if err != nil {
		return err
	}
	s.Stack.Push(AsExpr(&ast.Tuple{Base: ast.Base{Off: offset}, Elts: elts, Ctx: ast.Load}))
	return nil
}

func (s *Simulator) buildList(n, offset int) error {
	elts, err := s.popExprs(n, offset)
	if err != nil {
		return err
	}
	s.Stack.Push(AsExpr(&ast.List{Base: ast.Base{Off: offset}, Elts: elts, Ctx: ast.Load}))
	return nil
}

func (s *Simulator) buildSet(n, offset int) error {
	elts, err := s.popExprs(n, offset)
	if err != nil {
		return err
	}
	s.Stack.Push(AsExpr(&ast.Set{Base: ast.Base{Off: offset}, Elts: elts}))
	return nil
}

func (s *Simulator) buildMap(n, offset int) error {
	keys := make([]ast.Expr, n)
	values := make([]ast.Expr, n)
	for i := n - 1; i >= 0; i-- {
		v, err := s.popExpr(offset)
		if err != nil {
			return err
		}
		k, err := s.popExpr(offset)
		if err != nil {
			return err
		}
		keys[i], values[i] = k, v
	}
	s.Stack.Push(AsExpr(&ast.Dict{Base: ast.Base{Off: offset}, Keys: keys, Values: values}))
	return nil
}

func (s *Simulator) buildConstKeyMap(n, offset int) error {
	values, err := s.popExprs(n, offset)
	if err != nil {
		return err
	}
	keysVal, err := s.Stack.Pop(offset)
	if err != nil {
		return err
	}
	keysConst, ok := keysVal.AsAstExpr()
	if !ok {
		return &SoftSim{Reason: "BUILD_CONST_KEY_MAP keys operand is not an expression", Offset: offset}
	}
	keysTuple, ok := keysConst.(*ast.Tuple)
	if !ok {
		// A LOAD_CONST of a literal tuple constant also surfaces as a
		// Constant holding a []bytecode.Object; either representation is
		// accepted by unpacking its length to build key Constants.
		cst, ok := keysConst.(*ast.Constant)
		if !ok {
			return &SoftSim{Reason: "invalid const-key map: keys operand is not a tuple", Offset: offset}
		}
		items, ok := cst.Value.([]any)
		if !ok || len(items) != n {
			return &SoftSim{Reason: "invalid const-key map: keys tuple shape mismatch", Offset: offset}
		}
		keys := make([]ast.Expr, n)
		for i, it := range items {
			keys[i] = &ast.Constant{Base: ast.Base{Off: offset}, Value: it}
		}
		s.Stack.Push(AsExpr(&ast.Dict{Base: ast.Base{Off: offset}, Keys: keys, Values: values}))
		return nil
	}
	if len(keysTuple.Elts) != n {
		return &SoftSim{Reason: "invalid const-key map: keys tuple length mismatch", Offset: offset}
	}
	s.Stack.Push(AsExpr(&ast.Dict{Base: ast.Base{Off: offset}, Keys: keysTuple.Elts, Values: values}))
	return nil
}

func (s *Simulator) buildString(n, offset int) error {
	parts, err := s.popExprs(n, offset)
	if err != nil {
		return err
	}
	s.Stack.Push(AsExpr(&ast.JoinedStr{Base: ast.Base{Off: offset}, Values: parts}))
	return nil
}

func (s *Simulator) buildSlice(n, offset int) error {
	var step ast.Expr
	if n == 3 {
		v, err := s.popExpr(offset)
		if err != nil {
			return err
		}
		step = v
	}
	upper, err := s.popExpr(offset)
	if err != nil {
		return err
	}
	lower, err := s.popExpr(offset)
	if err != nil {
		return err
	}
	s.Stack.Push(AsExpr(&ast.Slice{Base: ast.Base{Off: offset}, Lower: lower, Upper: upper, Step: step}))
	return nil
}

// listExtend/setUpdate/dictMerge/dictUpdate implement the single-level
// (i==1) unpacking-merge case (`[*a, *b]`, `{**a, **b}`); deeper stack
// positions (i>1, used when a display literal nests inside another one
// being built) fall back to SoftSim since the shape is rare enough that
// guessing wrong would corrupt the outer literal silently.
func (s *Simulator) listExtend(i, offset int) error {
	if i != 1 {
		return &SoftSim{Reason: "LIST_EXTEND at non-trivial stack depth", Offset: offset}
	}
	rhs, err := s.popExpr(offset)
	if err != nil {
		return err
	}
	top, err := s.Stack.Peek(0, offset)
	if err != nil {
		return err
	}
	lst, ok := top.Expr.(*ast.List)
	if !ok {
		return &SoftSim{Reason: "LIST_EXTEND target is not a list literal", Offset: offset}
	}
	lst.Elts = append(lst.Elts, &ast.Starred{Base: ast.Base{Off: offset}, Value: rhs, Ctx: ast.Load})
	return nil
}

func (s *Simulator) setUpdate(i, offset int) error {
	if i != 1 {
		return &SoftSim{Reason: "SET_UPDATE at non-trivial stack depth", Offset: offset}
	}
	rhs, err := s.popExpr(offset)
	if err != nil {
		return err
	}
	top, err := s.Stack.Peek(0, offset)
	if err != nil {
		return err
	}
	set, ok := top.Expr.(*ast.Set)
	if !ok {
		return &SoftSim{Reason: "SET_UPDATE target is not a set literal", Offset: offset}
	}
	set.Elts = append(set.Elts, &ast.Starred{Base: ast.Base{Off: offset}, Value: rhs, Ctx: ast.Load})
	return nil
}

func (s *Simulator) dictMergeOrUpdate(i, offset int) error {
	if i != 1 {
		return &SoftSim{Reason: "DICT_MERGE/DICT_UPDATE at non-trivial stack depth", Offset: offset}
	}
	rhs, err := s.popExpr(offset)
	if err != nil {
		return err
	}
	top, err := s.Stack.Peek(0, offset)
	if err != nil {
		return err
	}
	d, ok := top.Expr.(*ast.Dict)
	if !ok {
		return &SoftSim{Reason: "DICT_MERGE/DICT_UPDATE target is not a dict literal", Offset: offset}
	}
	d.Keys = append(d.Keys, nil)
	d.Values = append(d.Values, rhs)
	return nil
}

func (s *Simulator) listToTuple(offset int) error {
	v, err := s.popExpr(offset)
	if err != nil {
		return err
	}
	lst, ok := v.(*ast.List)
	if !ok {
		return &SoftSim{Reason: "LIST_TO_TUPLE operand is not a list literal", Offset: offset}
	}
	s.Stack.Push(AsExpr(&ast.Tuple{Base: lst.Base, Elts: lst.Elts, Ctx: ast.Load}))
	return nil
}

// listAppend/setAdd/mapAdd mutate the collection literal i slots below the
// newly popped value(s) without otherwise touching the stack; this is how
// comprehension bodies accumulate results onto the synthetic collection
// the nested code object's FOR_ITER loop builds, which C5's comprehension
// recognition later replaces with a proper ListComp/SetComp/DictComp node.
func (s *Simulator) listAppend(i, offset int) error {
	v, err := s.popExpr(offset)
	if err != nil {
		return err
	}
	target, err := s.Stack.Peek(i-1, offset)
	if err != nil {
		return err
	}
	lst, ok := target.Expr.(*ast.List)
	if !ok {
		return &SoftSim{Reason: "LIST_APPEND target is not a list literal", Offset: offset}
	}
	lst.Elts = append(lst.Elts, v)
	return nil
}

func (s *Simulator) setAdd(i, offset int) error {
	v, err := s.popExpr(offset)
	if err != nil {
		return err
	}
	target, err := s.Stack.Peek(i-1, offset)
	if err != nil {
		return err
	}
	set, ok := target.Expr.(*ast.Set)
	if !ok {
		return &SoftSim{Reason: "SET_ADD target is not a set literal", Offset: offset}
	}
	set.Elts = append(set.Elts, v)
	return nil
}

func (s *Simulator) mapAdd(i, offset int) error {
	value, err := s.popExpr(offset)
	if err != nil {
		return err
	}
	key, err := s.popExpr(offset)
	if err != nil {
		return err
	}
	target, err := s.Stack.Peek(i-1, offset)
	if err != nil {
		return err
	}
	d, ok := target.Expr.(*ast.Dict)
	if !ok {
		return &SoftSim{Reason: "MAP_ADD target is not a dict literal", Offset: offset}
	}
	d.Keys = append(d.Keys, key)
	d.Values = append(d.Values, value)
	return nil
}

// popExpr/popExprs pull AsAstExpr-able values off the stack, surfacing the
// "not-an-expression" SoftSim named by spec.md §7 when a popped value
// isn't one.
func (s *Simulator) popExpr(offset int) (ast.Expr, error) {
	v, err := s.Stack.Pop(offset)
	if err != nil {
		return nil, err
	}
	e, ok := v.AsAstExpr()
	if !ok {
		if v.IsUnknown() {
			return &ast.Name{Base: ast.Base{Off: offset}, ID: "<unknown>", Ctx: ast.Load}, nil
		}
		return nil, &SoftSim{Reason: "operand is not an expression", Offset: offset}
	}
	return e, nil
}

func (s *Simulator) popExprs(n, offset int) ([]ast.Expr, error) {
	out := make([]ast.Expr, n)
	for i := n - 1; i >= 0; i-- {
		e, err := s.popExpr(offset)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}
