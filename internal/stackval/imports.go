package stackval

import "github.com/mna/pez/ast"

// importName implements IMPORT_NAME: pops the fromlist constant (a tuple
// of names, or None for a plain `import x`) and the level constant (number
// of leading dots for a relative import), pushed immediately before it by
// the compiler's own LOAD_CONST pair, per spec.md §4.4's imports
// paragraph.
func (s *Simulator) importName(nameIdx, offset int) error {
	fromlistVal, err := s.Stack.Pop(offset)
	if err != nil {
		return err
	}
	levelVal, err := s.Stack.Pop(offset)
	if err != nil {
		return err
	}
	level := 0
	if lc, ok := fromExprConstant(levelVal); ok {
		if n, ok := lc.(int); ok {
			level = n
		}
	}
	var fromlist []string
	isStar := false
	if fc, ok := fromExprConstant(fromlistVal); ok {
		switch v := fc.(type) {
		case []any:
			for _, it := range v {
				if name, ok := it.(string); ok {
					fromlist = append(fromlist, name)
				}
			}
		case nil:
			// plain `import x`, no fromlist
		}
	}
	s.Stack.Push(StackValue{
		Kind: ImportValue,
		Import: &Import{
			Module:   nameAt(s.Code, nameIdx),
			Level:    level,
			Fromlist: fromlist,
			IsStar:   isStar,
		},
	})
	return nil
}

// importFrom implements IMPORT_FROM: peek (not pop) the Import value
// beneath, push a Name expression bound to the requested attribute; the
// module object stays on the stack for any further IMPORT_FROMs in the
// same `from x import a, b, c` statement.
func (s *Simulator) importFrom(nameIdx, offset int) error {
	top, err := s.Stack.Peek(0, offset)
	if err != nil {
		return err
	}
	if top.Kind != ImportValue {
		return &SoftSim{Reason: "IMPORT_FROM target is not an import value", Offset: offset}
	}
	s.Stack.Push(AsExpr(&ast.Name{Base: ast.Base{Off: offset}, ID: nameAt(s.Code, nameIdx), Ctx: ast.Load}))
	return nil
}

// importStar implements IMPORT_STAR: pop the Import value and mark it,
// producing no expression (the driver turns this directly into an
// ImportFrom statement with IsStar set).
func (s *Simulator) importStar(offset int) (*Import, error) {
	v, err := s.Stack.Pop(offset)
	if err != nil {
		return nil, err
	}
	if v.Kind != ImportValue || v.Import == nil {
		return nil, &SoftSim{Reason: "IMPORT_STAR target is not an import value", Offset: offset}
	}
	v.Import.IsStar = true
	return v.Import, nil
}

func fromExprConstant(v StackValue) (any, bool) {
	e, ok := v.AsAstExpr()
	if !ok {
		return nil, false
	}
	c, ok := e.(*ast.Constant)
	if !ok {
		return nil, false
	}
	return c.Value, true
}
