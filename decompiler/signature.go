package decompiler

import (
	"github.com/mna/pez/ast"
	"github.com/mna/pez/bytecode"
	"github.com/mna/pez/internal/stackval"
)

// buildFunctionDef assembles an ast.FunctionDef from a decompiled nested
// code object plus the FunctionBuilder MAKE_FUNCTION/SET_FUNCTION_ATTRIBUTE
// accumulated, per spec.md §4.5.5's signature-extraction paragraph: the
// parameter split comes from Argcount/PosonlyArgcount/KwonlyArgcount,
// defaults fill the trailing positional/regular slots, kwdefaults and
// annotations are matched by name.
func buildFunctionDef(name string, fb *stackval.FunctionBuilder, body []ast.Stmt, off int) *ast.FunctionDef {
	code := fb.Code
	params := splitParams(code, fb)
	body, doc := extractDocstring(body)

	return &ast.FunctionDef{
		Base:        ast.Base{Off: off},
		Name:        name,
		Params:      params,
		Body:        body,
		IsAsync:     code.Flags.Has(bytecode.FlagCoroutine) || code.Flags.Has(bytecode.FlagAsyncGenerator),
		IsGenerator: code.Flags.Has(bytecode.FlagGenerator) || code.Flags.Has(bytecode.FlagAsyncGenerator),
		Docstring:   doc,
	}
}

// splitParams partitions a nested code object's Varnames prefix into
// positional-only / regular / *args / keyword-only / **kwargs groups,
// attaching defaults/kwdefaults/annotations collected by the builder.
func splitParams(code *bytecode.Code, fb *stackval.FunctionBuilder) ast.Params {
	var params ast.Params

	total := code.Argcount
	posonly := code.PosonlyArgcount
	kwonly := code.KwonlyArgcount
	names := code.Varnames
	idx := 0

	mkParam := func(n string) ast.Param {
		p := ast.Param{Name: n}
		if fb.Annotations != nil {
			if ann, ok := fb.Annotations[n]; ok {
				p.Annotation = ann
			}
		}
		return p
	}

	for i := 0; i < posonly && idx < len(names); i++ {
		params.PosOnly = append(params.PosOnly, mkParam(names[idx]))
		idx++
	}
	for i := posonly; i < total && idx < len(names); i++ {
		params.Regular = append(params.Regular, mkParam(names[idx]))
		idx++
	}

	// Positional defaults fill the trailing slots of PosOnly+Regular, in
	// order, per CPython's own co_consts layout for __defaults__.
	allPos := append(append([]ast.Param{}, params.PosOnly...), params.Regular...)
	nd := len(fb.Defaults)
	for i := 0; i < nd && len(allPos)-nd+i >= 0; i++ {
		pos := len(allPos) - nd + i
		allPos[pos].Default = fb.Defaults[i]
	}
	params.PosOnly = allPos[:len(params.PosOnly)]
	params.Regular = allPos[len(params.PosOnly):]

	if code.Flags.Has(bytecode.FlagVarargs) && idx < len(names) {
		p := mkParam(names[idx])
		params.Vararg = &p
		idx++
	}

	for i := 0; i < kwonly && idx < len(names); i++ {
		p := mkParam(names[idx])
		for _, kw := range fb.KwDefaults {
			if kw.Name == names[idx] {
				p.Default = kw.Value
			}
		}
		params.KwOnly = append(params.KwOnly, p)
		idx++
	}

	if code.Flags.Has(bytecode.FlagVarKeywords) && idx < len(names) {
		p := mkParam(names[idx])
		params.Kwarg = &p
	}

	return params
}

// buildClassDef assembles an ast.ClassDef from a decompiled class body plus
// the __build_class__ call's bases/keywords, trimming the implicit
// `__module__`/`__qualname__` assignments and (pre-3.0) the trailing
// `return locals()` the compiler injects into every class body, per
// spec.md §4.5.5.
func buildClassDef(name string, cb *stackval.ClassBuilder, body []ast.Stmt, off int) *ast.ClassDef {
	body = trimClassPrelude(body)
	body, doc := extractDocstring(body)

	return &ast.ClassDef{
		Base:     ast.Base{Off: off},
		Name:     name,
		Bases:    cb.Bases,
		Keywords: cb.Keywords,
		Body:     body,
		Docstring: doc,
	}
}

func trimClassPrelude(body []ast.Stmt) []ast.Stmt {
	out := body[:0:0]
	for _, s := range body {
		if a, ok := s.(*ast.AssignStmt); ok && len(a.Targets) == 1 {
			if n, ok := a.Targets[0].(*ast.Name); ok && (n.ID == "__module__" || n.ID == "__qualname__") {
				continue
			}
		}
		if r, ok := s.(*ast.Return); ok {
			if c, ok := r.Value.(*ast.Call); ok {
				if n, ok := c.Func.(*ast.Name); ok && n.ID == "locals" {
					continue
				}
			}
		}
		out = append(out, s)
	}
	return out
}

// extractDocstring peels off a leading bare string-literal ExprStmt, the
// shape CPython compiles a docstring into, and reports it separately the
// way ast.FunctionDef/ClassDef's Docstring field expects.
func extractDocstring(body []ast.Stmt) ([]ast.Stmt, string) {
	if len(body) == 0 {
		return body, ""
	}
	es, ok := body[0].(*ast.ExprStmt)
	if !ok {
		return body, ""
	}
	c, ok := es.Value.(*ast.Constant)
	if !ok {
		return body, ""
	}
	s, ok := c.Value.(string)
	if !ok {
		return body, ""
	}
	return body[1:], s
}
