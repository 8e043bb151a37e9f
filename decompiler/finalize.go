package decompiler

import (
	"github.com/mna/pez/ast"
	"github.com/mna/pez/bytecode"
)

// finalizeModule applies spec.md §4.5.6's module-level passes: lift the
// leading docstring into Module.Docstring, reorder `from __future__ import`
// statements first (CPython requires them to be the first statements, but
// a compiled module's bytecode doesn't re-derive that ordering constraint
// for us), group consecutive single-name ImportFrom statements sharing a
// module into one, and, pre-3.0, fold runs of legacy PRINT_ITEM/
// PRINT_NEWLINE Print statements the simulator emitted one-per-opcode back
// into the single multi-value print statement the source actually wrote.
func finalizeModule(mod *ast.Module, ver bytecode.Version) {
	mod.Body, mod.Docstring = liftDocstring(mod.Body)
	mod.Body = reorderFutureImports(mod.Body)
	mod.Body = groupImportFrom(mod.Body)
	if !ver.GTE(3, 0) {
		mod.Body = foldLegacyPrints(mod.Body)
	}
}

func liftDocstring(body []ast.Stmt) ([]ast.Stmt, *ast.Constant) {
	if len(body) == 0 {
		return body, nil
	}
	es, ok := body[0].(*ast.ExprStmt)
	if !ok {
		return body, nil
	}
	c, ok := es.Value.(*ast.Constant)
	if !ok {
		return body, nil
	}
	if _, ok := c.Value.(string); !ok {
		return body, nil
	}
	return body, c
}

// reorderFutureImports moves every top-level `from __future__ import ...`
// statement to the front, after a leading docstring if there is one,
// preserving their relative order, and preserving the relative order of
// everything else.
func reorderFutureImports(body []ast.Stmt) []ast.Stmt {
	var futures, rest []ast.Stmt
	start := 0
	if _, doc := liftDocstring(body); doc != nil {
		start = 1
	}
	for _, s := range body[start:] {
		if imp, ok := s.(*ast.ImportFrom); ok && imp.Module == "__future__" {
			futures = append(futures, s)
			continue
		}
		rest = append(rest, s)
	}
	if len(futures) == 0 {
		return body
	}
	out := make([]ast.Stmt, 0, len(body))
	out = append(out, body[:start]...)
	out = append(out, futures...)
	out = append(out, rest...)
	return out
}

// groupImportFrom merges consecutive `from X import a` / `from X import b`
// statements the per-IMPORT_FROM-opcode simulation emits individually
// (each IMPORT_FROM pulls one name) back into one `from X import a, b`,
// the shape the original source almost always used.
func groupImportFrom(body []ast.Stmt) []ast.Stmt {
	out := make([]ast.Stmt, 0, len(body))
	for _, s := range body {
		imp, ok := s.(*ast.ImportFrom)
		if !ok || imp.IsStar {
			out = append(out, s)
			continue
		}
		if n := len(out); n > 0 {
			if prev, ok := out[n-1].(*ast.ImportFrom); ok && !prev.IsStar &&
				prev.Module == imp.Module && prev.Level == imp.Level {
				prev.Names = append(prev.Names, imp.Names...)
				continue
			}
		}
		out = append(out, imp)
	}
	return out
}

// foldLegacyPrints merges a straight run of single-value Print statements
// (one per PRINT_ITEM) followed by a trailing bare Print (the PRINT_NEWLINE)
// back into the one `print a, b, c` statement that produced them; the
// simulator emits PRINT_ITEM as its own one-value Print since it has no
// lookahead across instructions.
func foldLegacyPrints(body []ast.Stmt) []ast.Stmt {
	out := make([]ast.Stmt, 0, len(body))
	i := 0
	for i < len(body) {
		p, ok := body[i].(*ast.Print)
		if !ok || len(p.Values) == 0 || p.Dest != nil {
			out = append(out, body[i])
			i++
			continue
		}
		run := append([]ast.Expr{}, p.Values...)
		j := i + 1
		trailingComma := true
		for j < len(body) {
			next, ok := body[j].(*ast.Print)
			if !ok || next.Dest != nil {
				break
			}
			if len(next.Values) == 0 {
				// The bare PRINT_NEWLINE terminator: ends this run.
				trailingComma = false
				j++
				break
			}
			run = append(run, next.Values...)
			j++
		}
		out = append(out, &ast.Print{Base: p.Base, Values: run, TrailingComma: trailingComma})
		i = j
	}
	return out
}
