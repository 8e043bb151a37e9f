package stackval

import "github.com/mna/pez/bytecode"

// Index resolution into a Code object's name tables. The out-of-scope
// per-version decoder normalizes LOAD_GLOBAL's null-push bit and
// LOAD_ATTR's method bit before handing instructions to the core (code.go's
// Code.Instructions doc), so arg is always a plain table index here.

func nameAt(c *bytecode.Code, idx int) string {
	if idx < 0 || idx >= len(c.Names) {
		return ""
	}
	return c.Names[idx]
}

func varnameAt(c *bytecode.Code, idx int) string {
	if idx < 0 || idx >= len(c.Varnames) {
		return ""
	}
	return c.Varnames[idx]
}

// derefAt resolves a LOAD_DEREF/STORE_DEREF/LOAD_CLOSURE index into the
// combined cellvars-then-freevars space CPython lays contiguously for
// fast-locals-to-cell resolution.
func derefAt(c *bytecode.Code, idx int) string {
	if idx < len(c.Cellvars) {
		return c.Cellvars[idx]
	}
	idx -= len(c.Cellvars)
	if idx >= 0 && idx < len(c.Freevars) {
		return c.Freevars[idx]
	}
	return ""
}

func constAt(c *bytecode.Code, idx int) bytecode.Object {
	if idx < 0 || idx >= len(c.Consts) {
		return nil
	}
	return c.Consts[idx]
}
