package maincmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/mna/pez/ast"
)

// dumpTree prints mod as an indented tree of each node's Format('v')
// label, per ast.Node's own doc comment that its Formatter output is for
// "tracing and tests" — the regenerated-Python-source pretty-printer
// spec.md §1 calls out as a downstream, out-of-scope collaborator, so this
// is pez's own stand-in until one is wired up.
func dumpTree(w io.Writer, mod *ast.Module) {
	d := &treeDumper{w: w}
	ast.Walk(d, mod)
}

type treeDumper struct {
	w     io.Writer
	depth int
}

func (d *treeDumper) Visit(n ast.Node, dir ast.VisitDirection) ast.Visitor {
	if dir == ast.VisitExit {
		d.depth--
		return d
	}
	fmt.Fprintf(d.w, "%s%v\n", strings.Repeat("  ", d.depth), n)
	d.depth++
	return d
}
