// Package ast defines the abstract syntax tree produced by the
// decompilation core: the sole contract handed to the (out-of-scope)
// pretty-printer (spec.md §6). Unlike a parser's AST, nodes here carry no
// source position — their provenance is a bytecode offset, optionally kept
// for tracing, never for text layout (see SPEC_FULL.md "MODULE: ast").
package ast

import (
	"fmt"
	"sort"
	"strings"
)

// Node represents any node in the tree.
type Node interface {
	// Every Node implements fmt.Formatter so it can print a description of
	// itself for tracing and tests. Supported verbs are 'v' and 's'; the '#'
	// flag prints child-count information, and a width truncates/pads the
	// label (padded right with '-', not padded at all with '+').
	fmt.Formatter

	// Offset reports the bytecode offset this node was built from, or -1 if
	// it has none (e.g. a node synthesized by finalisation).
	Offset() int

	// Walk visits this node's children with v.
	Walk(v Visitor)
}

// Expr represents a Python expression node.
type Expr interface {
	Node
	expr()
}

// Stmt represents a Python statement node.
type Stmt interface {
	Node

	// BlockEnding reports whether this statement can only be meaningfully
	// the last statement of a block (return, raise, break, continue, pass
	// is NOT block-ending despite being inert).
	BlockEnding() bool
}

// Module is the root node produced for a top-level code object.
type Module struct {
	Name string
	Body []Stmt
	// Docstring, if non-nil, is the module's leading string-literal
	// expression statement, already also present as Body[0] for printers
	// that don't special-case it.
	Docstring *Constant
}

func (n *Module) Format(f fmt.State, verb rune) {
	format(f, verb, n, "module "+n.Name, map[string]int{"body": len(n.Body)})
}
func (n *Module) Offset() int { return -1 }
func (n *Module) Walk(v Visitor) {
	for _, s := range n.Body {
		Walk(v, s)
	}
}

func format(f fmt.State, verb rune, n Node, label string, counts map[string]int) {
	if verb != 'v' && verb != 's' {
		fmt.Fprintf(f, "%%!%c(%T)", verb, n)
		return
	}

	label = strings.ReplaceAll(label, "\r\n", "⏎")
	label = strings.ReplaceAll(label, "\n", "⏎")
	label = strings.ReplaceAll(label, "\t", "⭾")

	if w, ok := f.Width(); ok {
		minus, plus := f.Flag('-'), f.Flag('+')
		runes := []rune(label)
		switch {
		case len(runes) >= w:
			runes = runes[:w]
		case minus:
			runes = append(runes, []rune(strings.Repeat(" ", w-len(runes)))...)
		case !plus:
			runes = append([]rune(strings.Repeat(" ", w-len(runes))), runes...)
		}
		label = string(runes)
	}

	fmt.Fprint(f, label)
	if f.Flag('#') && len(counts) > 0 {
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprint(f, " {")
		for i, k := range keys {
			if i > 0 {
				fmt.Fprint(f, ", ")
			}
			fmt.Fprintf(f, "%s=%d", k, counts[k])
		}
		fmt.Fprint(f, "}")
	}
}
