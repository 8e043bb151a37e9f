// Command pez decompiles a Python bytecode (.pyc) file back to an
// approximation of its source AST (spec.md §6).
package main

import (
	"os"

	"github.com/mna/mainer"

	"github.com/mna/pez/internal/maincmd"
)

var (
	version   = "{v}"
	buildDate = "{d}"
)

func main() {
	c := maincmd.Cmd{BuildVersion: version, BuildDate: buildDate}
	os.Exit(int(c.Main(os.Args, mainer.CurrentStdio())))
}
