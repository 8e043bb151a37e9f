// Package maincmd implements the pez CLI's flag parsing and top-level
// control flow (spec.md §6's CLI surface), adapted from the teacher's
// mainer.Parser-based Cmd idiom: a flat struct tagged with `flag:"..."`,
// validated once, then dispatched to a single entry point rather than the
// teacher's reflection-discovered subcommand table (pez has exactly one
// operation, decompile-and-print, so there is nothing to dispatch between).
package maincmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mna/mainer"
)

const binName = "pez"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] <file.pyc>
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] <file.pyc>
       %[1]s -h|--help
       %[1]s -v|--version

Decompiles a Python bytecode (.pyc) file back to an approximation of its
source AST.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.
       --output <path>           Write the decompiled tree to <path>
                                  instead of stdout.
       --focus <dotted.name>     Decompile only the nested code object
                                  named by this dotted path (e.g.
                                  "Outer.method.inner").
       --trace-decisions         Log structural-emission decisions to
                                  stderr.
       --trace-loop-guards       Log while/for guard-rewrite decisions
                                  to stderr.
       --trace-sim-block <id>    Log one block's stack simulation,
                                  filtered to block <id>.
`, binName)
)

// Exit codes, per spec.md §6: 0 success, 2 unsupported bytecode version, 3
// bytecode parse error, 4 decompilation error, 64 usage error. These are
// pez's own codes, not the teacher's Success/Failure/InvalidArgs triple,
// since spec.md §6 names a finer-grained contract than mainer's default
// two-way split.
const (
	ExitSuccess            mainer.ExitCode = 0
	ExitUnsupportedVersion mainer.ExitCode = 2
	ExitBytecodeParseError mainer.ExitCode = 3
	ExitDecompileError     mainer.ExitCode = 4
	ExitUsage              mainer.ExitCode = 64
)

// Cmd holds one invocation's parsed flags plus the build metadata main.go
// stamps in at link time.
type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`

	Output          string `flag:"output"`
	Focus           string `flag:"focus"`
	TraceDecisions  bool   `flag:"trace-decisions"`
	TraceLoopGuards bool   `flag:"trace-loop-guards"`
	TraceSimBlock   string `flag:"trace-sim-block"`

	args []string
}

func (c *Cmd) SetArgs(args []string) { c.args = args }

func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}
	if len(c.args) == 0 {
		return errors.New("no input file specified")
	}
	if len(c.args) > 1 {
		return fmt.Errorf("unexpected extra arguments: %s", strings.Join(c.args[1:], " "))
	}
	if c.TraceSimBlock != "" {
		if _, err := strconv.ParseUint(c.TraceSimBlock, 10, 32); err != nil {
			return fmt.Errorf("--trace-sim-block: invalid block id %q", c.TraceSimBlock)
		}
	}
	return nil
}

// Main is pez's entry point, taking the place of the teacher's reflection-
// dispatched Main: parse flags, handle -h/-v, otherwise decompile the sole
// positional argument and map the result to spec.md §6's exit codes.
func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{
		EnvVars:   false,
		EnvPrefix: strings.ToUpper(binName) + "_",
	}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return ExitUsage
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return ExitSuccess
	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return ExitSuccess
	}

	if err := c.Validate(); err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n%s", err, shortUsage)
		return ExitUsage
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	return c.runDecompile(ctx, stdio, c.args[0])
}
