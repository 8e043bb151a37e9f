package maincmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mna/mainer"

	"github.com/mna/pez/bytecode"
	"github.com/mna/pez/decompiler"
)

// minSupportedVersion is the oldest release the opcode table is expected
// to decode meaningfully; spec.md §6 allows anything the table knows, but
// a loader that hands back something older than this is almost certainly
// misreading the magic number rather than looking at real 1.x bytecode.
var minSupportedVersion = bytecode.Version{Major: 1, Minor: 5}

// runDecompile is pez's single operation: load path's code object,
// decompile it, print the result. Every failure is mapped to one of
// spec.md §6's exit codes rather than returned bare, so Main never needs
// its own second layer of error classification.
func (c *Cmd) runDecompile(ctx context.Context, stdio mainer.Stdio, path string) mainer.ExitCode {
	code, ver, err := loadFile(path)
	if err != nil {
		var uv *UnsupportedVersionError
		if asUnsupportedVersion(err, &uv) {
			fmt.Fprintln(stdio.Stderr, err)
			return ExitUnsupportedVersion
		}
		fmt.Fprintln(stdio.Stderr, err)
		return ExitBytecodeParseError
	}
	if ver.Major != 0 && !ver.GTE(minSupportedVersion.Major, minSupportedVersion.Minor) {
		fmt.Fprintf(stdio.Stderr, "%s: unsupported Python version %s\n", path, ver)
		return ExitUnsupportedVersion
	}

	tracer, err := newTracer(stdio.Stderr, c.TraceDecisions, c.TraceLoopGuards, c.TraceSimBlock)
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return ExitUsage
	}

	opts := decompiler.Options{Tracer: tracer}
	if c.Focus != "" {
		opts.Focus = strings.Split(c.Focus, ".")
	}

	mod, err := decompiler.Decompile(code, ver, opts)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "decompilation error: %s\n", err)
		if mod == nil {
			return ExitDecompileError
		}
		// A partial ErrorList still yields a usable tree for every code
		// object that succeeded independently (spec.md §7's "a focused child
		// can fail while its parent succeeds"); print it, but still exit
		// non-zero so scripts notice the partial failure.
	}

	out := stdio.Stdout
	if c.Output != "" {
		f, ferr := os.Create(c.Output)
		if ferr != nil {
			fmt.Fprintln(stdio.Stderr, ferr)
			return ExitDecompileError
		}
		defer f.Close()
		out = f
	}
	dumpTree(out, mod)

	if err != nil {
		return ExitDecompileError
	}
	return ExitSuccess
}

func asUnsupportedVersion(err error, target **UnsupportedVersionError) bool {
	uv, ok := err.(*UnsupportedVersionError)
	if !ok {
		return false
	}
	*target = uv
	return true
}
