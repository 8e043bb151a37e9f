package decompiler

import (
	"fmt"
	"strings"

	"github.com/mna/pez/internal/cfg"
)

// Error kinds, per spec.md §7's two-tier taxonomy. SoftSim never reaches
// this type directly — it is recovered locally by the driver (see
// straightline.go) and only contributes to ErrorList when the recovery
// itself produces a visible fallback worth recording for diagnostics.
const (
	KindInvalidBytecode        = "invalid_bytecode"
	KindUnsupported            = "unsupported"
	KindSoftSimFallback        = "soft_sim_fallback"
	KindInvalidBlock           = "invalid_block"
	KindUnexpectedEmptyWorklist = "unexpected_empty_worklist"
	KindNoProgress             = "no_progress"
)

// ErrorContext localises a fault to one instruction within one code
// object, recorded the first time a fault fires per spec.md §7.
type ErrorContext struct {
	CodeName string
	BlockID  cfg.BlockId
	Offset   int
	Opcode   string
}

func (c ErrorContext) String() string {
	return fmt.Sprintf("%s: block %d, offset %d, op %s", c.CodeName, c.BlockID, c.Offset, c.Opcode)
}

// Error is the core's error type for faults raised while decompiling a
// code object; they are returned as an *Error or an ErrorList of them.
// Two errors are returned unwrapped: a --focus path segment that is not
// found, and a CFG build failure of the top-level code object.
type Error struct {
	Kind    string
	Context ErrorContext
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %v", e.Kind, e.Context, e.Cause)
	}
	return fmt.Sprintf("%s (%s)", e.Kind, e.Context)
}

func (e *Error) Unwrap() error { return e.Cause }

// ErrorList accumulates every fault a single Decompile call raised for
// child code objects that failed independently of their parent (a focused
// child can fail while its parent succeeds, per spec.md §7's user-visible
// failure behaviour).
type ErrorList []*Error

func (l ErrorList) Error() string {
	parts := make([]string, len(l))
	for i, e := range l {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

func (d *Decompiler) newError(kind string, blockID cfg.BlockId, offset int, opcode string, cause error) *Error {
	return &Error{
		Kind: kind,
		Context: ErrorContext{
			CodeName: d.code.Name,
			BlockID:  blockID,
			Offset:   offset,
			Opcode:   opcode,
		},
		Cause: cause,
	}
}
