package stackval

import "fmt"

// SoftSim is the simulator's locally recoverable error class (spec.md §7):
// stack underflow inside a lenient block, an operand that isn't an
// expression where one was required, a bad SWAP/COPY argument, an invalid
// comprehension or const-key-map shape, an invalid lambda body, or an
// inconsistent stack depth. The driver catches these and falls back to an
// opaque-statement rendering of the block rather than aborting.
type SoftSim struct {
	Reason string
	Offset int
}

func (e *SoftSim) Error() string {
	return fmt.Sprintf("stackval: soft failure at offset %d: %s", e.Offset, e.Reason)
}

// Unsupported reports an opcode the simulator has no handling for at all
// (as opposed to one it handles but rejects the operands of). Fatal.
type Unsupported struct {
	Op     string
	Offset int
}

func (e *Unsupported) Error() string {
	return fmt.Sprintf("stackval: unsupported opcode %s at offset %d", e.Op, e.Offset)
}

// skipStatementErr is the internal sentinel of spec.md §7 for an
// instruction that produces no statement. Step does not return it: for
// RESUME, NOP and the other no-statement opcodes it returns an empty
// Result and a nil error instead.
type skipStatementErr struct{}

func (skipStatementErr) Error() string { return "stackval: no statement produced" }

var errSkipStatement error = skipStatementErr{}

// IsSkip reports whether err is the internal skip-statement sentinel; it
// never surfaces to a caller outside this package and decompiler.
func IsSkip(err error) bool { return err == errSkipStatement }
