package bytecode

// CodeFlags mirrors CPython's co_flags bitmask relevant to decompilation:
// whether a code object is optimized, a generator, a coroutine, accepts
// *args/**kwargs, etc. The exact bit positions are owned by the (out of
// scope) loader; only the symbolic names are used by the core.
type CodeFlags uint32

const (
	FlagOptimized CodeFlags = 1 << iota
	FlagNewlocals
	FlagVarargs
	FlagVarKeywords
	FlagNested
	FlagGenerator
	FlagNoFree
	FlagCoroutine
	FlagIterableCoroutine
	FlagAsyncGenerator
)

func (f CodeFlags) Has(bit CodeFlags) bool { return f&bit != 0 }

// ExceptionTableEntry is one row of the 3.11+ exception table: the
// instruction interval [Start, End) is protected by Handler, with the
// operand stack expected to be Depth deep on entry to Handler, and
// Lasti indicating whether the handler wants the faulting instruction's
// offset pushed alongside the exception.
type ExceptionTableEntry struct {
	Start, End int
	Handler    int
	Depth      int
	Lasti      bool
}

// Object is a constant-pool element: None | True | False | Ellipsis |
// ints/floats/complex/strings/bytes/tuples/frozensets, or a nested Code
// object (spec.md §6). Represented as `any` with well-known sentinel types
// below, since the closed set is small and a sum-type-via-interface would
// only add ceremony the out-of-scope loader doesn't need anyway — this
// package only has to describe the shape, not enforce it.
type Object = any

// Sentinel/wrapper types used within the constant pool.
type (
	// Ellipsis represents the `...` singleton.
	Ellipsis struct{}
	// BigInt is an arbitrary-precision integer stored as its decimal or
	// two's-complement encoding by the loader; the core treats it as an
	// opaque literal to re-emit, never arithmetic on it.
	BigInt struct{ Decimal string }
	// Complex is a Python complex literal.
	Complex struct{ Real, Imag float64 }
	// FrozenSet is an immutable set constant.
	FrozenSet struct{ Items []Object }
)

// Code is the decoded shape of a single code object, exactly as spec.md §6
// names it. Instructions is already decoded by the out-of-scope per-version
// decoder into (offset, opcode, arg, size) tuples; RawBytes is kept for
// diagnostics (trace flags) and for recomputing instruction boundaries when
// a detector needs to look at inline cache bytes following CALL/LOAD_ATTR
// et al. on 3.11+.
type Code struct {
	Name string

	Consts    []Object
	Names     []string
	Varnames  []string
	Freevars  []string
	Cellvars  []string

	Argcount        int
	PosonlyArgcount int
	KwonlyArgcount  int
	Flags           CodeFlags
	Firstlineno     int

	Instructions   []Instruction
	RawBytes       []byte
	ExceptionTable []ExceptionTableEntry

	// Qualname is the dotted name used by --focus path resolution and by
	// comprehension/lambda/nested-function recognition (e.g. "outer.<locals>.inner").
	Qualname string
}

// IsComprehension reports whether this code object is a comprehension or
// generator expression body, recognised by CPython's synthetic names.
func (c *Code) IsComprehension() bool {
	switch c.Name {
	case "<listcomp>", "<setcomp>", "<dictcomp>", "<genexpr>":
		return true
	}
	return false
}

// ComprehensionKind returns the AST comprehension kind this code object
// implements, valid only when IsComprehension() is true.
func (c *Code) ComprehensionKind() string {
	switch c.Name {
	case "<listcomp>":
		return "list"
	case "<setcomp>":
		return "set"
	case "<dictcomp>":
		return "dict"
	case "<genexpr>":
		return "gen"
	}
	return ""
}

// IsLambda reports whether this code object is a lambda body.
func (c *Code) IsLambda() bool { return c.Name == "<lambda>" }

// InstructionAt returns the instruction starting exactly at offset, and
// whether one was found.
func (c *Code) InstructionAt(offset int) (Instruction, bool) {
	// Instructions are produced in offset order by the decoder; a linear
	// scan is avoided by callers that already maintain an offset index
	// (internal/cfg does), but this helper is kept for one-off lookups
	// (diagnostics, tests).
	lo, hi := 0, len(c.Instructions)
	for lo < hi {
		mid := (lo + hi) / 2
		if c.Instructions[mid].Offset < offset {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(c.Instructions) && c.Instructions[lo].Offset == offset {
		return c.Instructions[lo], true
	}
	return Instruction{}, false
}
