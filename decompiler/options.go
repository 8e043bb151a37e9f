package decompiler

// Tracer receives decision-point notifications for the CLI's
// `--trace-decisions` / `--trace-loop-guards` / `--trace-sim-block` flags
// (spec.md §6), mirroring how the teacher's machine threads a `Thread`
// value through for runtime hooks instead of a global logger.
type Tracer interface {
	// Decision logs a structural-emission choice (which detector fired,
	// which pattern was built).
	Decision(format string, args ...any)
	// LoopGuard logs a while/for guard-rewrite decision (§4.5.3).
	LoopGuard(format string, args ...any)
	// SimBlock logs one block's stack simulation, keyed by its id so
	// --trace-sim-block can filter to a single block.
	SimBlock(blockID uint32, format string, args ...any)
}

// NopTracer discards everything; it is the default when Options.Tracer is
// nil.
type NopTracer struct{}

func (NopTracer) Decision(string, ...any)          {}
func (NopTracer) LoopGuard(string, ...any)          {}
func (NopTracer) SimBlock(uint32, string, ...any)   {}

// Options configures one Decompile call.
type Options struct {
	// MaxRecursionDepth bounds nested code object recursion (default 128,
	// spec.md §5).
	MaxRecursionDepth int

	// Tracer receives decision-point notifications; defaults to NopTracer.
	Tracer Tracer

	// Focus, if non-empty, walks nested Code objects by dotted name and
	// restricts decompilation to the selected one (spec.md §6's `--focus`).
	Focus []string
}

func (o Options) withDefaults() Options {
	if o.MaxRecursionDepth <= 0 {
		o.MaxRecursionDepth = 128
	}
	if o.Tracer == nil {
		o.Tracer = NopTracer{}
	}
	return o
}
