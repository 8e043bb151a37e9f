// Package decompiler implements C5, the driver that ties C1-C4 together:
// it builds the CFG and dominance facts for one code object, runs the
// entry-stack dataflow, dispatches structural pattern emission, and
// recurses into nested code objects for functions/classes/comprehensions
// (spec.md §4.5 and §5).
package decompiler

import (
	"fmt"

	"github.com/dolthub/swiss"

	"github.com/mna/pez/ast"
	"github.com/mna/pez/bytecode"
	"github.com/mna/pez/internal/cfg"
	"github.com/mna/pez/internal/dom"
	"github.com/mna/pez/internal/stackval"
)

// noNext is the step-return sentinel meaning "no further block in this
// region" (the region ended in a return/raise/break/continue, or reached
// its caller-supplied stop block).
const noNext = cfg.BlockId(^uint32(0))

// nestedResult is what the recursion-guard cache of §5 stores per nested
// *bytecode.Code: its decompiled body, ready to splice into a FunctionDef/
// ClassDef/comprehension without re-running the pipeline for code objects
// referenced more than once (the same lambda constant reused across
// several MAKE_FUNCTIONs, for instance).
type nestedResult struct {
	body []ast.Stmt
	err  error
}

// sharedState is threaded, unchanged, down every nested Decompiler so the
// whole recursion tree for one top-level Decompile call behaves as the
// single arena spec.md §2 describes.
type sharedState struct {
	nodes    *nodeArena
	scratch  *scratchArena
	cache    *swiss.Map[*bytecode.Code, *nestedResult]
	depthCap int
}

// Decompiler owns one code object's CFG, dominance facts, and dataflow
// results. A value is constructed fresh for every code object, including
// nested ones (spec.md §3's Lifecycles paragraph); shared holds what is
// genuinely shared across the recursion tree.
type Decompiler struct {
	code *bytecode.Code
	ver  bytecode.Version
	opts Options

	cfg *cfg.CFG
	dom *dom.DomTree

	stackIn  map[cfg.BlockId]*stackval.OperandStack
	consumed map[cfg.BlockId]bool

	// pendingOverride holds a structural emitter's synthesized entry stack
	// for a block whose generic dataflow shape was overridden (a ternary's
	// or bool-op's merge block receiving the real IfExp/BoolOp expression
	// instead of the dataflow fixpoint's Unknown), consumed the next time
	// that block is emitted.
	pendingOverride map[cfg.BlockId]*stackval.OperandStack

	// skipInstrs lets a structural emitter that already extracted a
	// leading instruction's meaning directly (a for-loop's bound-variable
	// store, read via storeTargetName) tell emitStraightLine to start
	// partway into the block instead of re-simulating it.
	skipInstrs map[cfg.BlockId]int

	errs  ErrorList
	depth int

	shared *sharedState
}

// Decompile is the package's public entry point: spec.md §6's "To the
// code-generator" contract. It returns the AST root for code (or for the
// --focus-selected nested code object) plus a possibly-partial,
// possibly-nil ErrorList.
func Decompile(code *bytecode.Code, ver bytecode.Version, opts Options) (*ast.Module, error) {
	opts = opts.withDefaults()

	shared := &sharedState{
		nodes:    &nodeArena{},
		scratch:  &scratchArena{},
		cache:    swiss.NewMap[*bytecode.Code, *nestedResult](8),
		depthCap: opts.MaxRecursionDepth,
	}

	target := code
	if len(opts.Focus) > 0 {
		found, err := resolveFocus(code, opts.Focus)
		if err != nil {
			return nil, err
		}
		target = found
	}

	d := &Decompiler{code: target, ver: ver, opts: opts, shared: shared}
	body, err := d.run()
	if err != nil {
		return nil, err
	}

	mod := &ast.Module{Name: target.Name, Body: body}
	finalizeModule(mod, ver)

	var retErr error
	if len(d.errs) > 0 {
		retErr = d.errs
	}
	return mod, retErr
}

// resolveFocus walks nested Code objects by dotted name (spec.md §6's
// `--focus` selector), matching each path segment against a nested
// code object's own Name (stripping the synthetic `<...>` wrapper
// CPython gives comprehensions/lambdas is deliberately NOT done here:
// a focus path names the binding, e.g. "Outer.method.<locals>.inner" is
// not how users spell it — they spell "Outer.method.inner", so the match
// is against Name with any enclosing "<locals>" segment skipped).
func resolveFocus(code *bytecode.Code, path []string) (*bytecode.Code, error) {
	cur := code
	for _, seg := range path {
		next, err := findNestedByName(cur, seg)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

func findNestedByName(code *bytecode.Code, name string) (*bytecode.Code, error) {
	var found *bytecode.Code
	for _, c := range code.Consts {
		nested, ok := c.(*bytecode.Code)
		if !ok || nested.Name != name {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("decompiler: focus path segment %q is ambiguous within %q", name, code.Name)
		}
		found = nested
	}
	if found == nil {
		return nil, fmt.Errorf("decompiler: focus path segment %q not found within %q", name, code.Name)
	}
	return found, nil
}

// run performs the per-code-object pipeline: build CFG/dominance facts,
// compute entry-stack dataflow, then structural emission from the entry
// block to the end of the function (spec.md §4.5.2's top-level call).
func (d *Decompiler) run() ([]ast.Stmt, error) {
	c, err := cfg.Build(d.code, d.ver)
	if err != nil {
		return nil, err
	}
	d.cfg = c
	d.dom = dom.Build(c)
	d.consumed = make(map[cfg.BlockId]bool, len(c.Blocks))
	d.pendingOverride = make(map[cfg.BlockId]*stackval.OperandStack)
	d.skipInstrs = make(map[cfg.BlockId]int)

	if err := d.computeStackIn(); err != nil {
		return nil, err
	}

	stmts, err := d.emitBody(c.Entry, noNext)
	if err != nil {
		return nil, err
	}
	// A trailing `return None` is the compiler's implicit epilogue: drop it,
	// and render a body left empty as a single `pass`.
	if n := len(stmts); n > 0 {
		if ret, ok := stmts[n-1].(*ast.Return); ok {
			if c, ok := ret.Value.(*ast.Constant); ok && c.Value == nil {
				stmts = stmts[:n-1]
			}
		}
	}
	if len(stmts) == 0 {
		stmts = []ast.Stmt{&ast.Pass{}}
	}
	return stmts, nil
}

// decompileNested recurses into a nested code object (a function body,
// class body, or comprehension body), honouring the recursion-depth guard
// and the pointer-identity cache of §5/the arena supplement.
func (d *Decompiler) decompileNested(code *bytecode.Code) ([]ast.Stmt, error) {
	if cached, ok := d.shared.cache.Get(code); ok {
		return cached.body, cached.err
	}
	if d.depth+1 >= d.shared.depthCap {
		err := d.newError(KindUnsupported, 0, 0, "", fmt.Errorf("recursion depth %d exceeds MaxRecursionDepth", d.depth+1))
		d.shared.cache.Put(code, &nestedResult{err: err})
		return nil, err
	}

	child := &Decompiler{code: code, ver: d.ver, opts: d.opts, shared: d.shared, depth: d.depth + 1}
	body, err := child.run()
	d.errs = append(d.errs, child.errs...)
	if err != nil {
		if _, ok := err.(*Error); !ok {
			err = d.newError(KindInvalidBlock, 0, 0, "", err)
		}
		d.errs = append(d.errs, err.(*Error))
	}
	d.shared.cache.Put(code, &nestedResult{body: body, err: err})
	return body, err
}
