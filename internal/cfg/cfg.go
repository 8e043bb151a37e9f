// Package cfg builds the control-flow graph for a single code object: C1
// of the decompilation pipeline (spec.md §4.1).
package cfg

import (
	"fmt"
	"sort"

	"github.com/dolthub/swiss"
	"golang.org/x/exp/slices"

	"github.com/mna/pez/bytecode"
)

// BlockId is a stable, dense identifier for a basic block, per spec.md §3.
type BlockId uint32

// EdgeKind classifies an outgoing edge from a block's terminator.
type EdgeKind int

const (
	Fallthrough EdgeKind = iota
	Jump
	ConditionalTrue
	ConditionalFalse
	LoopBack
	Exception
)

func (k EdgeKind) String() string {
	switch k {
	case Fallthrough:
		return "fallthrough"
	case Jump:
		return "jump"
	case ConditionalTrue:
		return "conditional_true"
	case ConditionalFalse:
		return "conditional_false"
	case LoopBack:
		return "loop_back"
	case Exception:
		return "exception"
	default:
		return "unknown"
	}
}

// Edge is an outgoing transfer of control from a block.
type Edge struct {
	Target BlockId
	Kind   EdgeKind
}

// BasicBlock is a maximal straight-line run of instructions, per spec.md §3.
type BasicBlock struct {
	ID          BlockId
	StartOffset int
	EndOffset   int // exclusive
	Instrs      []bytecode.Instruction

	Out []Edge
	In  []BlockId

	IsLoopHeader       bool
	IsExceptionHandler bool
}

// CFG is the control-flow graph of one code object.
type CFG struct {
	Blocks  []BasicBlock
	Entry   BlockId
	Code    *bytecode.Code
	Version bytecode.Version

	offsetToBlock *swiss.Map[int, BlockId]
	leaders       []int
}

// InvalidBytecode is returned when the instruction stream cannot be
// partitioned into a well-formed CFG, per spec.md §4.1's "Failure mode"
// and §7's InvalidBytecode error kind.
type InvalidBytecode struct {
	Reason string
	Offset int
}

func (e *InvalidBytecode) Error() string {
	return fmt.Sprintf("invalid bytecode at offset %d: %s", e.Offset, e.Reason)
}

// BlockAt returns the block starting at exactly offset, if any.
func (c *CFG) BlockAt(offset int) (BlockId, bool) {
	id, ok := c.offsetToBlock.Get(offset)
	return id, ok
}

// Block returns the block with the given id.
func (c *CFG) Block(id BlockId) *BasicBlock { return &c.Blocks[id] }

// Build partitions code's instructions into basic blocks and wires edges,
// exactly per spec.md §4.1.
func Build(code *bytecode.Code, ver bytecode.Version) (*CFG, error) {
	if len(code.Instructions) == 0 {
		return nil, &InvalidBytecode{Reason: "empty instruction stream", Offset: 0}
	}

	leaders, err := collectLeaders(code, ver)
	if err != nil {
		return nil, err
	}

	c := &CFG{
		Code:          code,
		Version:       ver,
		offsetToBlock: swiss.NewMap[int, BlockId](uint32(len(leaders))),
		leaders:       leaders,
	}

	if err := c.cutBlocks(leaders); err != nil {
		return nil, err
	}
	if err := c.wireEdges(); err != nil {
		return nil, err
	}
	if err := c.wireExceptionEdges(); err != nil {
		return nil, err
	}

	entry, ok := c.BlockAt(0)
	if !ok {
		return nil, &InvalidBytecode{Reason: "no block begins at offset 0", Offset: 0}
	}
	c.Entry = entry
	return c, nil
}

// collectLeaders implements pass 1 of spec.md §4.1: offset 0, every jump
// target, and the offset immediately following any terminator.
func collectLeaders(code *bytecode.Code, ver bytecode.Version) ([]int, error) {
	set := map[int]bool{0: true}

	for _, in := range code.Instructions {
		op := in.Op
		switch {
		case bytecode.IsConditionalJump(op):
			target := bytecode.JumpTarget(op, in.Arg, in.Offset, in.Size)
			if !validOffset(code, target) {
				return nil, &InvalidBytecode{Reason: "conditional jump target out of range", Offset: in.Offset}
			}
			set[target] = true
			set[in.End()] = true
		case bytecode.IsUnconditionalJump(op):
			target := bytecode.JumpTarget(op, in.Arg, in.Offset, in.Size)
			if !validOffset(code, target) {
				return nil, &InvalidBytecode{Reason: "unconditional jump target out of range", Offset: in.Offset}
			}
			set[target] = true
		case op == bytecode.OpForIter || op == bytecode.OpForLoop:
			target := bytecode.JumpTarget(op, in.Arg, in.Offset, in.Size)
			if !validOffset(code, target) {
				return nil, &InvalidBytecode{Reason: "FOR_ITER target out of range", Offset: in.Offset}
			}
			set[target] = true
			set[in.End()] = true
		case op == bytecode.OpReraise, op == bytecode.OpReturnValue, op == bytecode.OpReturnConst,
			op == bytecode.OpRaiseVarargs:
			set[in.End()] = true
		}
	}

	for _, ent := range code.ExceptionTable {
		if !validOffset(code, ent.Handler) {
			return nil, &InvalidBytecode{Reason: "exception handler target out of range", Offset: ent.Start}
		}
		set[ent.Handler] = true
	}

	leaders := make([]int, 0, len(set))
	for off := range set {
		leaders = append(leaders, off)
	}
	slices.Sort(leaders)
	leaders = slices.Compact(leaders)
	return leaders, nil
}

func validOffset(code *bytecode.Code, off int) bool {
	if _, ok := code.InstructionAt(off); ok {
		return true
	}
	// Allow a target exactly at end-of-stream (a jump to a synthetic exit,
	// which some legacy encodings use for an implicit final RETURN).
	if len(code.Instructions) > 0 {
		last := code.Instructions[len(code.Instructions)-1]
		return off == last.End()
	}
	return false
}

// cutBlocks implements pass 2's partitioning: slice instructions at each
// leader boundary.
func (c *CFG) cutBlocks(leaders []int) error {
	instrByOffset := make(map[int]int, len(c.Code.Instructions))
	for i, in := range c.Code.Instructions {
		instrByOffset[in.Offset] = i
	}

	c.Blocks = make([]BasicBlock, 0, len(leaders))
	for i, start := range leaders {
		startIdx, ok := instrByOffset[start]
		if !ok {
			return &InvalidBytecode{Reason: "leader does not land on an instruction boundary", Offset: start}
		}
		end := len(c.Code.RawBytes)
		endIdx := len(c.Code.Instructions)
		if i+1 < len(leaders) {
			end = leaders[i+1]
			if idx, ok := instrByOffset[end]; ok {
				endIdx = idx
			}
		}
		id := BlockId(len(c.Blocks))
		c.Blocks = append(c.Blocks, BasicBlock{
			ID:          id,
			StartOffset: start,
			EndOffset:   end,
			Instrs:      c.Code.Instructions[startIdx:endIdx],
		})
		c.offsetToBlock.Put(start, id)
	}
	return nil
}

// wireEdges implements the terminator-family edge rules of spec.md §4.1.
func (c *CFG) wireEdges() error {
	for i := range c.Blocks {
		b := &c.Blocks[i]
		if len(b.Instrs) == 0 {
			continue
		}
		term := b.Instrs[len(b.Instrs)-1]
		op := term.Op

		addEdge := func(off int, kind EdgeKind) error {
			tgt, ok := c.BlockAt(off)
			if !ok {
				return &InvalidBytecode{Reason: "edge target is not a block leader", Offset: off}
			}
			if kind == Jump && off <= b.StartOffset {
				kind = LoopBack
				c.Blocks[tgt].IsLoopHeader = true
			}
			b.Out = append(b.Out, Edge{Target: tgt, Kind: kind})
			return nil
		}

		switch {
		case op == bytecode.OpReturnValue || op == bytecode.OpReturnConst ||
			op == bytecode.OpRaiseVarargs || op == bytecode.OpReraise:
			// no successors

		case bytecode.IsUnconditionalJump(op):
			target := bytecode.JumpTarget(op, term.Arg, term.Offset, term.Size)
			if err := addEdge(target, Jump); err != nil {
				return err
			}

		case bytecode.IsConditionalJump(op):
			target := bytecode.JumpTarget(op, term.Arg, term.Offset, term.Size)
			trueOff, falseOff := trueFalseTargets(op, target, term.End())
			if err := addEdge(trueOff, ConditionalTrue); err != nil {
				return err
			}
			if err := addEdge(falseOff, ConditionalFalse); err != nil {
				return err
			}

		case op == bytecode.OpForIter || op == bytecode.OpForLoop:
			target := bytecode.JumpTarget(op, term.Arg, term.Offset, term.Size)
			if err := addEdge(term.End(), Fallthrough); err != nil {
				return err
			}
			if err := addEdge(target, ConditionalFalse); err != nil {
				return err
			}

		default:
			if err := addEdge(term.End(), Fallthrough); err != nil {
				return err
			}
		}
	}

	// Back-fill In lists.
	for i := range c.Blocks {
		for _, e := range c.Blocks[i].Out {
			c.Blocks[e.Target].In = append(c.Blocks[e.Target].In, c.Blocks[i].ID)
		}
	}
	return nil
}

// trueFalseTargets resolves which side of a conditional jump is the
// "taken" target and which is fallthrough, accounting for opcode polarity
// (..._IF_TRUE vs ..._IF_FALSE vs ..._IF_NONE/..._OR_POP), per spec.md
// §4.1 ("the polarity comes from the opcode").
func trueFalseTargets(op bytecode.Opcode, taken, fallthroughOff int) (trueOff, falseOff int) {
	switch op {
	case bytecode.OpPopJumpIfTrue, bytecode.OpPopJumpIfNone, bytecode.OpJumpIfTrueOrPop:
		return taken, fallthroughOff
	default:
		// POP_JUMP_IF_FALSE, POP_JUMP_IF_NOT_NONE, JUMP_IF_FALSE_OR_POP,
		// JUMP_IF_NOT_EXC_MATCH: taken side is the "false"/no-match branch.
		return fallthroughOff, taken
	}
}

// wireExceptionEdges adds Exception edges per spec.md §4.1: from the
// 3.11+ exception table when present, or (pre-3.11) from the SETUP_*
// protected-region stack threaded through this same pass.
func (c *CFG) wireExceptionEdges() error {
	if c.Version.GTE(3, 11) && len(c.Code.ExceptionTable) > 0 {
		for _, ent := range c.Code.ExceptionTable {
			handler, ok := c.BlockAt(ent.Handler)
			if !ok {
				return &InvalidBytecode{Reason: "exception handler is not a block leader", Offset: ent.Handler}
			}
			c.Blocks[handler].IsExceptionHandler = true
			for i := range c.Blocks {
				b := &c.Blocks[i]
				if b.StartOffset < ent.End && b.EndOffset > ent.Start {
					b.Out = append(b.Out, Edge{Target: handler, Kind: Exception})
					c.Blocks[handler].In = append(c.Blocks[handler].In, b.ID)
				}
			}
		}
		return nil
	}

	// Pre-3.11: SETUP_EXCEPT/SETUP_FINALLY/SETUP_WITH push a protected
	// region ending at their jump target; POP_BLOCK pops it. Regions nest
	// arbitrarily, so every SETUP_* seen contributes its own region
	// regardless of stack depth; the stack only tracks nesting for
	// POP_BLOCK to pop the right one.
	type region struct{ start, handler int }
	var stack []region
	var regions []region
	for _, in := range c.Code.Instructions {
		switch in.Op {
		case bytecode.OpSetupExcept, bytecode.OpSetupFinally, bytecode.OpSetupWith:
			handler := bytecode.JumpTarget(bytecode.OpJumpForward, in.Arg, in.Offset, in.Size)
			r := region{start: in.End(), handler: handler}
			stack = append(stack, r)
			regions = append(regions, r)
		case bytecode.OpPopBlock:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	for _, r := range regions {
		handlerId, ok := c.BlockAt(r.handler)
		if !ok {
			continue // malformed legacy encodings are tolerated here; see DESIGN.md §9 open question
		}
		c.Blocks[handlerId].IsExceptionHandler = true
		for i := range c.Blocks {
			b := &c.Blocks[i]
			if b.StartOffset >= r.start && b.StartOffset < r.handler {
				b.Out = append(b.Out, Edge{Target: handlerId, Kind: Exception})
				c.Blocks[handlerId].In = append(c.Blocks[handlerId].In, b.ID)
			}
		}
	}
	return nil
}

// ReversePostorder returns block ids in reverse-postorder from the entry,
// the traversal order spec.md §4.2 requires for the dominator fixpoint.
func (c *CFG) ReversePostorder() []BlockId {
	visited := make([]bool, len(c.Blocks))
	var post []BlockId
	var visit func(BlockId)
	visit = func(id BlockId) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, e := range c.Blocks[id].Out {
			if e.Kind != Exception {
				visit(e.Target)
			}
		}
		post = append(post, id)
	}
	visit(c.Entry)
	// Unreachable blocks (lenient-mode cleanup blocks, some legacy
	// encodings) are appended after, sorted by start offset, so every
	// block still gets a deterministic position for dataflow seeding.
	var rest []BlockId
	for i := range c.Blocks {
		if !visited[BlockId(i)] {
			rest = append(rest, BlockId(i))
		}
	}
	sort.Slice(rest, func(i, j int) bool {
		return c.Blocks[rest[i]].StartOffset < c.Blocks[rest[j]].StartOffset
	})

	rpo := make([]BlockId, 0, len(c.Blocks))
	for i := len(post) - 1; i >= 0; i-- {
		rpo = append(rpo, post[i])
	}
	rpo = append(rpo, rest...)
	return rpo
}
