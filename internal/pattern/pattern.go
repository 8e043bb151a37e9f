// Package pattern identifies structural control-flow regions (if/while/
// for/try/with/match, ternary, and boolean short-circuits) from a CFG's
// shape and dominance facts: C3 of the decompilation pipeline (spec.md
// §4.3).
package pattern

import (
	"github.com/mna/pez/bytecode"
	"github.com/mna/pez/internal/cfg"
	"github.com/mna/pez/internal/dom"
)

// Kind discriminates the closed sum Detect returns.
type Kind int

const (
	None Kind = iota
	KindIf
	KindWhile
	KindFor
	KindTry
	KindWith
	KindMatch
)

// Pattern is the tagged result of Detect; exactly one of the embedded
// pointers is non-nil, matching Kind.
type Pattern struct {
	Kind  Kind
	If    *IfPattern
	While *WhilePattern
	For   *ForPattern
	Try   *TryPattern
	With  *WithPattern
	Match *MatchPattern
}

// IfPattern is spec.md §4.3's IfPattern.
type IfPattern struct {
	ConditionBlock       cfg.BlockId
	ThenBlock            cfg.BlockId
	ElseBlock            cfg.BlockId
	HasElse              bool
	MergeBlock           cfg.BlockId
	HasMerge             bool
	IsElif               bool
}

// WhilePattern is spec.md §4.3's WhilePattern.
type WhilePattern struct {
	HeaderBlock cfg.BlockId
	BodyBlock   cfg.BlockId
	ExitBlock   cfg.BlockId
}

// ForPattern is spec.md §4.3's ForPattern, plus the IsAsync supplement of
// SPEC_FULL.md's DetectAsyncFor.
type ForPattern struct {
	SetupBlock  cfg.BlockId
	HeaderBlock cfg.BlockId
	BodyBlock   cfg.BlockId
	ElseBlock   cfg.BlockId
	HasElse     bool
	ExitBlock   cfg.BlockId
	IsAsync     bool
}

// ExceptClause is one entry of TryPattern.Handlers.
type ExceptClause struct {
	HandlerBlock cfg.BlockId
	ExcTypeExpr  bool // true if a type-checking sequence (CHECK_EXC_MATCH/JUMP_IF_NOT_EXC_MATCH) precedes the bind
	Name         string
	IsBare       bool
	IsFinally    bool
}

// TryPattern is spec.md §4.3's TryPattern.
type TryPattern struct {
	TryBlock     cfg.BlockId
	Handlers     []ExceptClause
	ElseBlock    cfg.BlockId
	HasElse      bool
	FinallyBlock cfg.BlockId
	HasFinally   bool
	ExitBlock    cfg.BlockId
	HasExit      bool
}

// WithItem mirrors ast.WithItem at the pattern-detection level (before an
// AST node exists), used by DetectWithItems's multi-manager collapse.
type WithItem struct {
	SetupBlock cfg.BlockId
}

// WithPattern is spec.md §4.3's WithPattern, extended by SPEC_FULL.md's
// DetectWithItems to collapse `with a, b:` into one pattern.
type WithPattern struct {
	SetupBlock   cfg.BlockId
	Items        []WithItem
	BodyBlock    cfg.BlockId
	CleanupBlock cfg.BlockId
	ExitBlock    cfg.BlockId
	IsAsync      bool
}

// MatchPattern is spec.md §4.3's MatchPattern. TestBlocks[i] holds the
// one or more MATCH_*/GET_LEN test blocks that all fall through to
// CaseBlocks[i]'s body; more than one test block sharing a body is an
// OR-pattern (`case 1 | 2 | 3:`).
type MatchPattern struct {
	SubjectBlock cfg.BlockId
	CaseBlocks   []cfg.BlockId
	TestBlocks   [][]cfg.BlockId
	ExitBlock    cfg.BlockId
	HasExit      bool
}

// TernaryPattern is the diamond region detect_ternary recognizes.
type TernaryPattern struct {
	ConditionBlock        cfg.BlockId
	TrueBlock, FalseBlock cfg.BlockId
	MergeBlock            cfg.BlockId
}

// BoolOpPattern is the short-circuit region detect_bool_op recognizes.
type BoolOpPattern struct {
	Op         string // "and" | "or"
	LeftBlock  cfg.BlockId
	RightBlock cfg.BlockId
	MergeBlock cfg.BlockId
}

// Ctx bundles the facts detectors need, threaded through every Detect*
// call rather than recomputed per call.
type Ctx struct {
	CFG *cfg.CFG
	Dom *dom.DomTree
}

func (x Ctx) block(id cfg.BlockId) *cfg.BasicBlock { return x.CFG.Block(id) }

func terminator(b *cfg.BasicBlock) (bytecode.Instruction, bool) {
	if len(b.Instrs) == 0 {
		return bytecode.Instruction{}, false
	}
	return b.Instrs[len(b.Instrs)-1], true
}

func edgeTo(b *cfg.BasicBlock, kind cfg.EdgeKind) (cfg.BlockId, bool) {
	for _, e := range b.Out {
		if e.Kind == kind {
			return e.Target, true
		}
	}
	return 0, false
}

// Detect dispatches to the structural family detectors in the priority
// order spec.md §4.3 describes being consulted by C5: BoolOp, Ternary,
// And/Or are narrower and checked first by the driver (see
// decompiler.structural), so Detect itself only covers the six
// structural statement shapes.
func Detect(x Ctx, b cfg.BlockId) Pattern {
	if p, ok := DetectTry(x, b); ok {
		return Pattern{Kind: KindTry, Try: p}
	}
	if p, ok := DetectWith(x, b); ok {
		return Pattern{Kind: KindWith, With: p}
	}
	if p, ok := DetectMatch(x, b); ok {
		return Pattern{Kind: KindMatch, Match: p}
	}
	if p, ok := DetectFor(x, b); ok {
		return Pattern{Kind: KindFor, For: p}
	}
	if p, ok := DetectWhile(x, b); ok {
		return Pattern{Kind: KindWhile, While: p}
	}
	if p, ok := DetectIf(x, b); ok {
		return Pattern{Kind: KindIf, If: p}
	}
	return Pattern{Kind: None}
}
