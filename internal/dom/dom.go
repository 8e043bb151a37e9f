// Package dom computes dominator and post-dominator facts over a CFG: C2
// of the decompilation pipeline (spec.md §4.2).
package dom

import (
	"golang.org/x/exp/slices"

	"github.com/mna/pez/internal/cfg"
)

const undefined = -1

// DomTree holds immediate-dominator facts for a CFG, plus a lazily-built,
// cached post-dominator tree.
type DomTree struct {
	c    *cfg.CFG
	idom []int // indexed by BlockId; undefined for the root

	postDom *postDomTree
}

// Idom returns the immediate dominator of b, or (0, false) for the entry
// block (which has none).
func (d *DomTree) Idom(b cfg.BlockId) (cfg.BlockId, bool) {
	v := d.idom[b]
	if v == undefined {
		return 0, false
	}
	return cfg.BlockId(v), true
}

// Dominates reports whether a dominates b, per spec.md §4.2: "via repeated
// idom[b] = idom[idom[b]] walks".
func (d *DomTree) Dominates(a, b cfg.BlockId) bool {
	if a == b {
		return true
	}
	cur := int(b)
	for cur != undefined {
		if cfg.BlockId(cur) == a {
			return true
		}
		cur = d.idom[cur]
	}
	return false
}

// Build runs the Cooper-Harvey-Kennedy iterative fixpoint over the CFG's
// reverse postorder.
func Build(c *cfg.CFG) *DomTree {
	rpo := c.ReversePostorder()
	rpoIndex := make([]int, len(c.Blocks))
	for i, id := range rpo {
		rpoIndex[id] = i
	}

	idom := make([]int, len(c.Blocks))
	for i := range idom {
		idom[i] = undefined
	}
	idom[c.Entry] = int(c.Entry)

	changed := true
	for changed {
		changed = false
		for _, b := range rpo {
			if b == c.Entry {
				continue
			}
			newIdom := undefined
			for _, p := range c.Blocks[b].In {
				if idom[p] == undefined {
					continue
				}
				if newIdom == undefined {
					newIdom = int(p)
					continue
				}
				newIdom = intersect(idom, rpoIndex, newIdom, int(p))
			}
			if newIdom != undefined && idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}
	idom[c.Entry] = undefined
	return &DomTree{c: c, idom: idom}
}

func intersect(idom []int, rpoIndex []int, a, b int) int {
	for a != b {
		for rpoIndex[a] > rpoIndex[b] {
			a = idom[a]
		}
		for rpoIndex[b] > rpoIndex[a] {
			b = idom[b]
		}
	}
	return a
}

// postDomTree mirrors DomTree but over a graph augmented with a synthetic
// exit node collecting every terminal block, so post-dominance stays
// well-defined with multiple returns, per spec.md §3.
type postDomTree struct {
	idom []int // one extra slot at len(blocks) for the synthetic exit
	exit int
}

// PostDom lazily builds and caches the post-dominator tree.
func (d *DomTree) PostDom() *postDomTree {
	if d.postDom != nil {
		return d.postDom
	}
	n := len(d.c.Blocks)
	exit := n

	// Build a reverse graph: predecessors become successors, the synthetic
	// exit is a successor of every block with no non-exception out-edges.
	preds := make([][]int, n+1)
	var terminals []int
	for i := range d.c.Blocks {
		hasReal := false
		for _, e := range d.c.Blocks[i].Out {
			if e.Kind == cfg.Exception {
				continue
			}
			hasReal = true
			preds[e.Target] = append(preds[e.Target], i)
		}
		if !hasReal {
			terminals = append(terminals, i)
		}
	}
	for _, t := range terminals {
		preds[exit] = append(preds[exit], t)
	}

	// Reverse-postorder of the reverse graph, starting from the synthetic
	// exit, walking predecessors-as-successors.
	visited := make([]bool, n+1)
	var post []int
	var visit func(int)
	visit = func(b int) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, p := range preds[b] {
			visit(p)
		}
		post = append(post, b)
	}
	visit(exit)

	rpo := make([]int, 0, len(post))
	for i := len(post) - 1; i >= 0; i-- {
		rpo = append(rpo, post[i])
	}
	// Deterministic handling of nodes the exit can't reach backwards
	// (blocks with no path to any terminal, e.g. infinite loops): append
	// them sorted, matching DomTree's own fallback.
	var unreached []int
	for b := 0; b <= n; b++ {
		if !visited[b] {
			unreached = append(unreached, b)
		}
	}
	slices.Sort(unreached)
	rpo = append(rpo, unreached...)

	rpoIndex := make([]int, n+1)
	for i, b := range rpo {
		rpoIndex[b] = i
	}

	idom := make([]int, n+1)
	for i := range idom {
		idom[i] = undefined
	}
	idom[exit] = exit

	changed := true
	for changed {
		changed = false
		for _, b := range rpo {
			if b == exit {
				continue
			}
			newIdom := undefined
			for _, s := range successorsOf(d.c, b, exit, n) {
				if idom[s] == undefined {
					continue
				}
				if newIdom == undefined {
					newIdom = s
					continue
				}
				newIdom = intersect(idom, rpoIndex, newIdom, s)
			}
			if newIdom != undefined && idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}
	idom[exit] = undefined

	d.postDom = &postDomTree{idom: idom, exit: exit}
	return d.postDom
}

// successorsOf returns, in the POST-DOMINATOR direction, the nodes that
// come "after" b: for a real block, its non-exception CFG successors (or
// the synthetic exit if it has none); the computation above walks the
// reverse graph for ordering but the fixpoint itself refers to forward
// successors, per the standard "post-dominance = dominance on the reverse
// graph" construction.
func successorsOf(c *cfg.CFG, b, exit, n int) []int {
	if b == exit {
		return nil
	}
	var out []int
	hasReal := false
	for _, e := range c.Blocks[b].Out {
		if e.Kind == cfg.Exception {
			continue
		}
		hasReal = true
		out = append(out, int(e.Target))
	}
	if !hasReal {
		out = append(out, exit)
	}
	return out
}

// PostDominates reports whether a post-dominates b.
func (p *postDomTree) PostDominates(a, b cfg.BlockId) bool {
	cur := int(b)
	for cur != undefined {
		if cfg.BlockId(cur) == a {
			return true
		}
		cur = p.idom[cur]
	}
	return false
}

// CommonPostDom returns the nearest common post-dominator of a and b, used
// by pattern detection to find an if/ternary's merge block.
func (p *postDomTree) CommonPostDom(a, b cfg.BlockId) (cfg.BlockId, bool) {
	seen := map[int]bool{}
	for cur := int(a); cur != undefined; cur = p.idom[cur] {
		seen[cur] = true
	}
	for cur := int(b); cur != undefined; cur = p.idom[cur] {
		if seen[cur] {
			if cur == p.exit {
				return 0, false
			}
			return cfg.BlockId(cur), true
		}
	}
	return 0, false
}

// LoopBody returns the set of blocks belonging to the loop headed by
// header: those header dominates and that can reach header without
// leaving header's dominance region, per spec.md §4.2.
func (d *DomTree) LoopBody(header cfg.BlockId) map[cfg.BlockId]bool {
	body := map[cfg.BlockId]bool{header: true}
	// Seed with every predecessor of header reached by a back-edge.
	var backSources []cfg.BlockId
	for i := range d.c.Blocks {
		for _, e := range d.c.Blocks[i].Out {
			if e.Kind == cfg.LoopBack && e.Target == header {
				backSources = append(backSources, cfg.BlockId(i))
			}
		}
	}

	var worklist []cfg.BlockId
	for _, s := range backSources {
		if !body[s] && d.Dominates(header, s) {
			body[s] = true
			worklist = append(worklist, s)
		}
	}
	for len(worklist) > 0 {
		b := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for _, p := range d.c.Blocks[b].In {
			if !body[p] && d.Dominates(header, p) {
				body[p] = true
				worklist = append(worklist, p)
			}
		}
	}
	return body
}

// IsInLoop reports whether block belongs to the loop headed by header:
// header dominates block, and block can reach header without leaving the
// region (i.e. block is a member of LoopBody(header)).
func (d *DomTree) IsInLoop(block, header cfg.BlockId) bool {
	if !d.Dominates(header, block) {
		return false
	}
	return d.LoopBody(header)[block]
}
