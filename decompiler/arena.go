package decompiler

// nodeArena and scratchArena realise spec.md §2's two-arena resource model
// in a garbage-collected host language: there is no slab allocator to
// bolt on without fighting the runtime, so "per-code-object arena" becomes
// a shared counter plus a pool of reusable scratch buffers threaded down
// through every nested Decompiler (see sharedState in driver.go) — the
// whole recursion tree for one top-level Decompile call is "freed as a
// unit" simply by nothing outliving the call that returns, exactly as
// spec.md §2 describes, just without an explicit free() to call.
type nodeArena struct {
	exprs int
	stmts int
}

func (a *nodeArena) trackExpr() { a.exprs++ }
func (a *nodeArena) trackStmt() { a.stmts++ }

// scratchArena is a pool of reusable bitsets: one is borrowed with bitset
// and returned with release, so later borrowers reuse the same backing
// storage instead of allocating anew. The dataflow worklist and the
// structural emitter's consumed-block set do not use it; they are maps on
// Decompiler.
type scratchArena struct {
	bitsets [][]bool
}

func (s *scratchArena) bitset(n int) []bool {
	for i, b := range s.bitsets {
		if cap(b) >= n {
			s.bitsets = append(s.bitsets[:i], s.bitsets[i+1:]...)
			b = b[:n]
			for j := range b {
				b[j] = false
			}
			return b
		}
	}
	return make([]bool, n)
}

func (s *scratchArena) release(b []bool) {
	s.bitsets = append(s.bitsets, b)
}
