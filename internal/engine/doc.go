// Package engine implements type-graph analysis: a depth-first edge walker,
// strongly-connected-component summaries, structural summary codes and a
// cycle-tolerant equality tester backed by an equivalence-class cache.
//
// ARCHITECTURE:
//
// Analysis Context:
// An Engine owns every piece of derived state for one analysis session. The
// type graph itself belongs to the Source; the engine keeps side tables keyed
// by ir.NodeID:
//   - sccs: the TypeSCC attached to a node (nil means "no SCC")
//   - summaries: memoized summary codes
//   - names: memoized abstract names
//   - the equivalence-class partition and its summary-code index
//
// Data flows bottom-up:
//  1. Walker produces classified edges (walk.go)
//  2. The SCC builder consumes edge-mode walks (scc.go)
//  3. Summary codes fold SCC digests for cyclic nodes (summary.go)
//  4. Equality uses summary codes as a pre-filter and as the index key of
//     the class cache (equal.go, classes.go)
//
// Derived state is never invalidated. The engine assumes the Source does not
// change for the lifetime of the Engine; analysing a modified graph needs a
// fresh Engine.
//
// CRITICAL PATTERNS:
//
// Out-of-line caches:
// Nodes never point at derived state, so the cyclic graph holds no
// reference cycles and several engines can analyse one graph independently.
//
// Coinductive equality:
// Pairs under comparison are threaded through recursion as an immutable
// assumption list. Results that depend on an outstanding assumption are
// EqualByAssumption and are never cached.
//
// Invariant violations panic with *InvariantError. Normal negative outcomes
// (unequal, incomplete, unsupported) are ordinary return values.
//
// Concurrency:
// An Engine is not safe for concurrent use.
package engine
