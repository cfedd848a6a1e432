package engine

import (
	"fmt"
	"math"

	"github.com/roach88/typegraph/internal/ir"
)

// Result is the outcome of a structural equality test.
type Result uint8

const (
	// Unequal: the nodes denote different types.
	Unequal Result = iota
	// Equal: the nodes denote the same type unconditionally.
	Equal
	// EqualByAssumption: the nodes are equal provided the pairs still under
	// comparison higher up the recursion turn out equal. Never cached.
	EqualByAssumption
)

func (r Result) String() string {
	switch r {
	case Unequal:
		return "unequal"
	case Equal:
		return "equal"
	case EqualByAssumption:
		return "equal_by_assumption"
	default:
		return fmt.Sprintf("Result(%d)", r)
	}
}

// Pair is an ordered pair of nodes assumed equal.
type Pair struct {
	A, B ir.NodeID
}

// assumption is an immutable list of pairs assumed equal. Extending it
// allocates a new head, so callers up the recursion keep their own view.
type assumption struct {
	a, b  ir.NodeID
	depth int // 1-based position from the outermost pair
	next  *assumption
}

func (s *assumption) with(a, b ir.NodeID) *assumption {
	return &assumption{a: a, b: b, depth: s.len() + 1, next: s}
}

func (s *assumption) len() int {
	if s == nil {
		return 0
	}
	return s.depth
}

// find returns the depth of the pair (a,b) or (b,a).
func (s *assumption) find(a, b ir.NodeID) (int, bool) {
	for cur := s; cur != nil; cur = cur.next {
		if (cur.a == a && cur.b == b) || (cur.a == b && cur.b == a) {
			return cur.depth, true
		}
	}
	return 0, false
}

// unresolved means a result depends on no outstanding assumption.
const unresolved = math.MaxInt

// Equal reports whether a and b denote the same type.
func (e *Engine) Equal(a, b ir.NodeID) bool {
	return e.EqualDetailed(a, b) != Unequal
}

// EqualDetailed compares a and b with an empty assumption set and records
// the verdict in the class cache.
func (e *Engine) EqualDetailed(a, b ir.NodeID) Result {
	return e.EqualAssuming(a, b)
}

// EqualAssuming compares a and b treating every given pair as already
// equal. The result is EqualByAssumption when it relies on one of them.
func (e *Engine) EqualAssuming(a, b ir.NodeID, assumed ...Pair) Result {
	var set *assumption
	for _, p := range assumed {
		set = set.with(p.A, p.B)
	}
	c := comparer{e: e, record: true}
	r, _ := c.equal(a, b, set)
	return r
}

// comparer runs one equality computation. With record unset it only reads
// the class cache, which lets placement try candidates without
// re-entering itself.
type comparer struct {
	e      *Engine
	record bool
}

// equal returns the verdict and the shallowest assumption depth it relies
// on (unresolved when none).
func (c comparer) equal(a, b ir.NodeID, assume *assumption) (Result, int) {
	e := c.e
	e.stats.Comparisons++

	if a == b {
		return Equal, unresolved
	}
	if a == ir.NoNode || b == ir.NoNode {
		return Unequal, unresolved
	}
	if depth, ok := assume.find(a, b); ok {
		return EqualByAssumption, depth
	}
	if r, ok := e.cached(a, b); ok {
		e.stats.CacheHits++
		return r, unresolved
	}
	e.stats.CacheMisses++

	r, low := c.compare(a, b, assume)
	if r == EqualByAssumption {
		return r, low
	}
	if c.record {
		e.record(a, b, r)
	}
	return r, unresolved
}

// cached consults the partition: same class is Equal, two different
// classes are Unequal, anything else is a miss.
func (e *Engine) cached(a, b ir.NodeID) (Result, bool) {
	ca, okA := e.part.classOf[a]
	cb, okB := e.part.classOf[b]
	if !okA || !okB {
		return Unequal, false
	}
	if ca == cb {
		return Equal, true
	}
	return Unequal, true
}

func (e *Engine) record(a, b ir.NodeID, r Result) {
	if _, ok := e.src.Lookup(a); !ok {
		return
	}
	if _, ok := e.src.Lookup(b); !ok {
		return
	}
	// A nested comparison may already have cached this pair.
	if cached, ok := e.cached(a, b); ok {
		if cached == r {
			return
		}
		if r == Unequal {
			violation(ErrCodeDoubleBooking, "record unequal", a, b, nil)
		}
		// Equal across two existing classes: recordEqual verifies and merges.
	}
	switch r {
	case Equal:
		e.recordEqual(a, b)
	case Unequal:
		e.recordUnequal(a, b)
	}
}

// compare runs the cheap rejects, the summary-code pre-filter and the
// kind-specific structural test.
func (c comparer) compare(a, b ir.NodeID, assume *assumption) (Result, int) {
	e := c.e
	na, okA := e.src.Lookup(a)
	nb, okB := e.src.Lookup(b)
	if !okA || !okB {
		e.logger.Warn("dangling type reference in comparison", "a", a, "b", b)
		return Unequal, unresolved
	}
	if na.Kind != nb.Kind {
		return Unequal, unresolved
	}
	if na.Named() && nb.Named() && na.Name != nb.Name {
		return Unequal, unresolved
	}

	sa, sb := e.summaryOf(a), e.summaryOf(b)
	if sa.ok != sb.ok || (sa.ok && sa.code != sb.code) {
		return Unequal, unresolved
	}

	// Opaque declarations compare through their definitions.
	viaDeclaration := false
	if na.IsDeclaration() || nb.IsDeclaration() {
		viaDeclaration = true
		na, nb = e.resolveDeclaration(na), e.resolveDeclaration(nb)
		if na.IsDeclaration() != nb.IsDeclaration() {
			return Unequal, unresolved
		}
		if na.IsDeclaration() {
			return Equal, unresolved
		}
		if na.ID == nb.ID {
			return Equal, unresolved
		}
	}

	if !c.localEqual(na, nb) {
		return Unequal, unresolved
	}

	edgesA := e.src.OutEdges(na.ID)
	edgesB := e.src.OutEdges(nb.ID)
	if len(edgesA) != len(edgesB) {
		return Unequal, unresolved
	}

	// Anchor the recursion on pairs that can lead back to themselves. A
	// definition reached through a declaration is always anchored.
	pushed := 0
	if viaDeclaration || e.needsAssumption(na) || e.needsAssumption(nb) {
		assume = assume.with(na.ID, nb.ID)
		pushed = assume.depth
		if pushed > e.stats.MaxAssumptions {
			e.stats.MaxAssumptions = pushed
		}
	}

	result, low := Equal, unresolved
	for i := range edgesA {
		r, d := c.equal(edgesA[i].Target, edgesB[i].Target, assume)
		if r == Unequal {
			return Unequal, unresolved
		}
		if r == EqualByAssumption {
			result = EqualByAssumption
			low = min(low, d)
		}
	}

	// Assumptions introduced here are discharged here.
	if result == EqualByAssumption && pushed > 0 && low >= pushed {
		return Equal, unresolved
	}
	return result, low
}

// needsAssumption reports whether comparing n may revisit the same pair:
// struct, union, class and subroutine members of a cycle, and every member
// of a cycle that has no such anchor.
func (e *Engine) needsAssumption(n *ir.Node) bool {
	scc := e.SCCOf(n.ID)
	if scc == nil {
		return false
	}
	switch n.Kind.Variant() {
	case ir.VariantWithDataMembers, ir.VariantSubprogram:
		return true
	}
	return scc.ChainOnly
}

func (e *Engine) resolveDeclaration(n *ir.Node) *ir.Node {
	if !n.IsDeclaration() {
		return n
	}
	def, ok := e.src.FindDefinition(n.ID)
	if !ok {
		return n
	}
	if dn, ok := e.src.Lookup(def); ok {
		return dn
	}
	return n
}

// localEqual compares the literal fields of two nodes of the same kind.
// Every field compared here is symmetric, so one pass serves both
// directions. Child types are compared by the caller.
func (c comparer) localEqual(na, nb *ir.Node) bool {
	e := c.e
	switch ba := na.Body.(type) {
	case *ir.Base:
		bb, ok := nb.Body.(*ir.Base)
		return ok && na.Name == nb.Name &&
			ba.Encoding == bb.Encoding &&
			ba.ByteSize == bb.ByteSize &&
			ba.BitSize == bb.BitSize &&
			ba.BitOffset == bb.BitOffset

	case *ir.Chain:
		bb, ok := nb.Body.(*ir.Chain)
		return ok && na.Name == nb.Name && ba.ByteSize == bb.ByteSize

	case *ir.Composite:
		bb, ok := nb.Body.(*ir.Composite)
		if !ok || ba.ByteSize != bb.ByteSize || e.AbstractName(na.ID) != e.AbstractName(nb.ID) {
			return false
		}
		ma, mb := ba.DataMembers(), bb.DataMembers()
		if len(ma) != len(mb) {
			return false
		}
		for i := range ma {
			if ma[i].Name != mb[i].Name ||
				ma[i].Offset != mb[i].Offset ||
				ma[i].BitSize != mb[i].BitSize ||
				ma[i].BitOffset != mb[i].BitOffset {
				return false
			}
		}
		return true

	case *ir.Array:
		bb, ok := nb.Body.(*ir.Array)
		if !ok || len(ba.Dims) != len(bb.Dims) {
			return false
		}
		for i := range ba.Dims {
			la, okA := ba.Dims[i].Len()
			lb, okB := bb.Dims[i].Len()
			if okA != okB || la != lb {
				return false
			}
		}
		return true

	case *ir.Subrange:
		bb, ok := nb.Body.(*ir.Subrange)
		return ok && sameOpt(ba.Lower, bb.Lower) && sameOpt(ba.Upper, bb.Upper) && sameOpt(ba.Count, bb.Count)

	case *ir.Enumeration:
		bb, ok := nb.Body.(*ir.Enumeration)
		if !ok || ba.ByteSize != bb.ByteSize || len(ba.Enumerators) != len(bb.Enumerators) ||
			e.AbstractName(na.ID) != e.AbstractName(nb.ID) {
			return false
		}
		va, vb := ba.Values(), bb.Values()
		for i := range ba.Enumerators {
			if ba.Enumerators[i].Name != bb.Enumerators[i].Name || va[i] != vb[i] {
				return false
			}
		}
		return true

	case *ir.Subroutine:
		bb, ok := nb.Body.(*ir.Subroutine)
		return ok && ba.Variadic == bb.Variadic && len(ba.Params) == len(bb.Params)

	case *ir.String:
		bb, ok := nb.Body.(*ir.String)
		return ok && sameOpt(ba.Length, bb.Length)

	case *ir.Unspecified:
		_, ok := nb.Body.(*ir.Unspecified)
		return ok && na.Name == nb.Name

	default:
		e.logger.Warn("unsupported type kind in comparison", "a", na.ID, "b", nb.ID, "kind", na.Kind)
		return false
	}
}

func sameOpt(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
