package engine

import (
	"cmp"
	"slices"

	"github.com/roach88/typegraph/internal/ir"
)

// TypeSCC is a strongly-connected component of the type graph that contains
// at least one edge. One TypeSCC value is shared by all of its members and
// never changes after it is attached.
type TypeSCC struct {
	// Edges are the edges between members, in digest order.
	Edges []ir.TypeEdge

	// Members are the member IDs in ascending order.
	Members []ir.NodeID

	// Digest folds the sorted (AbstractName(target), AbstractName(source))
	// pairs of Edges, skipping declaration-to-definition edges so a cycle
	// routed through a forward declaration digests like the direct one. It
	// does not depend on node IDs.
	Digest uint32

	// ChainOnly is true when no member is a struct, union, class or
	// subroutine, e.g. a typedef loop.
	ChainOnly bool
}

// Contains reports whether id is a member of the component.
func (s *TypeSCC) Contains(id ir.NodeID) bool {
	_, found := slices.BinarySearch(s.Members, id)
	return found
}

// SCCOf returns the component containing id, or nil when id is not on any
// cycle. The first query for a node builds components for everything
// reachable from it.
func (e *Engine) SCCOf(id ir.NodeID) *TypeSCC {
	if id == ir.NoNode {
		return nil
	}
	if scc, ok := e.sccs[id]; ok {
		return scc
	}
	e.buildSCCs(id)
	return e.sccs[id]
}

// Components returns every node reachable from start mapped to a component
// number. Numbers are assigned in edge-mode discovery order from start;
// members of one TypeSCC share a number and acyclic nodes get their own.
// As a side effect every reachable node gets its SCC attached.
func (e *Engine) Components(start ir.NodeID) map[ir.NodeID]int {
	out := make(map[ir.NodeID]int)
	if start == ir.NoNode {
		return out
	}
	e.buildSCCs(start)

	numbers := make(map[*TypeSCC]int)
	next := 0
	for st := range e.Walk(start, ModeEdges).All() {
		if st.Node == ir.NoNode || st.Class == EdgeBack || st.Class == EdgeCross {
			continue
		}
		if _, seen := out[st.Node]; seen {
			continue
		}
		scc := e.sccs[st.Node]
		if scc == nil {
			out[st.Node] = next
			next++
			continue
		}
		num, ok := numbers[scc]
		if !ok {
			num = next
			numbers[scc] = num
			next++
		}
		out[st.Node] = num
	}
	return out
}

// gabow is the state of one path-based SCC computation.
type gabow struct {
	e        *Engine
	preorder map[ir.NodeID]int
	counter  int
	s        []ir.NodeID // visited, not yet assigned
	p        []int       // preorder numbers of root candidates
	comp     map[ir.NodeID]int
	groups   [][]ir.NodeID
}

// buildSCCs runs Gabow's path-based algorithm from start over an edge-mode
// walk. Targets that already carry an SCC from an earlier run are pruned:
// their components cannot reach back into this one.
func (e *Engine) buildSCCs(start ir.NodeID) {
	if _, done := e.sccs[start]; done {
		return
	}
	g := &gabow{
		e:        e,
		preorder: make(map[ir.NodeID]int),
		comp:     make(map[ir.NodeID]int),
	}
	w := newWalker(e.src, start, ModeEdges,
		withPrune(func(edge ir.TypeEdge) bool {
			_, done := e.sccs[edge.Target]
			return done
		}),
		withFinish(g.finish),
	)
	for w.Next() {
		st := w.Step()
		if st.Node == ir.NoNode {
			continue
		}
		switch st.Class {
		case EdgeRoot, EdgeTree:
			g.enter(st.Node)
		case EdgeBack, EdgeCross:
			if _, assigned := g.comp[st.Node]; !assigned {
				pw := g.preorder[st.Node]
				for len(g.p) > 0 && g.p[len(g.p)-1] > pw {
					g.p = g.p[:len(g.p)-1]
				}
			}
		}
	}
	g.attach()
}

func (g *gabow) enter(v ir.NodeID) {
	g.preorder[v] = g.counter
	g.counter++
	g.s = append(g.s, v)
	g.p = append(g.p, g.preorder[v])
}

func (g *gabow) finish(v ir.NodeID) {
	if len(g.p) == 0 || g.p[len(g.p)-1] != g.preorder[v] {
		return
	}
	id := len(g.groups)
	var members []ir.NodeID
	for {
		x := g.s[len(g.s)-1]
		g.s = g.s[:len(g.s)-1]
		g.comp[x] = id
		members = append(members, x)
		if x == v {
			break
		}
	}
	g.groups = append(g.groups, members)
	g.p = g.p[:len(g.p)-1]
}

// attach collects the intra-component edges of every group and records a
// TypeSCC, or "no SCC" when a group has no internal edge.
func (g *gabow) attach() {
	e := g.e
	for id, members := range g.groups {
		var edges []ir.TypeEdge
		for _, m := range members {
			for _, edge := range e.src.OutEdges(m) {
				if c, ok := g.comp[edge.Target]; ok && c == id {
					edges = append(edges, edge)
				}
			}
		}
		if len(edges) == 0 {
			for _, m := range members {
				e.setSCC(m, nil)
			}
			continue
		}
		scc := e.newTypeSCC(members, edges)
		for _, m := range members {
			e.setSCC(m, scc)
		}
		e.stats.SCCs++
		e.logger.Debug("scc built",
			"members", len(scc.Members),
			"edges", len(scc.Edges),
			"digest", scc.Digest,
			"chain_only", scc.ChainOnly)
	}
}

func (e *Engine) newTypeSCC(members []ir.NodeID, edges []ir.TypeEdge) *TypeSCC {
	type keyed struct {
		edge           ir.TypeEdge
		target, source string
	}
	keys := make([]keyed, len(edges))
	for i, edge := range edges {
		keys[i] = keyed{edge: edge, target: e.AbstractName(edge.Target), source: e.AbstractName(edge.Source)}
	}
	slices.SortFunc(keys, func(a, b keyed) int {
		return cmp.Or(
			cmp.Compare(a.target, b.target),
			cmp.Compare(a.source, b.source),
			cmp.Compare(a.edge.Source, b.edge.Source),
			cmp.Compare(a.edge.Label.Index, b.edge.Label.Index),
			cmp.Compare(a.edge.Target, b.edge.Target),
		)
	})

	f := newFolder()
	sorted := make([]ir.TypeEdge, len(keys))
	for i, k := range keys {
		sorted[i] = k.edge
		if k.edge.Label.Kind == ir.ReasonDefinition {
			continue
		}
		f.str(k.target)
		f.str(k.source)
	}

	ids := slices.Clone(members)
	slices.Sort(ids)
	chainOnly := true
	for _, m := range ids {
		if n, ok := e.src.Lookup(m); ok {
			switch n.Kind.Variant() {
			case ir.VariantWithDataMembers, ir.VariantSubprogram:
				chainOnly = false
			}
		}
	}
	return &TypeSCC{Edges: sorted, Members: ids, Digest: f.sum(), ChainOnly: chainOnly}
}

// setSCC attaches scc to id. Reattaching the same value is a no-op; any
// other reattachment is an invariant violation.
func (e *Engine) setSCC(id ir.NodeID, scc *TypeSCC) {
	if existing, ok := e.sccs[id]; ok {
		if existing == scc {
			return
		}
		violation(ErrCodeSCCReattached, "attach scc", id, ir.NoNode, nil)
	}
	e.sccs[id] = scc
}
