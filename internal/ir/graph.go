package ir

import (
	"fmt"
	"slices"

	"fortio.org/safecast"
)

// ImplicitBaseID is the reserved ID of the language-default base type that
// enumerations and subranges without an explicit base refer to.
const ImplicitBaseID NodeID = 1 << 63

// defKey indexes complete definitions for FindDefinition.
type defKey struct {
	unit string
	kind Kind
	name string
}

// Graph is an arena of type nodes addressed by NodeID.
//
// The graph is append-only: nodes are never removed or mutated once added,
// which lets derived indexes (referrers, sorted IDs) be rebuilt lazily.
// A Graph is not safe for concurrent mutation.
type Graph struct {
	nodes map[NodeID]*Node
	defs  map[defKey][]NodeID

	// Lazily rebuilt after Add.
	sorted    []NodeID
	referrers map[NodeID][]TypeEdge
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[NodeID]*Node, 256),
		defs:  make(map[defKey][]NodeID),
	}
}

// Add inserts a node. The body must match the node's kind.
func (g *Graph) Add(n *Node) error {
	if n == nil {
		return fmt.Errorf("add node: nil node")
	}
	if n.ID == NoNode || n.ID == ImplicitBaseID {
		return fmt.Errorf("add node: reserved id %s", n.ID)
	}
	if _, exists := g.nodes[n.ID]; exists {
		return fmt.Errorf("add node: duplicate id %s", n.ID)
	}
	if err := checkBody(n); err != nil {
		return fmt.Errorf("add node %s: %w", n.ID, err)
	}
	g.insert(n)
	return nil
}

// MustAdd is like Add but panics on error.
// Use only in tests or when inputs are known to be valid.
func (g *Graph) MustAdd(n *Node) {
	if err := g.Add(n); err != nil {
		panic(err)
	}
}

func (g *Graph) insert(n *Node) {
	g.nodes[n.ID] = n
	g.sorted = nil
	g.referrers = nil
	if n.Name != "" && !isDeclaration(n) {
		key := defKey{unit: n.Unit, kind: n.Kind, name: n.Name}
		g.defs[key] = append(g.defs[key], n.ID)
	}
	if needsImplicitBase(n) {
		g.addImplicitBase()
	}
}

// needsImplicitBase reports whether n refers to the language-default base.
func needsImplicitBase(n *Node) bool {
	if isDeclaration(n) {
		return false
	}
	switch b := n.Body.(type) {
	case *Enumeration:
		return b.Base == NoNode
	case *Subrange:
		return b.Base == NoNode
	}
	return false
}

func checkBody(n *Node) error {
	var ok bool
	switch n.Kind.Variant() {
	case VariantBase:
		_, ok = n.Body.(*Base)
	case VariantChain:
		_, ok = n.Body.(*Chain)
	case VariantWithDataMembers:
		_, ok = n.Body.(*Composite)
	case VariantArray:
		_, ok = n.Body.(*Array)
	case VariantSubrange:
		_, ok = n.Body.(*Subrange)
	case VariantEnumeration:
		_, ok = n.Body.(*Enumeration)
	case VariantSubprogram:
		_, ok = n.Body.(*Subroutine)
	case VariantString:
		_, ok = n.Body.(*String)
	case VariantUnspecified:
		_, ok = n.Body.(*Unspecified)
	default:
		return fmt.Errorf("unsupported kind %s", n.Kind)
	}
	if !ok {
		return fmt.Errorf("body %T does not match kind %s", n.Body, n.Kind)
	}
	return nil
}

func isDeclaration(n *Node) bool {
	return n.IsDeclaration()
}

// IsDeclaration reports whether id names an opaque (declaration-only) type.
func (g *Graph) IsDeclaration(id NodeID) bool {
	n, ok := g.Lookup(id)
	return ok && isDeclaration(n)
}

// Lookup returns the node for id.
func (g *Graph) Lookup(id NodeID) (*Node, bool) {
	if id == NoNode {
		return nil, false
	}
	n, ok := g.nodes[id]
	return n, ok
}

// MustLookup panics when id is not in the graph.
func (g *Graph) MustLookup(id NodeID) *Node {
	n, ok := g.Lookup(id)
	if !ok {
		panic(fmt.Sprintf("ir: unknown node %s", id))
	}
	return n
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// IDs returns all node IDs in ascending order.
func (g *Graph) IDs() []NodeID {
	if g.sorted == nil {
		g.sorted = make([]NodeID, 0, len(g.nodes))
		for id := range g.nodes {
			g.sorted = append(g.sorted, id)
		}
		slices.Sort(g.sorted)
	}
	return slices.Clone(g.sorted)
}

// Units returns the distinct compilation unit names, sorted.
func (g *Graph) Units() []string {
	seen := make(map[string]bool)
	var units []string
	for _, n := range g.nodes {
		if !seen[n.Unit] {
			seen[n.Unit] = true
			units = append(units, n.Unit)
		}
	}
	slices.Sort(units)
	return units
}

// addImplicitBase adds the language-default base type unless present. It
// runs when the first node that needs it is added, so read paths never
// grow the graph.
func (g *Graph) addImplicitBase() {
	if _, ok := g.nodes[ImplicitBaseID]; ok {
		return
	}
	g.insert(&Node{
		ID:   ImplicitBaseID,
		Kind: KindBase,
		Name: "int",
		Body: &Base{Encoding: EncodingSigned, ByteSize: 4},
	})
}

// NextID returns an ID one past the highest ID in use (ignoring the
// reserved implicit base). Builders use it to allocate fresh IDs.
func (g *Graph) NextID() NodeID {
	highest := NodeID(0)
	for id := range g.nodes {
		if id != ImplicitBaseID && id > highest {
			highest = id
		}
	}
	return highest + 1
}

// OutEdges returns the outgoing edges of id in kind-specific order:
//   - declaration: one edge to its definition, or none when no definition
//     is visible
//   - chain: one edge to the target (a void target is still an edge)
//   - struct/union/class: one edge per data member, in declared order
//   - array: the element type
//   - enumeration/subrange: the explicit or implicit base type
//   - subroutine: the return type, then each parameter in order
func (g *Graph) OutEdges(id NodeID) []TypeEdge {
	n, ok := g.Lookup(id)
	if !ok {
		return nil
	}
	if isDeclaration(n) {
		def, found := g.FindDefinition(id)
		if !found {
			return nil
		}
		return []TypeEdge{{Source: id, Label: Reason{Kind: ReasonDefinition, Source: id}, Target: def}}
	}
	switch b := n.Body.(type) {
	case *Chain:
		return []TypeEdge{{Source: id, Label: Reason{Kind: ReasonPointee, Source: id}, Target: b.Target}}
	case *Composite:
		var edges []TypeEdge
		for i, m := range b.Members {
			if m.Declaration {
				continue
			}
			edges = append(edges, TypeEdge{
				Source: id,
				Label:  Reason{Kind: ReasonMember, Source: id, Index: i, Name: m.Name},
				Target: m.Type,
			})
		}
		return edges
	case *Array:
		return []TypeEdge{{Source: id, Label: Reason{Kind: ReasonElement, Source: id}, Target: b.Elem}}
	case *Enumeration:
		return []TypeEdge{{Source: id, Label: Reason{Kind: ReasonBase, Source: id}, Target: g.baseOr(b.Base)}}
	case *Subrange:
		return []TypeEdge{{Source: id, Label: Reason{Kind: ReasonBase, Source: id}, Target: g.baseOr(b.Base)}}
	case *Subroutine:
		edges := make([]TypeEdge, 0, len(b.Params)+1)
		edges = append(edges, TypeEdge{Source: id, Label: Reason{Kind: ReasonReturn, Source: id}, Target: b.Return})
		for i, p := range b.Params {
			edges = append(edges, TypeEdge{
				Source: id,
				Label:  Reason{Kind: ReasonParam, Source: id, Index: i, Name: p.Name},
				Target: p.Type,
			})
		}
		return edges
	default:
		return nil
	}
}

// ExplicitOrImplicitBase resolves the base type of an enumeration or
// subrange body, substituting the language default when none is recorded.
func (g *Graph) ExplicitOrImplicitBase(base NodeID) NodeID {
	return g.baseOr(base)
}

func (g *Graph) baseOr(base NodeID) NodeID {
	if base == NoNode {
		return ImplicitBaseID
	}
	return base
}

// Referrers returns every edge whose target is id, ordered by source ID and
// then by position within the source.
func (g *Graph) Referrers(id NodeID) []TypeEdge {
	if g.referrers == nil {
		g.buildReferrers()
	}
	return g.referrers[id]
}

func (g *Graph) buildReferrers() {
	refs := make(map[NodeID][]TypeEdge)
	for _, id := range g.IDs() {
		for _, e := range g.OutEdges(id) {
			if e.Target != NoNode {
				refs[e.Target] = append(refs[e.Target], e)
			}
		}
	}
	g.referrers = refs
}

// ConcreteForm strips typedef and qualifier wrappers. Void stays void.
// A wrapper loop (malformed input) resolves to the node where the loop was
// detected.
func (g *Graph) ConcreteForm(id NodeID) NodeID {
	seen := 0
	cur := id
	for cur != NoNode {
		n, ok := g.Lookup(cur)
		if !ok || !n.Kind.IsWrapper() {
			return cur
		}
		seen++
		if seen > len(g.nodes) {
			return cur
		}
		cur = n.Body.(*Chain).Target
	}
	return NoNode
}

// FindDefinition resolves an opaque declaration to a complete definition of
// the same kind and name visible in the same compilation unit.
func (g *Graph) FindDefinition(id NodeID) (NodeID, bool) {
	n, ok := g.Lookup(id)
	if !ok || !isDeclaration(n) || n.Name == "" {
		return NoNode, false
	}
	defs := g.defs[defKey{unit: n.Unit, kind: n.Kind, name: n.Name}]
	if len(defs) == 0 {
		return NoNode, false
	}
	return slices.Min(defs), true
}

// Merge copies every node of other into g. IDs must be disjoint.
func (g *Graph) Merge(other *Graph) error {
	for _, id := range other.IDs() {
		if id == ImplicitBaseID {
			g.addImplicitBase()
			continue
		}
		if err := g.Add(other.nodes[id]); err != nil {
			return fmt.Errorf("merge: %w", err)
		}
	}
	return nil
}

// FindByName returns the IDs of nodes with the given declared name, in
// ascending order, optionally restricted to one unit ("" matches any unit).
func (g *Graph) FindByName(unit, name string) []NodeID {
	var out []NodeID
	for _, id := range g.IDs() {
		n := g.nodes[id]
		if n.Name == name && (unit == "" || n.Unit == unit) {
			out = append(out, id)
		}
	}
	return out
}

// UnitOrdinal converts a zero-based file index into the high bits of the IDs
// that loaders allocate for that file.
func UnitOrdinal(fileIndex int) (NodeID, error) {
	idx, err := safecast.Conv[uint32](fileIndex)
	if err != nil {
		return NoNode, fmt.Errorf("file index %d: %w", fileIndex, err)
	}
	return NodeID(uint64(idx+1) << 32), nil
}
