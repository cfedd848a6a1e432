package engine

import (
	"github.com/roach88/typegraph/internal/ir"
)

// summary is a memoized summary code. ok is false for incomplete nodes.
type summary struct {
	code uint32
	ok   bool
}

// SummaryCode returns the structural fingerprint of a node, or false when
// the node is incomplete: it is, or embeds by value, a declaration with no
// visible definition. Pointer-like edges fold the pointee's AbstractName
// instead of its code, so incompleteness never propagates through them.
//
// Codes depend only on containment structure and names, never on node IDs
// or source order. Equal nodes always have equal codes; unequal nodes may
// collide. Zero is never a valid code.
func (e *Engine) SummaryCode(id ir.NodeID) (uint32, bool) {
	s := e.summaryOf(id)
	return s.code, s.ok
}

func (e *Engine) summaryOf(id ir.NodeID) summary {
	if id == ir.NoNode {
		f := newFolder()
		f.word(markVoid)
		return summary{code: f.sum(), ok: true}
	}
	if s, ok := e.summaries[id]; ok {
		return s
	}
	if e.summing[id] {
		// Only reachable through a by-value containment cycle, which
		// well-formed debug info cannot express.
		e.logger.Warn("containment cycle", "node", id)
		return summary{}
	}
	e.summing[id] = true
	s := e.computeSummary(id)
	delete(e.summing, id)
	e.summaries[id] = s
	return s
}

func (e *Engine) computeSummary(id ir.NodeID) summary {
	n, ok := e.src.Lookup(id)
	if !ok {
		e.logger.Warn("dangling type reference", "node", id)
		return summary{}
	}

	// Wrappers contribute nothing of their own.
	if n.Kind.IsWrapper() {
		concrete := e.src.ConcreteForm(id)
		if c, ok := e.src.Lookup(concrete); ok && c.Kind.IsWrapper() {
			e.logger.Warn("wrapper loop", "node", id)
			return summary{}
		}
		return e.summaryOf(concrete)
	}

	if n.IsDeclaration() {
		def, found := e.src.FindDefinition(id)
		if !found {
			return summary{}
		}
		return e.summaryOf(def)
	}

	if scc := e.SCCOf(id); scc != nil {
		return e.cyclicSummary(n, scc)
	}

	f := newFolder()
	f.word(uint32(n.Kind))
	switch b := n.Body.(type) {
	case *ir.Base:
		f.word(uint32(b.Encoding))
		f.int(b.ByteSize)
		f.int(b.BitSize)
		f.int(b.BitOffset)

	case *ir.Chain:
		// Only address kinds reach here; wrappers were resolved above.
		f.str(e.AbstractName(e.src.ConcreteForm(b.Target)))

	case *ir.Enumeration:
		values := b.Values()
		for i, en := range b.Enumerators {
			f.str(en.Name)
			f.int(values[i])
		}
		if !e.foldEdge(f, e.baseOf(id)) {
			return summary{}
		}

	case *ir.Subrange:
		if !e.foldEdge(f, e.baseOf(id)) {
			return summary{}
		}
		f.opt(markLower, b.Lower)
		f.opt(markUpper, b.Upper)
		f.opt(markCount, b.Count)

	case *ir.Subroutine:
		if !e.foldEdge(f, b.Return) {
			return summary{}
		}
		f.word(markSignature)
		for _, p := range b.Params {
			if !e.foldEdge(f, p.Type) {
				return summary{}
			}
		}
		if b.Variadic {
			f.word(markVariadic)
		}

	case *ir.Composite:
		f.str(e.AbstractName(id))
		for _, m := range b.DataMembers() {
			f.int(m.Offset)
			if !e.foldEdge(f, m.Type) {
				return summary{}
			}
		}

	case *ir.Array:
		elem, count, bounded := e.ultimateElement(b)
		if !e.foldEdge(f, elem) {
			return summary{}
		}
		if bounded {
			f.int(count)
		} else {
			f.word(markUnbounded)
		}

	case *ir.String:
		if b.Length == nil {
			f.word(markDynamic)
		} else {
			f.int(*b.Length)
		}

	case *ir.Unspecified:
		f.str(e.AbstractName(id))

	default:
		e.logger.Warn("unsupported type kind", "node", id, "kind", n.Kind)
		return summary{}
	}
	return summary{code: f.sum(), ok: true}
}

// cyclicSummary folds the component digest with the node's own abstract
// name, then the containment edges of the node. Edges to pointer-like
// targets fold names only, so the recursion never re-enters the cycle.
func (e *Engine) cyclicSummary(n *ir.Node, scc *TypeSCC) summary {
	f := newFolder()
	f.word(scc.Digest)
	f.str(e.AbstractName(n.ID))
	if n.Kind.IsAddress() {
		return summary{code: f.sum(), ok: true}
	}
	var offsets []int64
	if c, ok := n.Body.(*ir.Composite); ok {
		for _, m := range c.DataMembers() {
			offsets = append(offsets, m.Offset)
		}
	}
	for i, edge := range e.src.OutEdges(n.ID) {
		if i < len(offsets) {
			f.int(offsets[i])
		}
		if !e.foldEdge(f, edge.Target) {
			return summary{}
		}
	}
	return summary{code: f.sum(), ok: true}
}

// foldEdge folds the contribution of one outgoing edge: a marker for void,
// the abstract name for pointer-like targets, and the target's code
// otherwise. It returns false when the target is incomplete.
func (e *Engine) foldEdge(f *folder, target ir.NodeID) bool {
	if target == ir.NoNode {
		f.word(markVoid)
		return true
	}
	if e.isPointerLike(target) {
		f.str(e.AbstractName(target))
		return true
	}
	s := e.summaryOf(target)
	if !s.ok {
		return false
	}
	f.word(s.code)
	return true
}

// isPointerLike reports whether the concrete form of id holds an address.
func (e *Engine) isPointerLike(id ir.NodeID) bool {
	n, ok := e.src.Lookup(e.src.ConcreteForm(id))
	return ok && n.Kind.IsAddress()
}

// ultimateElement collapses nested arrays into their innermost element
// type and the total element count. bounded is false when any dimension
// is unbounded.
func (e *Engine) ultimateElement(a *ir.Array) (elem ir.NodeID, count int64, bounded bool) {
	count, bounded = a.Count()
	elem = a.Elem
	for depth := 0; ; depth++ {
		n, ok := e.src.Lookup(e.src.ConcreteForm(elem))
		if !ok || depth > 64 {
			return elem, count, bounded
		}
		inner, isArray := n.Body.(*ir.Array)
		if !isArray {
			return elem, count, bounded
		}
		innerCount, innerBounded := inner.Count()
		count *= innerCount
		bounded = bounded && innerBounded
		elem = inner.Elem
	}
}
