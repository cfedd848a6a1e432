package engine

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/typegraph/internal/ir"
)

// Abstract-name prefixes for derived (unnamed) kinds.
var chainPrefix = map[ir.Kind]string{
	ir.KindConst:           "__CONST_",
	ir.KindVolatile:        "__VOLATILE_",
	ir.KindRestrict:        "__RESTRICT_",
	ir.KindPointer:         "__PTR_",
	ir.KindReference:       "__REF_",
	ir.KindRvalueReference: "__RR_",
}

const (
	nameVoid     = "void"
	nameCycle    = "__CYCLE"
	nameDangling = "__DANGLING"
)

// AbstractName returns the canonical name of a node: its declared name, or
// for unnamed kinds a string derived from its immediate structure. Names
// never contain node IDs, so equal structures in different compilation
// units get equal names.
//
// Anonymous structs, unions, classes and enumerations take an associated
// name from a unique referrer when one exists (a typedef naming them, or
// the member that embeds them), and otherwise a shape-based fallback.
func (e *Engine) AbstractName(id ir.NodeID) string {
	if id == ir.NoNode {
		return nameVoid
	}
	if name, ok := e.names[id]; ok {
		return name
	}
	if e.naming[id] {
		return nameCycle
	}
	e.naming[id] = true
	name := norm.NFC.String(e.abstractName(id))
	delete(e.naming, id)
	e.names[id] = name
	return name
}

func (e *Engine) abstractName(id ir.NodeID) string {
	n, ok := e.src.Lookup(id)
	if !ok {
		return nameDangling
	}
	switch b := n.Body.(type) {
	case *ir.Base:
		if n.Name != "" {
			return n.Name
		}
		return fmt.Sprintf("__BASE_%s_%d", b.Encoding, b.ByteSize)
	case *ir.Chain:
		if n.Kind == ir.KindTypedef {
			if n.Name != "" {
				return n.Name
			}
			return "__TYPEDEF_" + e.AbstractName(b.Target)
		}
		return chainPrefix[n.Kind] + e.AbstractName(b.Target)
	case *ir.Composite, *ir.Enumeration:
		if n.Name != "" {
			return n.Name
		}
		if assoc := e.associatedName(id); assoc != "" {
			return assoc
		}
		return shapeName(n)
	case *ir.Array:
		var sb strings.Builder
		for _, d := range b.Dims {
			if count, ok := d.Len(); ok {
				fmt.Fprintf(&sb, "__ARR%d_", count)
			} else {
				sb.WriteString("__ARR_")
			}
		}
		sb.WriteString(e.AbstractName(b.Elem))
		return sb.String()
	case *ir.Subroutine:
		params := make([]string, 0, len(b.Params)+1)
		for _, p := range b.Params {
			params = append(params, e.AbstractName(p.Type))
		}
		if b.Variadic {
			params = append(params, "...")
		}
		return "__FUN_FROM_" + strings.Join(params, ",") + "__FUN_TO_" + e.AbstractName(b.Return)
	case *ir.String:
		if b.Length == nil {
			return "__STR_DYN"
		}
		return fmt.Sprintf("__STR%d", *b.Length)
	case *ir.Subrange:
		var sb strings.Builder
		sb.WriteString("__SUBR_")
		sb.WriteString(e.AbstractName(e.baseOf(id)))
		for _, v := range []*int64{b.Lower, b.Upper, b.Count} {
			if v == nil {
				sb.WriteString("_?")
			} else {
				fmt.Fprintf(&sb, "_%d", *v)
			}
		}
		return sb.String()
	case *ir.Unspecified:
		if n.Name != "" {
			return n.Name
		}
		return "__UNSPEC"
	default:
		return fmt.Sprintf("__UNSUPPORTED_%s", n.Kind)
	}
}

// associatedName infers a name for an anonymous composite or enumeration
// from its referrers: the single distinct typedef naming it, or else the
// single member embedding it ("<container>::<member>").
func (e *Engine) associatedName(id ir.NodeID) string {
	var typedefs []string
	var members []ir.TypeEdge
	for _, ref := range e.src.Referrers(id) {
		src, ok := e.src.Lookup(ref.Source)
		if !ok {
			continue
		}
		switch {
		case src.Kind == ir.KindTypedef && src.Name != "":
			if !slices.Contains(typedefs, src.Name) {
				typedefs = append(typedefs, src.Name)
			}
		case ref.Label.Kind == ir.ReasonMember:
			members = append(members, ref)
		}
	}
	if len(typedefs) == 1 {
		return typedefs[0]
	}
	if len(typedefs) == 0 && len(members) == 1 {
		m := members[0]
		label := m.Label.Name
		if label == "" {
			label = fmt.Sprintf("#%d", m.Label.Index)
		}
		return e.AbstractName(m.Source) + "::" + label
	}
	return ""
}

// shapeName is the fallback for anonymous composites and enumerations that
// have no associated name: kind, size and the member or enumerator names.
func shapeName(n *ir.Node) string {
	var names []string
	var size int64
	switch b := n.Body.(type) {
	case *ir.Composite:
		size = b.ByteSize
		for _, m := range b.DataMembers() {
			names = append(names, m.Name)
		}
	case *ir.Enumeration:
		size = b.ByteSize
		for _, en := range b.Enumerators {
			names = append(names, en.Name)
		}
	}
	return fmt.Sprintf("__ANON_%s_%d_{%s}", strings.ToUpper(n.Kind.String()), size, strings.Join(names, ","))
}

// baseOf returns the explicit or implicit base of an enumeration or
// subrange, as reported by its single outgoing edge.
func (e *Engine) baseOf(id ir.NodeID) ir.NodeID {
	edges := e.src.OutEdges(id)
	if len(edges) == 0 {
		return ir.NoNode
	}
	return edges[0].Target
}
