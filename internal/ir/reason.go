package ir

import "fmt"

// ReasonKind says why an edge exists between two type nodes.
type ReasonKind uint8

const (
	// ReasonRoot labels the start position of a walk; it has no source.
	ReasonRoot ReasonKind = iota
	// ReasonPointee: target is the pointee/base of a chain type.
	ReasonPointee
	// ReasonMember: target is the type of named member Index of a composite.
	ReasonMember
	// ReasonParam: target is the type of formal parameter Index of a subroutine.
	ReasonParam
	// ReasonReturn: target is the return type of a subroutine.
	ReasonReturn
	// ReasonBase: target is the base type of an enumeration or subrange.
	ReasonBase
	// ReasonElement: target is the element type of an array.
	ReasonElement
	// ReasonDefinition: target is the visible definition of a declaration.
	ReasonDefinition
)

func (k ReasonKind) String() string {
	switch k {
	case ReasonRoot:
		return "root"
	case ReasonPointee:
		return "pointee"
	case ReasonMember:
		return "member"
	case ReasonParam:
		return "param"
	case ReasonReturn:
		return "return"
	case ReasonBase:
		return "base"
	case ReasonElement:
		return "element"
	case ReasonDefinition:
		return "definition"
	default:
		return fmt.Sprintf("ReasonKind(%d)", k)
	}
}

// Reason labels an edge. Source is the containing type or signature, so a
// reason implies a unique source node.
type Reason struct {
	Kind   ReasonKind `json:"kind"`
	Source NodeID     `json:"source"`
	Index  int        `json:"index,omitempty"` // member / parameter position
	Name   string     `json:"name,omitempty"`  // member / parameter name
}

func (r Reason) String() string {
	switch r.Kind {
	case ReasonRoot:
		return "root"
	case ReasonMember, ReasonParam:
		if r.Name != "" {
			return fmt.Sprintf("%s %q of %s", r.Kind, r.Name, r.Source)
		}
		return fmt.Sprintf("%s #%d of %s", r.Kind, r.Index, r.Source)
	default:
		return fmt.Sprintf("%s of %s", r.Kind, r.Source)
	}
}

// TypeEdge is one labelled edge of the type graph.
type TypeEdge struct {
	Source NodeID `json:"source"`
	Label  Reason `json:"label"`
	Target NodeID `json:"target"`
}

func (e TypeEdge) String() string {
	return fmt.Sprintf("%s -> %s (%s)", e.Source, e.Target, e.Label)
}
