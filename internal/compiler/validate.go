package compiler

import (
	"fmt"

	"github.com/roach88/typegraph/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrDanglingReference  = "E101" // type reference to a node not in the graph
	ErrNegativeSize       = "E102" // negative size, offset or length
	ErrDuplicateMember    = "E103" // two data members share a name
	ErrInconsistentBounds = "E104" // dimension count disagrees with its bounds
	ErrDeclarationBody    = "E105" // opaque declaration carries members or enumerators
	ErrDuplicateEnum      = "E106" // two enumerators share a name
)

// ValidationError represents a structural problem in a type graph.
type ValidationError struct {
	Node    ir.NodeID `json:"node"`
	Field   string    `json:"field"`
	Message string    `json:"message"`
	Code    string    `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s %s: %s", e.Code, e.Node, e.Field, e.Message)
}

// Validate checks every node of g against the structural rules of the node
// model. Returns all errors found (does not fail-fast), ordered by node ID.
// Validate never mutates g.
func Validate(g *ir.Graph) []ValidationError {
	var errs []ValidationError
	for _, id := range g.IDs() {
		n := g.MustLookup(id)
		errs = append(errs, validateRefs(g, n)...)
		errs = append(errs, validateBody(n)...)
	}
	return errs
}

// validateRefs reports references to nodes that do not exist (E101).
func validateRefs(g *ir.Graph, n *ir.Node) []ValidationError {
	var errs []ValidationError
	for _, r := range bodyRefs(n) {
		if r.target == ir.NoNode || r.target == ir.ImplicitBaseID {
			continue
		}
		if _, ok := g.Lookup(r.target); !ok {
			errs = append(errs, ValidationError{
				Node:    n.ID,
				Field:   r.field,
				Message: fmt.Sprintf("dangling reference to %s", r.target),
				Code:    ErrDanglingReference,
			})
		}
	}
	return errs
}

func validateBody(n *ir.Node) []ValidationError {
	var errs []ValidationError
	negative := func(field string, v int64) {
		if v < 0 {
			errs = append(errs, ValidationError{
				Node:    n.ID,
				Field:   field,
				Message: fmt.Sprintf("must not be negative, got %d", v),
				Code:    ErrNegativeSize,
			})
		}
	}

	switch b := n.Body.(type) {
	case *ir.Base:
		negative("size", b.ByteSize)
		negative("bit_size", b.BitSize)

	case *ir.Chain:
		negative("size", b.ByteSize)

	case *ir.Composite:
		negative("size", b.ByteSize)
		if b.Declaration && len(b.Members) > 0 {
			errs = append(errs, ValidationError{
				Node:    n.ID,
				Field:   "members",
				Message: "declaration must not carry members",
				Code:    ErrDeclarationBody,
			})
		}
		seen := make(map[string]bool)
		for i, m := range b.Members {
			negative(fmt.Sprintf("members[%d].offset", i), m.Offset)
			if m.Declaration || m.Name == "" {
				continue
			}
			if seen[m.Name] {
				errs = append(errs, ValidationError{
					Node:    n.ID,
					Field:   fmt.Sprintf("members[%d].name", i),
					Message: fmt.Sprintf("duplicate member name %q", m.Name),
					Code:    ErrDuplicateMember,
				})
			}
			seen[m.Name] = true
		}

	case *ir.Array:
		for i, d := range b.Dims {
			errs = append(errs, validateBounds(n.ID, fmt.Sprintf("dims[%d]", i), d.Lower, d.Upper, d.Count)...)
		}

	case *ir.Subrange:
		errs = append(errs, validateBounds(n.ID, "bounds", b.Lower, b.Upper, b.Count)...)

	case *ir.Enumeration:
		negative("size", b.ByteSize)
		if b.Declaration && len(b.Enumerators) > 0 {
			errs = append(errs, ValidationError{
				Node:    n.ID,
				Field:   "enumerators",
				Message: "declaration must not carry enumerators",
				Code:    ErrDeclarationBody,
			})
		}
		seen := make(map[string]bool)
		for i, en := range b.Enumerators {
			if seen[en.Name] {
				errs = append(errs, ValidationError{
					Node:    n.ID,
					Field:   fmt.Sprintf("enumerators[%d].name", i),
					Message: fmt.Sprintf("duplicate enumerator %q", en.Name),
					Code:    ErrDuplicateEnum,
				})
			}
			seen[en.Name] = true
		}

	case *ir.String:
		if b.Length != nil {
			negative("length", *b.Length)
		}
	}
	return errs
}

// validateBounds checks one subrange: a count must match the bounds when
// both are present, and the upper bound must not precede the lower one.
func validateBounds(id ir.NodeID, field string, lower, upper, count *int64) []ValidationError {
	var errs []ValidationError
	lo := int64(0)
	if lower != nil {
		lo = *lower
	}
	if count != nil && *count < 0 {
		errs = append(errs, ValidationError{
			Node:    id,
			Field:   field + ".count",
			Message: fmt.Sprintf("must not be negative, got %d", *count),
			Code:    ErrNegativeSize,
		})
	}
	if upper != nil && *upper < lo-1 {
		errs = append(errs, ValidationError{
			Node:    id,
			Field:   field + ".upper",
			Message: fmt.Sprintf("upper bound %d precedes lower bound %d", *upper, lo),
			Code:    ErrInconsistentBounds,
		})
	}
	if count != nil && upper != nil && *upper-lo+1 != *count {
		errs = append(errs, ValidationError{
			Node:    id,
			Field:   field + ".count",
			Message: fmt.Sprintf("count %d disagrees with bounds [%d, %d]", *count, lo, *upper),
			Code:    ErrInconsistentBounds,
		})
	}
	return errs
}

// bodyRef is one type reference held by a node body.
type bodyRef struct {
	field  string
	target ir.NodeID
}

// bodyRefs lists the references of a node in out-edge order, without
// substituting implicit bases.
func bodyRefs(n *ir.Node) []bodyRef {
	var refs []bodyRef
	switch b := n.Body.(type) {
	case *ir.Chain:
		refs = append(refs, bodyRef{"target", b.Target})
	case *ir.Composite:
		for i, m := range b.Members {
			if m.Declaration {
				continue
			}
			refs = append(refs, bodyRef{fmt.Sprintf("members[%d].type", i), m.Type})
		}
	case *ir.Array:
		refs = append(refs, bodyRef{"elem", b.Elem})
	case *ir.Subrange:
		refs = append(refs, bodyRef{"base", b.Base})
	case *ir.Enumeration:
		refs = append(refs, bodyRef{"base", b.Base})
	case *ir.Subroutine:
		refs = append(refs, bodyRef{"return", b.Return})
		for i, p := range b.Params {
			refs = append(refs, bodyRef{fmt.Sprintf("params[%d].type", i), p.Type})
		}
	}
	return refs
}
