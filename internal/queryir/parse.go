package queryir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/typegraph/internal/ir"
)

// ParseFilter builds a conjunction from command-line terms of the form
// field=value. Besides the fields of the summary relation it accepts
// node=<id> and same_class=<id>. The value null selects IsNull. Integer
// values and node IDs accept a 0x prefix.
//
//	ParseFilter([]string{"kind=struct", "code=null"})
func ParseFilter(terms []string) (Predicate, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	preds := make([]Predicate, 0, len(terms))
	for _, term := range terms {
		p, err := ParseTerm(term)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	if len(preds) == 1 {
		return preds[0], nil
	}
	return And{Predicates: preds}, nil
}

// ParseTerm parses a single field=value term.
func ParseTerm(term string) (Predicate, error) {
	name, raw, ok := strings.Cut(term, "=")
	name = strings.TrimSpace(name)
	raw = strings.TrimSpace(raw)
	if !ok || name == "" {
		return nil, fmt.Errorf("filter %q: expected field=value", term)
	}

	switch name {
	case "node", "same_class":
		id, err := strconv.ParseUint(raw, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("filter %q: invalid node id: %w", term, err)
		}
		if name == "node" {
			return NodeIs{Node: ir.NodeID(id)}, nil
		}
		return SameClass{Node: ir.NodeID(id)}, nil
	}

	field := Field(name)
	typ, ok := TypeOf(field)
	if !ok {
		return nil, fmt.Errorf("filter %q: unknown field %q", term, name)
	}
	if raw == "null" && Nullable(field) {
		return IsNull{Field: field}, nil
	}

	switch typ {
	case TypeInt:
		v, err := strconv.ParseInt(raw, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("filter %q: invalid int: %w", term, err)
		}
		return Equals{Field: field, Value: ir.IRInt(v)}, nil
	case TypeBool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("filter %q: invalid bool: %w", term, err)
		}
		return Equals{Field: field, Value: ir.IRBool(v)}, nil
	default:
		return Equals{Field: field, Value: ir.IRString(raw)}, nil
	}
}
