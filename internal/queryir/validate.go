package queryir

import (
	"fmt"

	"github.com/roach88/typegraph/internal/ir"
)

// ValidationResult lists the problems found in a query.
type ValidationResult struct {
	// Valid is true when Errors is empty.
	Valid bool

	Errors []string
}

// Validate checks that a query only references known fields and compares
// them against literals of the right type.
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{
		errors: []string{},
	}
	v.validateQuery(query)

	return ValidationResult{
		Valid:  len(v.errors) == 0,
		Errors: v.errors,
	}
}

// validator accumulates errors during traversal.
type validator struct {
	errors []string
}

func (v *validator) addError(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	if q == nil {
		v.addError("nil query")
		return
	}

	switch query := q.(type) {
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	default:
		v.addError("unknown query type: %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	if sel.Limit < 0 {
		v.addError("negative limit %d", sel.Limit)
	}
	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	if p == nil {
		return
	}

	switch pred := p.(type) {
	case Equals:
		v.validateEquals(pred)
	case *Equals:
		v.validateEquals(*pred)
	case IsNull:
		v.validateIsNull(pred)
	case *IsNull:
		v.validateIsNull(*pred)
	case NodeIs, *NodeIs, SameClass, *SameClass:
		// Any node ID is acceptable; unknown IDs match nothing.
	case And:
		v.validateAnd(pred)
	case *And:
		v.validateAnd(*pred)
	default:
		v.addError("unknown predicate type: %T", p)
	}
}

func (v *validator) validateEquals(eq Equals) {
	want, ok := TypeOf(eq.Field)
	if !ok {
		v.addError("unknown field %q", eq.Field)
		return
	}
	if eq.Value == nil {
		v.addError("field %q compared to nil, use IsNull", eq.Field)
		return
	}
	if got := typeOfValue(eq.Value); got != want {
		v.addError("field %q compares against %s, got %T", eq.Field, want, eq.Value)
	}
}

func (v *validator) validateIsNull(n IsNull) {
	if _, ok := TypeOf(n.Field); !ok {
		v.addError("unknown field %q", n.Field)
		return
	}
	if !Nullable(n.Field) {
		v.addError("field %q is never NULL", n.Field)
	}
}

func (v *validator) validateAnd(and And) {
	for _, sub := range and.Predicates {
		v.validatePredicate(sub)
	}
}

func typeOfValue(val ir.IRValue) FieldType {
	switch val.(type) {
	case ir.IRString:
		return TypeString
	case ir.IRInt:
		return TypeInt
	case ir.IRBool:
		return TypeBool
	default:
		return 0
	}
}

func (t FieldType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeBool:
		return "bool"
	default:
		return "unknown"
	}
}
