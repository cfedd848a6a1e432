package queryir

import "github.com/roach88/typegraph/internal/ir"

// Query represents an abstract query over stored type summaries.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in backend compilers.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Predicate represents a filter condition in the QueryIR.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - Equals: field = literal_value
//   - IsNull: field has no value (incomplete code, unclassified, acyclic)
//   - NodeIs: the node has a given ID
//   - SameClass: the node shares an equivalence class with a given node
//   - And: all predicates must be true
//
// There is no OR. Run separate queries and merge the results.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Field names a column of the type-summary relation.
type Field string

const (
	FieldKind         Field = "kind"
	FieldName         Field = "name"
	FieldUnit         Field = "unit"
	FieldAbstractName Field = "abstract_name"
	FieldCode         Field = "code"
	FieldComplete     Field = "complete"
	FieldClass        Field = "class_id"
	FieldSCC          Field = "scc_index"
)

// FieldType is the literal type a field compares against.
type FieldType uint8

const (
	TypeString FieldType = iota + 1
	TypeInt
	TypeBool
)

var fieldTypes = map[Field]FieldType{
	FieldKind:         TypeString,
	FieldName:         TypeString,
	FieldUnit:         TypeString,
	FieldAbstractName: TypeString,
	FieldCode:         TypeInt,
	FieldComplete:     TypeBool,
	FieldClass:        TypeInt,
	FieldSCC:          TypeInt,
}

// nullable fields are stored as NULL when they carry no value.
var nullable = map[Field]bool{
	FieldCode:  true,
	FieldClass: true,
	FieldSCC:   true,
}

// TypeOf returns the literal type of f, or false for unknown fields.
func TypeOf(f Field) (FieldType, bool) {
	t, ok := fieldTypes[f]
	return t, ok
}

// Nullable reports whether f may be NULL.
func Nullable(f Field) bool {
	return nullable[f]
}

// Select selects the type summaries of one run that match Filter.
//
// Semantics:
//
//	SELECT <summary columns> FROM type_summaries
//	WHERE run_id = <run> AND <filter>
//	ORDER BY node_id
//	LIMIT <limit>
//
// Example:
//
//	Select{Filter: And{Predicates: []Predicate{
//	  Equals{Field: FieldKind, Value: ir.IRString("struct")},
//	  IsNull{Field: FieldCode},
//	}}}
//
// selects every incomplete struct.
type Select struct {
	Filter Predicate // WHERE conditions (nil = no filter)
	Limit  int       // 0 = no limit
}

func (Select) queryNode() {}

// Equals represents a field-equals-literal predicate.
//
// Value must match the field's type: ir.IRString, ir.IRInt or ir.IRBool.
// A NULL field never equals anything; use IsNull.
type Equals struct {
	Field Field
	Value ir.IRValue
}

func (Equals) predicateNode() {}

// IsNull matches rows where a nullable field has no value.
type IsNull struct {
	Field Field
}

func (IsNull) predicateNode() {}

// NodeIs matches the row of a single node.
type NodeIs struct {
	Node ir.NodeID
}

func (NodeIs) predicateNode() {}

// SameClass matches every node in the same equivalence class as Node,
// Node itself included. It matches nothing when Node is unclassified.
type SameClass struct {
	Node ir.NodeID
}

func (SameClass) predicateNode() {}

// And represents a conjunction of predicates (all must be true).
// Empty Predicates means "always true".
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}
