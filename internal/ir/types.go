package ir

import "fmt"

// NodeID identifies a type node. Loaders derive it from the debug-info
// offset of the describing entry.
type NodeID uint64

// NoNode marks the absence of a type ("void").
const NoNode NodeID = 0

func (id NodeID) String() string {
	if id == NoNode {
		return "void"
	}
	return fmt.Sprintf("#%#x", uint64(id))
}

// Kind enumerates the debug-info type tags the model understands.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBase
	KindTypedef
	KindConst
	KindVolatile
	KindRestrict
	KindPointer
	KindReference
	KindRvalueReference
	KindStruct
	KindUnion
	KindClass
	KindArray
	KindSubrange
	KindEnumeration
	KindSubroutine
	KindString
	KindUnspecified
)

var kindNames = [...]string{
	KindInvalid:         "invalid",
	KindBase:            "base",
	KindTypedef:         "typedef",
	KindConst:           "const",
	KindVolatile:        "volatile",
	KindRestrict:        "restrict",
	KindPointer:         "pointer",
	KindReference:       "reference",
	KindRvalueReference: "rvalue_reference",
	KindStruct:          "struct",
	KindUnion:           "union",
	KindClass:           "class",
	KindArray:           "array",
	KindSubrange:        "subrange",
	KindEnumeration:     "enumeration",
	KindSubroutine:      "subroutine",
	KindString:          "string",
	KindUnspecified:     "unspecified",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// ParseKind maps a kind name (as printed by String) back to a Kind.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s && Kind(k) != KindInvalid {
			return Kind(k), true
		}
	}
	return KindInvalid, false
}

// Variant groups kinds that share a body shape.
type Variant uint8

const (
	VariantInvalid Variant = iota
	VariantBase
	VariantChain
	VariantWithDataMembers
	VariantArray
	VariantSubrange
	VariantEnumeration
	VariantSubprogram
	VariantString
	VariantUnspecified
)

// Variant returns the body shape used by nodes of kind k.
func (k Kind) Variant() Variant {
	switch k {
	case KindBase:
		return VariantBase
	case KindTypedef, KindConst, KindVolatile, KindRestrict,
		KindPointer, KindReference, KindRvalueReference:
		return VariantChain
	case KindStruct, KindUnion, KindClass:
		return VariantWithDataMembers
	case KindArray:
		return VariantArray
	case KindSubrange:
		return VariantSubrange
	case KindEnumeration:
		return VariantEnumeration
	case KindSubroutine:
		return VariantSubprogram
	case KindString:
		return VariantString
	case KindUnspecified:
		return VariantUnspecified
	default:
		return VariantInvalid
	}
}

// IsAddress reports whether values of kind k hold an address of their
// pointee. Address kinds do not inherit the pointee's size or completeness.
func (k Kind) IsAddress() bool {
	return k == KindPointer || k == KindReference || k == KindRvalueReference
}

// IsWrapper reports whether k is a non-concrete wrapper (typedef or
// qualifier) that is stripped by Graph.ConcreteForm.
func (k Kind) IsWrapper() bool {
	return k == KindTypedef || k == KindConst || k == KindVolatile || k == KindRestrict
}

// Encoding is the base-type encoding (DW_ATE_*).
type Encoding uint8

const (
	EncodingNone Encoding = iota
	EncodingAddress
	EncodingBoolean
	EncodingComplexFloat
	EncodingFloat
	EncodingSigned
	EncodingSignedChar
	EncodingUnsigned
	EncodingUnsignedChar
	EncodingUTF
)

var encodingNames = [...]string{
	EncodingNone:         "none",
	EncodingAddress:      "address",
	EncodingBoolean:      "boolean",
	EncodingComplexFloat: "complex_float",
	EncodingFloat:        "float",
	EncodingSigned:       "signed",
	EncodingSignedChar:   "signed_char",
	EncodingUnsigned:     "unsigned",
	EncodingUnsignedChar: "unsigned_char",
	EncodingUTF:          "utf",
}

func (e Encoding) String() string {
	if int(e) < len(encodingNames) {
		return encodingNames[e]
	}
	return fmt.Sprintf("Encoding(%d)", e)
}

// ParseEncoding maps an encoding name back to an Encoding.
func ParseEncoding(s string) (Encoding, bool) {
	for e, name := range encodingNames {
		if name == s {
			return Encoding(e), true
		}
	}
	return EncodingNone, false
}

// Node is one type description. Nodes are owned by the Graph; analysis code
// holds NodeIDs only.
type Node struct {
	ID   NodeID `json:"id"`
	Kind Kind   `json:"kind"`
	Name string `json:"name,omitempty"` // declared name, "" when anonymous
	Unit string `json:"unit,omitempty"` // compilation unit the node was read from
	Body Body   `json:"body"`
}

// Named reports whether the node carries a declared name.
func (n *Node) Named() bool {
	return n.Name != ""
}

// IsDeclaration reports whether n is an opaque (declaration-only) struct,
// union, class or enumeration.
func (n *Node) IsDeclaration() bool {
	switch b := n.Body.(type) {
	case *Composite:
		return b.Declaration
	case *Enumeration:
		return b.Declaration
	}
	return false
}

func (n *Node) String() string {
	if n.Name != "" {
		return fmt.Sprintf("%s %s (%s)", n.Kind, n.Name, n.ID)
	}
	return fmt.Sprintf("anonymous %s (%s)", n.Kind, n.ID)
}

// Body is the kind-specific part of a node.
// Only the types in this file implement it.
type Body interface {
	body() // Sealed
}

// Base describes a scalar.
type Base struct {
	Encoding  Encoding `json:"encoding"`
	ByteSize  int64    `json:"byte_size"`
	BitSize   int64    `json:"bit_size,omitempty"`
	BitOffset int64    `json:"bit_offset,omitempty"`
}

func (*Base) body() {}

// Chain wraps exactly one target: typedefs, qualifiers, pointers and
// references. Target is NoNode for void.
type Chain struct {
	Target   NodeID `json:"target"`
	ByteSize int64  `json:"byte_size,omitempty"` // own size; pointers do not inherit it
}

func (*Chain) body() {}

// Member is one data member of a Composite.
type Member struct {
	Name        string `json:"name,omitempty"`
	Type        NodeID `json:"type"`
	Offset      int64  `json:"offset"`
	BitSize     int64  `json:"bit_size,omitempty"`
	BitOffset   int64  `json:"bit_offset,omitempty"`
	Declaration bool   `json:"declaration,omitempty"` // static member declaration
}

// Composite describes a struct, union or class.
type Composite struct {
	ByteSize    int64    `json:"byte_size"`
	Members     []Member `json:"members"`
	Declaration bool     `json:"declaration,omitempty"` // opaque / forward-declared
}

func (*Composite) body() {}

// DataMembers returns the members that occupy storage, in declared order.
func (c *Composite) DataMembers() []Member {
	out := make([]Member, 0, len(c.Members))
	for _, m := range c.Members {
		if !m.Declaration {
			out = append(out, m)
		}
	}
	return out
}

// Dimension is one subrange of an array type.
type Dimension struct {
	Lower *int64 `json:"lower,omitempty"`
	Upper *int64 `json:"upper,omitempty"`
	Count *int64 `json:"count,omitempty"`
}

// Len returns the element count of the dimension, or false when unbounded.
// A missing lower bound defaults to zero.
func (d Dimension) Len() (int64, bool) {
	if d.Count != nil {
		return *d.Count, true
	}
	if d.Upper == nil {
		return 0, false
	}
	lower := int64(0)
	if d.Lower != nil {
		lower = *d.Lower
	}
	return *d.Upper - lower + 1, true
}

// Array describes an array type with one or more dimensions.
type Array struct {
	Elem NodeID      `json:"elem"`
	Dims []Dimension `json:"dims"`
}

func (*Array) body() {}

// Count returns the product of all dimension lengths, or false when any
// dimension is unbounded.
func (a *Array) Count() (int64, bool) {
	if len(a.Dims) == 0 {
		return 0, false
	}
	total := int64(1)
	for _, d := range a.Dims {
		n, ok := d.Len()
		if !ok {
			return 0, false
		}
		total *= n
	}
	return total, true
}

// Subrange describes a standalone subrange type. Base is NoNode when the
// language default applies.
type Subrange struct {
	Base  NodeID `json:"base"`
	Lower *int64 `json:"lower,omitempty"`
	Upper *int64 `json:"upper,omitempty"`
	Count *int64 `json:"count,omitempty"`
}

func (*Subrange) body() {}

// Enumerator is one named constant of an enumeration. A nil Value means
// "previous value plus one" (zero for the first enumerator).
type Enumerator struct {
	Name  string `json:"name"`
	Value *int64 `json:"value,omitempty"`
}

// Enumeration describes an enum. Base is NoNode when the language default
// applies.
type Enumeration struct {
	Base        NodeID       `json:"base"`
	ByteSize    int64        `json:"byte_size,omitempty"`
	Enumerators []Enumerator `json:"enumerators"`
	Declaration bool         `json:"declaration,omitempty"`
}

func (*Enumeration) body() {}

// Values returns the effective value of every enumerator, resolving
// implicit values as successors of the previous one.
func (e *Enumeration) Values() []int64 {
	out := make([]int64, len(e.Enumerators))
	next := int64(0)
	for i, en := range e.Enumerators {
		if en.Value != nil {
			next = *en.Value
		}
		out[i] = next
		next++
	}
	return out
}

// Param is one formal parameter of a subroutine type.
type Param struct {
	Name string `json:"name,omitempty"`
	Type NodeID `json:"type"`
}

// Subroutine describes a function signature. Return is NoNode for void.
type Subroutine struct {
	Return   NodeID  `json:"return"`
	Params   []Param `json:"params"`
	Variadic bool    `json:"variadic,omitempty"`
}

func (*Subroutine) body() {}

// String describes a fixed- or dynamic-length string type.
type String struct {
	Length *int64 `json:"length,omitempty"` // nil for dynamic length
}

func (*String) body() {}

// Unspecified describes a void-like type (e.g. decltype(nullptr)).
type Unspecified struct{}

func (*Unspecified) body() {}

// Int64 returns a pointer to v, for optional literal fields.
func Int64(v int64) *int64 {
	return &v
}
