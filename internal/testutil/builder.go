package testutil

import (
	"testing"

	"github.com/roach88/typegraph/internal/ir"
)

// PointerSize is the byte size of pointers and references built by Builder.
const PointerSize = 8

// Builder assembles ir.Graph fixtures with sequential node IDs.
//
// Nodes are added to the current unit (see Unit). Forward references, as
// needed for self-referential structs, use Reserve and the *At variants:
//
//	b := testutil.NewBuilder(t).Unit("a.c")
//	node := b.Reserve()
//	next := b.Pointer(node)
//	b.StructAt(node, "Node", 16, testutil.Field("next", next, 0))
//
// Any invalid node fails the test immediately.
type Builder struct {
	t    testing.TB
	g    *ir.Graph
	next ir.NodeID
	unit string
}

// NewBuilder creates a Builder over an empty graph. IDs start at 1.
func NewBuilder(t testing.TB) *Builder {
	return &Builder{t: t, g: ir.NewGraph(), next: 1}
}

// Unit sets the compilation unit for nodes added afterwards.
func (b *Builder) Unit(name string) *Builder {
	b.unit = name
	return b
}

// Graph returns the graph built so far.
func (b *Builder) Graph() *ir.Graph {
	return b.g
}

// Reserve allocates an ID for a node defined later with an *At method.
func (b *Builder) Reserve() ir.NodeID {
	id := b.next
	b.next++
	return id
}

// Add inserts a node with an explicit kind and body at a fresh ID.
func (b *Builder) Add(kind ir.Kind, name string, body ir.Body) ir.NodeID {
	return b.AddAt(b.Reserve(), kind, name, body)
}

// AddAt inserts a node at a reserved ID.
func (b *Builder) AddAt(id ir.NodeID, kind ir.Kind, name string, body ir.Body) ir.NodeID {
	b.t.Helper()
	if err := b.g.Add(&ir.Node{ID: id, Kind: kind, Name: name, Unit: b.unit, Body: body}); err != nil {
		b.t.Fatalf("testutil: %v", err)
	}
	return id
}

// Base adds a named scalar.
func (b *Builder) Base(name string, enc ir.Encoding, size int64) ir.NodeID {
	return b.Add(ir.KindBase, name, &ir.Base{Encoding: enc, ByteSize: size})
}

// Int adds "int": signed, 4 bytes.
func (b *Builder) Int() ir.NodeID {
	return b.Base("int", ir.EncodingSigned, 4)
}

// Char adds "char": signed char, 1 byte.
func (b *Builder) Char() ir.NodeID {
	return b.Base("char", ir.EncodingSignedChar, 1)
}

// Typedef adds a typedef naming target.
func (b *Builder) Typedef(name string, target ir.NodeID) ir.NodeID {
	return b.Add(ir.KindTypedef, name, &ir.Chain{Target: target})
}

// TypedefAt adds a typedef at a reserved ID.
func (b *Builder) TypedefAt(id ir.NodeID, name string, target ir.NodeID) ir.NodeID {
	return b.AddAt(id, ir.KindTypedef, name, &ir.Chain{Target: target})
}

// Const adds a const qualifier of target.
func (b *Builder) Const(target ir.NodeID) ir.NodeID {
	return b.Add(ir.KindConst, "", &ir.Chain{Target: target})
}

// Pointer adds a pointer to target. ir.NoNode means void*.
func (b *Builder) Pointer(target ir.NodeID) ir.NodeID {
	return b.Add(ir.KindPointer, "", &ir.Chain{Target: target, ByteSize: PointerSize})
}

// PointerAt adds a pointer at a reserved ID.
func (b *Builder) PointerAt(id, target ir.NodeID) ir.NodeID {
	return b.AddAt(id, ir.KindPointer, "", &ir.Chain{Target: target, ByteSize: PointerSize})
}

// Reference adds an lvalue reference to target.
func (b *Builder) Reference(target ir.NodeID) ir.NodeID {
	return b.Add(ir.KindReference, "", &ir.Chain{Target: target, ByteSize: PointerSize})
}

// Struct adds a struct definition. An empty name makes it anonymous.
func (b *Builder) Struct(name string, size int64, members ...ir.Member) ir.NodeID {
	return b.StructAt(b.Reserve(), name, size, members...)
}

// StructAt adds a struct definition at a reserved ID.
func (b *Builder) StructAt(id ir.NodeID, name string, size int64, members ...ir.Member) ir.NodeID {
	return b.AddAt(id, ir.KindStruct, name, &ir.Composite{ByteSize: size, Members: members})
}

// Union adds a union definition.
func (b *Builder) Union(name string, size int64, members ...ir.Member) ir.NodeID {
	return b.Add(ir.KindUnion, name, &ir.Composite{ByteSize: size, Members: members})
}

// Declare adds an opaque declaration of a struct, union, class or
// enumeration.
func (b *Builder) Declare(kind ir.Kind, name string) ir.NodeID {
	b.t.Helper()
	switch kind.Variant() {
	case ir.VariantWithDataMembers:
		return b.Add(kind, name, &ir.Composite{Declaration: true})
	case ir.VariantEnumeration:
		return b.Add(kind, name, &ir.Enumeration{Declaration: true})
	default:
		b.t.Fatalf("testutil: cannot declare %s", kind)
		return ir.NoNode
	}
}

// Array adds an array of elem with one bounded dimension per count.
func (b *Builder) Array(elem ir.NodeID, counts ...int64) ir.NodeID {
	dims := make([]ir.Dimension, len(counts))
	for i, c := range counts {
		dims[i] = ir.Dimension{Count: ir.Int64(c)}
	}
	return b.Add(ir.KindArray, "", &ir.Array{Elem: elem, Dims: dims})
}

// FlexArray adds an array of elem with a single unbounded dimension.
func (b *Builder) FlexArray(elem ir.NodeID) ir.NodeID {
	return b.Add(ir.KindArray, "", &ir.Array{Elem: elem, Dims: []ir.Dimension{{}}})
}

// Enum adds an enumeration over the implicit base type.
func (b *Builder) Enum(name string, enumerators ...ir.Enumerator) ir.NodeID {
	return b.Add(ir.KindEnumeration, name, &ir.Enumeration{ByteSize: 4, Enumerators: enumerators})
}

// Func adds a subroutine type. ret is ir.NoNode for void.
func (b *Builder) Func(ret ir.NodeID, variadic bool, params ...ir.NodeID) ir.NodeID {
	ps := make([]ir.Param, len(params))
	for i, p := range params {
		ps[i] = ir.Param{Type: p}
	}
	return b.Add(ir.KindSubroutine, "", &ir.Subroutine{Return: ret, Params: ps, Variadic: variadic})
}

// String adds a string type; a nil length means dynamic.
func (b *Builder) String(length *int64) ir.NodeID {
	return b.Add(ir.KindString, "", &ir.String{Length: length})
}

// Field builds a data member.
func Field(name string, typ ir.NodeID, offset int64) ir.Member {
	return ir.Member{Name: name, Type: typ, Offset: offset}
}

// Enumerator builds an enumerator with an implicit value.
func Enumerator(name string) ir.Enumerator {
	return ir.Enumerator{Name: name}
}

// EnumValue builds an enumerator with an explicit value.
func EnumValue(name string, v int64) ir.Enumerator {
	return ir.Enumerator{Name: name, Value: ir.Int64(v)}
}

// ListNode adds `struct Node { struct Node *next; int val; }` to the
// current unit and returns the struct and its pointer type.
func (b *Builder) ListNode() (node, next ir.NodeID) {
	node = b.Reserve()
	next = b.Pointer(node)
	val := b.Int()
	b.StructAt(node, "Node", 16, Field("next", next, 0), Field("val", val, 8))
	return node, next
}

// MutualPair adds `struct A { struct B *b; }; struct B { struct A *a; };`
// to the current unit.
func (b *Builder) MutualPair() (a, bb ir.NodeID) {
	a = b.Reserve()
	bb = b.Reserve()
	pa := b.Pointer(a)
	pb := b.Pointer(bb)
	b.StructAt(a, "A", PointerSize, Field("b", pb, 0))
	b.StructAt(bb, "B", PointerSize, Field("a", pa, 0))
	return a, bb
}

// ForwardDeclaredPair adds
//
//	struct B;
//	struct A { struct B *b; };
//	struct B { struct A *a; };
//
// to the current unit, so A reaches B only through the declaration. It
// returns both definitions and the declaration.
func (b *Builder) ForwardDeclaredPair() (a, bb, decl ir.NodeID) {
	decl = b.Declare(ir.KindStruct, "B")
	a = b.Reserve()
	pa := b.Pointer(a)
	pb := b.Pointer(decl)
	b.StructAt(a, "A", PointerSize, Field("b", pb, 0))
	bb = b.Struct("B", PointerSize, Field("a", pa, 0))
	return a, bb, decl
}
