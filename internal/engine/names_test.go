package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/typegraph/internal/ir"
	"github.com/roach88/typegraph/internal/testutil"
)

func TestAbstractName_DerivedKinds(t *testing.T) {
	b := testutil.NewBuilder(t)
	i := b.Int()
	c := b.Char()
	node, next := b.ListNode()
	voidPtr := b.Pointer(ir.NoNode)
	constInt := b.Const(i)
	ref := b.Reference(i)
	matrix := b.Array(i, 2, 3)
	flex := b.FlexArray(c)
	charPtr := b.Pointer(c)
	fn := b.Func(i, true, charPtr)
	voidFn := b.Func(ir.NoNode, false)
	fixed := b.String(ir.Int64(16))
	dyn := b.String(nil)
	anonBase := b.Add(ir.KindBase, "", &ir.Base{Encoding: ir.EncodingUnsigned, ByteSize: 2})

	eng := newTestEngine(b.Graph())

	tests := []struct {
		name string
		id   ir.NodeID
		want string
	}{
		{"named base", i, "int"},
		{"anonymous base", anonBase, "__BASE_unsigned_2"},
		{"named struct", node, "Node"},
		{"pointer", next, "__PTR_Node"},
		{"void pointer", voidPtr, "__PTR_void"},
		{"const", constInt, "__CONST_int"},
		{"reference", ref, "__REF_int"},
		{"multi-dimensional array", matrix, "__ARR2___ARR3_int"},
		{"unbounded array", flex, "__ARR_char"},
		{"variadic function", fn, "__FUN_FROM___PTR_char,...__FUN_TO_int"},
		{"void function", voidFn, "__FUN_FROM___FUN_TO_void"},
		{"fixed string", fixed, "__STR16"},
		{"dynamic string", dyn, "__STR_DYN"},
		{"void", ir.NoNode, "void"},
		{"dangling", 9999, "__DANGLING"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, eng.AbstractName(tt.id))
		})
	}
}

func TestAbstractName_AnonymousComposites(t *testing.T) {
	b := testutil.NewBuilder(t)
	i := b.Int()

	viaTypedef := b.Struct("", 4, testutil.Field("x", i, 0))
	b.Typedef("point_t", viaTypedef)

	outer := b.Reserve()
	inner := b.Struct("", 4, testutil.Field("y", i, 0))
	b.StructAt(outer, "Outer", 4, testutil.Field("in", inner, 0))

	lonely := b.Struct("", 8, testutil.Field("a", i, 0), testutil.Field("b", i, 4))
	b.Pointer(lonely)

	anonEnum := b.Enum("", testutil.Enumerator("ON"), testutil.Enumerator("OFF"))

	eng := newTestEngine(b.Graph())

	assert.Equal(t, "point_t", eng.AbstractName(viaTypedef), "typedef supplies the name")
	assert.Equal(t, "Outer::in", eng.AbstractName(inner), "embedding member supplies the name")
	assert.Equal(t, "__ANON_STRUCT_8_{a,b}", eng.AbstractName(lonely), "pointers do not name their pointee")
	assert.Equal(t, "__ANON_ENUMERATION_4_{ON,OFF}", eng.AbstractName(anonEnum))
}

func TestAbstractName_AmbiguousReferrersFallBack(t *testing.T) {
	b := testutil.NewBuilder(t)
	i := b.Int()
	anon := b.Struct("", 4, testutil.Field("x", i, 0))
	b.Typedef("first_t", anon)
	b.Typedef("second_t", anon)

	eng := newTestEngine(b.Graph())
	assert.Equal(t, "__ANON_STRUCT_4_{x}", eng.AbstractName(anon))
}

func TestAbstractName_StableAcrossUnits(t *testing.T) {
	b := testutil.NewBuilder(t)
	_, next1 := b.Unit("a.c").ListNode()
	_, next2 := b.Unit("b.c").ListNode()
	eng := newTestEngine(b.Graph())

	assert.Equal(t, eng.AbstractName(next1), eng.AbstractName(next2))
}

func TestAbstractName_NFC(t *testing.T) {
	b := testutil.NewBuilder(t)
	decomposed := b.Struct("cafe\u0301", 0)
	precomposed := b.Struct("caf\u00e9", 0)
	eng := newTestEngine(b.Graph())

	assert.Equal(t, eng.AbstractName(precomposed), eng.AbstractName(decomposed))
}
