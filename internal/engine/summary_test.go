package engine

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/typegraph/internal/ir"
	"github.com/roach88/typegraph/internal/testutil"
)

func requireCode(t *testing.T, eng *Engine, id ir.NodeID) uint32 {
	t.Helper()
	code, ok := eng.SummaryCode(id)
	require.True(t, ok, "node %s should have a summary code", id)
	require.NotZero(t, code)
	return code
}

func requireIncomplete(t *testing.T, eng *Engine, id ir.NodeID) {
	t.Helper()
	_, ok := eng.SummaryCode(id)
	require.False(t, ok, "node %s should be incomplete", id)
}

// Scenario: an opaque declaration with the definition in another unit.
func TestSummary_OpaqueDeclarations(t *testing.T) {
	b := testutil.NewBuilder(t)
	b.Unit("a.c")
	opaque := b.Declare(ir.KindStruct, "Opaque")
	holderPtr := b.Struct("HolderPtr", 8, testutil.Field("p", b.Pointer(opaque), 0))
	holderVal := b.Struct("HolderVal", 4, testutil.Field("value", opaque, 0))
	b.Unit("b.c")
	def := b.Struct("Opaque", 4, testutil.Field("x", b.Int(), 0))

	eng := newTestEngine(b.Graph())

	requireIncomplete(t, eng, opaque)
	requireCode(t, eng, holderPtr)
	requireIncomplete(t, eng, holderVal)
	requireCode(t, eng, def)
}

func TestSummary_DeclarationResolvesInSameUnit(t *testing.T) {
	b := testutil.NewBuilder(t).Unit("a.c")
	opaque := b.Declare(ir.KindStruct, "Opaque")
	def := b.Struct("Opaque", 4, testutil.Field("x", b.Int(), 0))
	holder := b.Struct("Holder", 4, testutil.Field("value", opaque, 0))

	eng := newTestEngine(b.Graph())

	assert.Equal(t, requireCode(t, eng, def), requireCode(t, eng, opaque))
	requireCode(t, eng, holder)
}

func TestSummary_IncompletenessNeverCrossesPointers(t *testing.T) {
	b := testutil.NewBuilder(t).Unit("a.c")
	opaque := b.Declare(ir.KindStruct, "Opaque")
	node := b.Reserve()
	next := b.Pointer(node)
	b.StructAt(node, "Node", 16, testutil.Field("next", next, 0), testutil.Field("o", opaque, 8))
	holder := b.Struct("Holder", 8, testutil.Field("head", next, 0))

	eng := newTestEngine(b.Graph())

	require.NotNil(t, eng.SCCOf(node))
	requireIncomplete(t, eng, node)
	requireCode(t, eng, next)
	requireCode(t, eng, holder)
}

func TestSummary_WrappersShareConcreteCode(t *testing.T) {
	b := testutil.NewBuilder(t)
	i := b.Int()
	s := b.Struct("S", 4, testutil.Field("x", i, 0))
	td := b.Typedef("S_t", s)
	cst := b.Const(td)
	voidTD := b.Typedef("nothing", ir.NoNode)

	eng := newTestEngine(b.Graph())

	code := requireCode(t, eng, s)
	assert.Equal(t, code, requireCode(t, eng, td))
	assert.Equal(t, code, requireCode(t, eng, cst))
	requireCode(t, eng, voidTD)
}

func TestSummary_EqualAcrossUnits(t *testing.T) {
	b := testutil.NewBuilder(t)
	node1, next1 := b.Unit("a.c").ListNode()
	node2, next2 := b.Unit("b.c").ListNode()
	eng := newTestEngine(b.Graph())

	assert.Equal(t, requireCode(t, eng, node1), requireCode(t, eng, node2))
	assert.Equal(t, requireCode(t, eng, next1), requireCode(t, eng, next2))
	assert.NotEqual(t, requireCode(t, eng, node1), requireCode(t, eng, next1),
		"members of one cycle are distinguished by their names")
}

func TestSummary_DistinguishesShapes(t *testing.T) {
	b := testutil.NewBuilder(t)
	i := b.Int()
	c := b.Char()
	long := b.Base("long", ir.EncodingSigned, 8)

	intPtr := b.Struct("P", 8, testutil.Field("p", b.Pointer(i), 0))
	charPtr := b.Struct("P", 8, testutil.Field("p", b.Pointer(c), 0))
	shifted := b.Struct("P", 16, testutil.Field("p", b.Pointer(i), 8))

	voidFn := b.Func(ir.NoNode, false)
	variadicFn := b.Func(ir.NoNode, true)

	eng := newTestEngine(b.Graph())

	assert.NotEqual(t, requireCode(t, eng, i), requireCode(t, eng, long))
	assert.NotEqual(t, requireCode(t, eng, intPtr), requireCode(t, eng, charPtr))
	assert.NotEqual(t, requireCode(t, eng, intPtr), requireCode(t, eng, shifted))
	assert.NotEqual(t, requireCode(t, eng, voidFn), requireCode(t, eng, variadicFn))
}

func TestSummary_ArraysCollapse(t *testing.T) {
	b := testutil.NewBuilder(t)
	i := b.Int()
	matrix := b.Array(i, 2, 3)
	flat := b.Array(i, 6)
	nested := b.Array(b.Array(i, 3), 2)
	open := b.FlexArray(i)

	eng := newTestEngine(b.Graph())

	code := requireCode(t, eng, matrix)
	assert.Equal(t, code, requireCode(t, eng, flat))
	assert.Equal(t, code, requireCode(t, eng, nested))
	assert.NotEqual(t, code, requireCode(t, eng, open))
}

func TestSummary_Enumerations(t *testing.T) {
	b := testutil.NewBuilder(t)
	implicit := b.Enum("Color", testutil.Enumerator("RED"), testutil.EnumValue("GREEN", 5), testutil.Enumerator("BLUE"))
	explicit := b.Enum("Color", testutil.EnumValue("RED", 0), testutil.EnumValue("GREEN", 5), testutil.EnumValue("BLUE", 6))
	shifted := b.Enum("Color", testutil.Enumerator("RED"), testutil.EnumValue("GREEN", 6), testutil.Enumerator("BLUE"))

	eng := newTestEngine(b.Graph())

	code := requireCode(t, eng, implicit)
	assert.Equal(t, code, requireCode(t, eng, explicit), "implicit and explicit values fold alike")
	assert.NotEqual(t, code, requireCode(t, eng, shifted))
}

func TestSummary_Strings(t *testing.T) {
	b := testutil.NewBuilder(t)
	s8 := b.String(ir.Int64(8))
	s16 := b.String(ir.Int64(16))
	dyn := b.String(nil)
	eng := newTestEngine(b.Graph())

	assert.NotEqual(t, requireCode(t, eng, s8), requireCode(t, eng, s16))
	assert.NotEqual(t, requireCode(t, eng, s8), requireCode(t, eng, dyn))
}

func TestSummary_DanglingReferenceWarns(t *testing.T) {
	b := testutil.NewBuilder(t)
	broken := b.Struct("Broken", 4, testutil.Field("x", 9999, 0))

	var buf bytes.Buffer
	eng := New(b.Graph(), WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	requireIncomplete(t, eng, broken)
	assert.Contains(t, buf.String(), "dangling type reference")
}

func TestSummary_Memoized(t *testing.T) {
	b := testutil.NewBuilder(t).Unit("a.c")
	node, _ := b.ListNode()
	eng := newTestEngine(b.Graph())

	first := requireCode(t, eng, node)
	before := eng.Stats().Summaries
	assert.Equal(t, first, requireCode(t, eng, node))
	assert.Equal(t, before, eng.Stats().Summaries)
}

func TestFolder_NeverZero(t *testing.T) {
	f := newFolder()
	// XOR-ing in the rotated accumulator drives it to zero without the
	// sentinel rule.
	f.word(folderRotated(f.acc))
	assert.Equal(t, foldSentinel, f.sum())
}

func folderRotated(acc uint32) uint32 {
	return acc<<foldRotate | acc>>(32-foldRotate)
}
