package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/typegraph/internal/ir"
)

func TestBuilder_SequentialIDs(t *testing.T) {
	b := NewBuilder(t)
	i := b.Int()
	p := b.Pointer(i)

	assert.Equal(t, ir.NodeID(1), i)
	assert.Equal(t, ir.NodeID(2), p)
	assert.Equal(t, 2, b.Graph().Len())
}

func TestBuilder_UnitsTagNodes(t *testing.T) {
	b := NewBuilder(t)
	a := b.Unit("a.c").Int()
	c := b.Unit("b.c").Int()

	assert.Equal(t, "a.c", b.Graph().MustLookup(a).Unit)
	assert.Equal(t, "b.c", b.Graph().MustLookup(c).Unit)
}

func TestBuilder_ListNode(t *testing.T) {
	b := NewBuilder(t).Unit("a.c")
	node, next := b.ListNode()

	g := b.Graph()
	n := g.MustLookup(node)
	require.Equal(t, ir.KindStruct, n.Kind)
	assert.Equal(t, "Node", n.Name)

	edges := g.OutEdges(next)
	require.Len(t, edges, 1)
	assert.Equal(t, node, edges[0].Target, "pointer refers back to the struct")
}

func TestBuilder_Declare(t *testing.T) {
	b := NewBuilder(t)
	opaque := b.Declare(ir.KindStruct, "Opaque")
	assert.True(t, b.Graph().IsDeclaration(opaque))
}

func TestBuilder_ForwardDeclaredPair(t *testing.T) {
	b := NewBuilder(t).Unit("a.c")
	_, bb, decl := b.ForwardDeclaredPair()

	def, ok := b.Graph().FindDefinition(decl)
	require.True(t, ok)
	assert.Equal(t, bb, def)
}
