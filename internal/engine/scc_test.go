package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/typegraph/internal/ir"
	"github.com/roach88/typegraph/internal/testutil"
)

func TestSCC_SelfReferentialStruct(t *testing.T) {
	b := testutil.NewBuilder(t).Unit("a.c")
	node, next := b.ListNode()
	eng := newTestEngine(b.Graph())

	scc := eng.SCCOf(node)
	require.NotNil(t, scc)
	assert.Equal(t, []ir.NodeID{node, next}, scc.Members)
	assert.Len(t, scc.Edges, 2)
	assert.False(t, scc.ChainOnly)
	assert.NotZero(t, scc.Digest)

	assert.Same(t, scc, eng.SCCOf(next), "members share one TypeSCC")
	assert.Nil(t, eng.SCCOf(3), "int is not on a cycle")
	assert.True(t, scc.Contains(next))
	assert.False(t, scc.Contains(3))
}

func TestSCC_BuiltOncePerNode(t *testing.T) {
	b := testutil.NewBuilder(t).Unit("a.c")
	node, next := b.ListNode()
	eng := newTestEngine(b.Graph())

	first := eng.SCCOf(node)
	second := eng.SCCOf(node)
	third := eng.SCCOf(next)

	assert.Same(t, first, second)
	assert.Same(t, first, third)
	assert.Equal(t, 1, eng.Stats().SCCs)
}

func TestSCC_MutualRecursionAcrossUnits(t *testing.T) {
	b := testutil.NewBuilder(t)
	a1, b1 := b.Unit("a.c").MutualPair()
	a2, b2 := b.Unit("b.c").MutualPair()
	eng := newTestEngine(b.Graph())

	scc1 := eng.SCCOf(a1)
	scc2 := eng.SCCOf(a2)
	require.NotNil(t, scc1)
	require.NotNil(t, scc2)

	assert.Same(t, scc1, eng.SCCOf(b1))
	assert.Same(t, scc2, eng.SCCOf(b2))
	assert.NotSame(t, scc1, scc2)

	// Both structs and both pointer types are members; two of the four
	// edges are the struct members.
	for _, scc := range []*TypeSCC{scc1, scc2} {
		assert.Len(t, scc.Members, 4)
		assert.Len(t, scc.Edges, 4)
		memberEdges := 0
		for _, e := range scc.Edges {
			if e.Label.Kind == ir.ReasonMember {
				memberEdges++
			}
		}
		assert.Equal(t, 2, memberEdges)
	}

	assert.Equal(t, scc1.Digest, scc2.Digest, "digests do not depend on node IDs")
}

func TestSCC_CycleThroughDeclaration(t *testing.T) {
	b := testutil.NewBuilder(t)
	a1, b1, decl := b.Unit("a.c").ForwardDeclaredPair()
	a2, _ := b.Unit("b.c").MutualPair()
	eng := newTestEngine(b.Graph())

	scc := eng.SCCOf(a1)
	require.NotNil(t, scc, "the declaration leads back to A through its definition")
	assert.Len(t, scc.Members, 5)
	assert.True(t, scc.Contains(decl))
	assert.True(t, scc.Contains(b1))
	assert.Len(t, scc.Edges, 5)
	assert.False(t, scc.ChainOnly)

	direct := eng.SCCOf(a2)
	require.NotNil(t, direct)
	assert.Equal(t, direct.Digest, scc.Digest, "the definition edge does not change the digest")
}

func TestSCC_DigestIndependentOfNumbering(t *testing.T) {
	b := testutil.NewBuilder(t)
	node1, _ := b.Unit("a.c").ListNode()

	// Same struct, nodes created in a different order.
	b.Unit("b.c")
	val := b.Int()
	node2 := b.Reserve()
	next := b.Pointer(node2)
	b.StructAt(node2, "Node", 16, testutil.Field("next", next, 0), testutil.Field("val", val, 8))

	eng := newTestEngine(b.Graph())
	assert.Equal(t, eng.SCCOf(node1).Digest, eng.SCCOf(node2).Digest)
}

func TestSCC_TypedefLoopIsChainOnly(t *testing.T) {
	b := testutil.NewBuilder(t)
	first := b.Reserve()
	second := b.Typedef("B", first)
	b.TypedefAt(first, "A", second)

	scc := newTestEngine(b.Graph()).SCCOf(first)
	require.NotNil(t, scc)
	assert.True(t, scc.ChainOnly)
	assert.Equal(t, []ir.NodeID{first, second}, scc.Members)
}

func TestSCC_AcyclicGraphHasNoComponents(t *testing.T) {
	b := testutil.NewBuilder(t)
	i := b.Int()
	arr := b.Array(i, 4)
	s := b.Struct("S", 16, testutil.Field("xs", arr, 0))
	eng := newTestEngine(b.Graph())

	for _, id := range []ir.NodeID{s, arr, i} {
		assert.Nil(t, eng.SCCOf(id), "node %s", id)
	}
	assert.Equal(t, 0, eng.Stats().SCCs)
}

func TestComponents_Partition(t *testing.T) {
	b := testutil.NewBuilder(t).Unit("a.c")
	node, next := b.ListNode()
	holder := b.Struct("Holder", 8, testutil.Field("head", next, 0))
	eng := newTestEngine(b.Graph())

	comps := eng.Components(holder)

	require.Len(t, comps, 4)
	assert.Equal(t, comps[node], comps[next], "cycle members share a component")
	assert.NotEqual(t, comps[holder], comps[node])
	assert.NotEqual(t, comps[3], comps[node])
	assert.Equal(t, 0, comps[holder], "numbers follow discovery order")
}

func TestComponents_IncludesPreviouslyBuiltNodes(t *testing.T) {
	b := testutil.NewBuilder(t).Unit("a.c")
	node, next := b.ListNode()
	holder := b.Struct("Holder", 8, testutil.Field("head", next, 0))
	eng := newTestEngine(b.Graph())

	// Build the inner component first; the later run prunes it.
	inner := eng.SCCOf(node)
	comps := eng.Components(holder)

	assert.Len(t, comps, 4)
	assert.Same(t, inner, eng.SCCOf(next))
	assert.Nil(t, eng.SCCOf(holder))
}

func TestComponents_DigestsIndependentOfDiscoveryOrder(t *testing.T) {
	build := func(t *testing.T) (*Engine, ir.NodeID, ir.NodeID) {
		b := testutil.NewBuilder(t).Unit("a.c")
		a, bb := b.MutualPair()
		return newTestEngine(b.Graph()), a, bb
	}

	fromA, a, _ := build(t)
	fromB, _, bb := build(t)

	digestA := fromA.SCCOf(a).Digest
	digestB := fromB.SCCOf(bb).Digest
	assert.Equal(t, digestA, digestB)
}

func TestSCC_ReattachmentPanics(t *testing.T) {
	b := testutil.NewBuilder(t).Unit("a.c")
	node, _ := b.ListNode()
	eng := newTestEngine(b.Graph())
	eng.SCCOf(node)

	requireInvariant(t, ErrCodeSCCReattached, func() {
		eng.setSCC(node, &TypeSCC{})
	})
}
