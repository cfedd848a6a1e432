package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/typegraph/internal/ir"
	"github.com/roach88/typegraph/internal/testutil"
)

func TestWalk_EdgeModeClassifiesBackEdge(t *testing.T) {
	b := testutil.NewBuilder(t).Unit("a.c")
	node, next := b.ListNode()
	val := ir.NodeID(3)

	steps := collect(newTestEngine(b.Graph()).Walk(node, ModeEdges))

	assert.Equal(t, []ir.NodeID{node, next, node, val}, nodeIDs(steps))
	assert.Equal(t, []EdgeClass{EdgeRoot, EdgeTree, EdgeBack, EdgeTree}, classes(steps))
	assert.Equal(t, ir.ReasonRoot, steps[0].Reason.Kind)
	assert.Equal(t, ir.ReasonMember, steps[1].Reason.Kind)
	assert.Equal(t, "next", steps[1].Reason.Name)
	assert.Equal(t, ir.ReasonPointee, steps[2].Reason.Kind)
	assert.Equal(t, []int{0, 1, 2, 1}, []int{steps[0].Depth, steps[1].Depth, steps[2].Depth, steps[3].Depth})
}

func TestWalk_WalkModeSkipsGreyTargets(t *testing.T) {
	b := testutil.NewBuilder(t).Unit("a.c")
	node, next := b.ListNode()

	steps := collect(newTestEngine(b.Graph()).Walk(node, ModeWalk))

	assert.Equal(t, []ir.NodeID{node, next, 3}, nodeIDs(steps))
	assert.Equal(t, []EdgeClass{EdgeRoot, EdgeTree, EdgeTree}, classes(steps))
}

func TestWalk_CrossEdges(t *testing.T) {
	b := testutil.NewBuilder(t)
	i := b.Int()
	ptr := b.Pointer(i)
	s := b.Struct("S", 16, testutil.Field("a", ptr, 0), testutil.Field("b", ptr, 8))
	eng := newTestEngine(b.Graph())

	t.Run("edge mode offers the shared target once as cross", func(t *testing.T) {
		steps := collect(eng.Walk(s, ModeEdges))
		assert.Equal(t, []ir.NodeID{s, ptr, i, ptr}, nodeIDs(steps))
		assert.Equal(t, []EdgeClass{EdgeRoot, EdgeTree, EdgeTree, EdgeCross}, classes(steps))
	})

	t.Run("walk mode re-descends into finished nodes", func(t *testing.T) {
		steps := collect(eng.Walk(s, ModeWalk))
		assert.Equal(t, []ir.NodeID{s, ptr, i, ptr, i}, nodeIDs(steps))
		assert.Equal(t, []EdgeClass{EdgeRoot, EdgeTree, EdgeTree, EdgeCross, EdgeCross}, classes(steps))
	})
}

func TestWalk_VoidTargetIsVisitedNotEntered(t *testing.T) {
	b := testutil.NewBuilder(t)
	vp := b.Pointer(ir.NoNode)
	fn := b.Func(ir.NoNode, false, vp)

	steps := collect(newTestEngine(b.Graph()).Walk(fn, ModeEdges))

	require.Len(t, steps, 4)
	assert.Equal(t, ir.NoNode, steps[1].Node, "void return type is an edge")
	assert.Equal(t, ir.ReasonReturn, steps[1].Reason.Kind)
	assert.Equal(t, vp, steps[2].Node)
	assert.Equal(t, ir.NoNode, steps[3].Node, "void pointee is an edge")
	assert.Equal(t, ir.ReasonPointee, steps[3].Reason.Kind)
}

func TestWalk_VoidStart(t *testing.T) {
	w := newTestEngine(ir.NewGraph()).Walk(ir.NoNode, ModeEdges)

	require.True(t, w.Next())
	assert.Equal(t, EdgeRoot, w.Step().Class)
	assert.False(t, w.Next())
	assert.False(t, w.Next(), "exhausted walkers stay exhausted")
}

func TestWalk_EveryEdgeOfferedOnce(t *testing.T) {
	b := testutil.NewBuilder(t).Unit("a.c")
	a, bb := b.MutualPair()
	g := b.Graph()

	steps := collect(newTestEngine(g).Walk(a, ModeEdges))

	// A -> *B -> B -> *A -> A: four edges, plus the root.
	assert.Len(t, steps, 5)
	assert.Contains(t, nodeIDs(steps), bb)
	assert.Equal(t, EdgeBack, steps[len(steps)-1].Class)
}

func TestWalk_AbandonEarly(t *testing.T) {
	b := testutil.NewBuilder(t).Unit("a.c")
	node, _ := b.ListNode()
	w := newTestEngine(b.Graph()).Walk(node, ModeEdges)

	count := 0
	for range w.All() {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
	assert.Len(t, w.Path(), 2, "the walk stays suspended where it stopped")
}

func TestWalk_FinishHookOrder(t *testing.T) {
	b := testutil.NewBuilder(t).Unit("a.c")
	node, next := b.ListNode()

	var finished []ir.NodeID
	w := newWalker(b.Graph(), node, ModeEdges, withFinish(func(id ir.NodeID) {
		finished = append(finished, id)
	}))
	for w.Next() {
	}

	assert.Equal(t, []ir.NodeID{next, 3, node}, finished)
}

func TestWalk_PruneHookDropsEdges(t *testing.T) {
	b := testutil.NewBuilder(t).Unit("a.c")
	node, next := b.ListNode()

	w := newWalker(b.Graph(), node, ModeEdges, withPrune(func(e ir.TypeEdge) bool {
		return e.Target == next
	}))
	steps := collect(w)

	assert.Equal(t, []ir.NodeID{node, 3}, nodeIDs(steps))
}
