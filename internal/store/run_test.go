package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/typegraph/internal/engine"
	"github.com/roach88/typegraph/internal/ir"
	"github.com/roach88/typegraph/internal/testutil"
)

func TestCaptureListFixture(t *testing.T) {
	snap := captureTestSnapshot(t, listFixture(t))

	assert.Equal(t, 7, snap.NodeCount)
	require.Len(t, snap.Nodes, 7)
	assert.Equal(t, "fixture", snap.Source)
	assert.NotEmpty(t, snap.GraphHash)

	require.Len(t, snap.SCCs, 2)
	assert.Equal(t, []ir.NodeID{1, 2}, snap.SCCs[0].Members)
	assert.Equal(t, []ir.NodeID{4, 5}, snap.SCCs[1].Members)
	assert.Equal(t, snap.SCCs[0].Digest, snap.SCCs[1].Digest, "digests do not depend on IDs")

	var members [][]ir.NodeID
	for _, c := range snap.Classes {
		members = append(members, c.Members)
	}
	assert.ElementsMatch(t, [][]ir.NodeID{{1, 4}, {2, 5}, {3, 6}, {7}}, members)

	for _, n := range snap.Nodes {
		require.NotNil(t, n.Class, "node %s is unclassified", n.ID)
	}
	assert.Equal(t, *snap.Nodes[0].Class, *snap.Nodes[3].Class)

	opaque := snap.Nodes[6]
	assert.False(t, opaque.Complete)
	assert.Nil(t, opaque.SCC)
	assert.Equal(t, 0, *snap.Nodes[0].SCC)
	assert.Equal(t, 1, *snap.Nodes[4].SCC)
}

func TestCaptureIncludesImplicitBase(t *testing.T) {
	b := testutil.NewBuilder(t).Unit("a.c")
	color := b.Enum("Color", testutil.Enumerator("RED"))
	g := b.Graph()
	hashBefore, err := ir.GraphHash(g)
	require.NoError(t, err)

	snap := captureTestSnapshot(t, g)

	assert.Equal(t, hashBefore, snap.GraphHash)
	assert.Equal(t, 2, snap.NodeCount)
	require.Len(t, snap.Nodes, 2)
	assert.Equal(t, color, snap.Nodes[0].ID)
	assert.Equal(t, ir.ImplicitBaseID, snap.Nodes[1].ID)

	stored := make(map[ir.NodeID]bool)
	for _, n := range snap.Nodes {
		stored[n.ID] = true
	}
	for _, c := range snap.Classes {
		for _, m := range c.Members {
			assert.True(t, stored[m], "class member %s has no summary row", m)
		}
	}
	assert.Equal(t, 2, g.Len(), "analysis does not grow the graph")
}

func TestWriteAndReadRun(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	snap := captureTestSnapshot(t, listFixture(t))

	run, err := s.WriteRun(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, int64(1), run.Seq)
	assert.Equal(t, ir.EngineVersion, run.EngineVersion)
	assert.Equal(t, ir.IRVersion, run.IRVersion)
	assert.Equal(t, 7, run.NodeCount)
	assert.Equal(t, snap.Stats.Comparisons, run.Comparisons)

	got, err := s.ReadRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run, got)

	summaries, err := s.ReadSummaries(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.Nodes, summaries)

	sccs, err := s.ReadSCCs(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, sccs, len(snap.SCCs))
	for i, c := range sccs {
		want := snap.SCCs[i]
		assert.Equal(t, want.Index, c.Index)
		assert.Equal(t, want.Digest, c.Digest)
		assert.Equal(t, want.ChainOnly, c.ChainOnly)
		assert.Equal(t, want.Members, c.Members)
		require.Len(t, c.Edges, len(want.Edges))
		for j, e := range c.Edges {
			assert.Equal(t, want.Edges[j].Source, e.Source)
			assert.Equal(t, want.Edges[j].Target, e.Target)
			assert.Equal(t, want.Edges[j].Label.Kind, e.Label.Kind)
			assert.Equal(t, want.Edges[j].Label.Name, e.Label.Name)
		}
	}

	classes, err := s.ReadClasses(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.Classes, classes)
}

func TestReadClassMembers(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	snap := captureTestSnapshot(t, listFixture(t))
	run, err := s.WriteRun(ctx, snap)
	require.NoError(t, err)

	nodeClass := *snap.Nodes[0].Class
	members, err := s.ReadClassMembers(ctx, run.ID, nodeClass)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, ir.NodeID(1), members[0].ID)
	assert.Equal(t, ir.NodeID(4), members[1].ID)
	assert.Equal(t, "a.c", members[0].Unit)
	assert.Equal(t, "b.c", members[1].Unit)

	none, err := s.ReadClassMembers(ctx, run.ID, engine.ClassID(999))
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.NotNil(t, none)
}

func TestRunsAreOrderedBySeq(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	snap := captureTestSnapshot(t, listFixture(t))

	first, err := s.WriteRun(ctx, snap)
	require.NoError(t, err)
	second, err := s.WriteRun(ctx, snap)
	require.NoError(t, err)

	assert.Equal(t, int64(2), second.Seq)
	assert.NotEqual(t, first.ID, second.ID)

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, first.ID, runs[0].ID)
	assert.Equal(t, second.ID, runs[1].ID)

	same, err := s.FindRunsByGraphHash(ctx, snap.GraphHash)
	require.NoError(t, err)
	assert.Len(t, same, 2)

	other, err := s.FindRunsByGraphHash(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestRunNotFound(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	_, err := s.LatestRun(ctx)
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = s.ReadRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestDeleteRunCascades(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	run, err := s.WriteRun(ctx, captureTestSnapshot(t, listFixture(t)))
	require.NoError(t, err)

	require.NoError(t, s.DeleteRun(ctx, run.ID))
	require.NoError(t, s.DeleteRun(ctx, run.ID), "deleting twice is not an error")

	summaries, err := s.ReadSummaries(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, summaries)

	classes, err := s.ReadClasses(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, classes)

	sccs, err := s.ReadSCCs(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, sccs)
}

func TestIncompleteCodeIsNull(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	run, err := s.WriteRun(ctx, captureTestSnapshot(t, listFixture(t)))
	require.NoError(t, err)

	var nulls int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM type_summaries WHERE run_id = ? AND code IS NULL`, run.ID,
	).Scan(&nulls)
	require.NoError(t, err)
	assert.Equal(t, 1, nulls)
}
