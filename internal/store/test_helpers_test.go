package store

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/roach88/typegraph/internal/engine"
	"github.com/roach88/typegraph/internal/ir"
	"github.com/roach88/typegraph/internal/testutil"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// listFixture builds two copies of a linked-list node in different units
// plus an opaque declaration:
//
//	a.c: Node=1, Node*=2, int=3
//	b.c: Node=4, Node*=5, int=6
//	c.c: struct Opaque (declaration)=7
func listFixture(t *testing.T) *ir.Graph {
	t.Helper()
	b := testutil.NewBuilder(t).Unit("a.c")
	b.ListNode()
	b.Unit("b.c")
	b.ListNode()
	b.Unit("c.c")
	b.Declare(ir.KindStruct, "Opaque")
	return b.Graph()
}

// captureTestSnapshot analyses g with a quiet engine.
func captureTestSnapshot(t *testing.T, g *ir.Graph) Snapshot {
	t.Helper()
	e := engine.New(g, engine.WithLogger(slog.New(slog.DiscardHandler)))
	snap, err := Capture(g, e, "fixture")
	if err != nil {
		t.Fatalf("Capture() failed: %v", err)
	}
	return snap
}
