package engine

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/typegraph/internal/ir"
)

func newTestEngine(src Source) *Engine {
	return New(src, WithLogger(slog.New(slog.DiscardHandler)))
}

// collect drains a walker into a slice.
func collect(w *Walker) []Step {
	var steps []Step
	for st := range w.All() {
		steps = append(steps, st)
	}
	return steps
}

// requireInvariant runs fn and asserts it panics with an InvariantError
// carrying code.
func requireInvariant(t *testing.T, code InvariantCode, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected invariant violation")
		ie, ok := AsInvariantError(r)
		require.True(t, ok, "panic value %v is not an InvariantError", r)
		assert.Equal(t, code, ie.Code)
	}()
	fn()
}

func nodeIDs(steps []Step) []ir.NodeID {
	out := make([]ir.NodeID, len(steps))
	for i, st := range steps {
		out[i] = st.Node
	}
	return out
}

func classes(steps []Step) []EdgeClass {
	out := make([]EdgeClass, len(steps))
	for i, st := range steps {
		out[i] = st.Class
	}
	return out
}
