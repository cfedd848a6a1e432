package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type compiledGraph struct {
	GraphHash string           `json:"graph_hash"`
	IRVersion string           `json:"ir_version"`
	Nodes     []map[string]any `json:"nodes"`
}

func TestCompileCommand_JSON(t *testing.T) {
	path := writeFile(t, "list.cue", listCUE)

	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "json"}), path)
	require.NoError(t, err)

	resp := decode[compiledGraph](t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Len(t, resp.Data.GraphHash, 64)
	assert.NotEmpty(t, resp.Data.IRVersion)
	assert.Len(t, resp.Data.Nodes, 6)
}

func TestCompileCommand_OutputFile(t *testing.T) {
	path := writeFile(t, "list.cue", listCUE)
	outFile := filepath.Join(t.TempDir(), "list.json")

	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), path, "-o", outFile)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Compiled 6 node(s) in 2 unit(s)")
	assert.Contains(t, out, "  a.c: 3 node(s)\n  b.c: 3 node(s)")
	assert.Contains(t, out, "Wrote canonical IR to "+outFile)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	var graph compiledGraph
	require.NoError(t, json.Unmarshal(data, &graph))
	assert.Len(t, graph.Nodes, 6)
	assert.NotContains(t, string(data), "\n", "canonical output has no whitespace")
}

func TestCompileCommand_Deterministic(t *testing.T) {
	path := writeFile(t, "list.cue", listCUE)
	dir := t.TempDir()
	first, second := filepath.Join(dir, "1.json"), filepath.Join(dir, "2.json")

	_, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), path, "-o", first)
	require.NoError(t, err)
	_, err = execute(t, NewCompileCommand(&RootOptions{Format: "text"}), path, "-o", second)
	require.NoError(t, err)

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCompileCommand_WriteFailure(t *testing.T) {
	path := writeFile(t, "list.cue", listCUE)

	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "json"}), path, "-o", filepath.Join(t.TempDir(), "missing", "out.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	resp := decode[any](t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeWriteFailed, resp.Error.Code)
}
