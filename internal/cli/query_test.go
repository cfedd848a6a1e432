package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// analyzeInto stores one run of the list graph in db and returns its ID.
func analyzeInto(t *testing.T, db string) string {
	t.Helper()
	path := writeFile(t, "list.cue", listCUE)
	out, err := execute(t, NewAnalyzeCommand(&RootOptions{Format: "json", Database: db}), path)
	require.NoError(t, err)
	runID := decode[AnalyzeResult](t, out).Data.RunID
	require.NotEmpty(t, runID)
	return runID
}

func TestQueryCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "types.db")
	runID := analyzeInto(t, db)

	tests := []struct {
		name  string
		terms []string
		count int
	}{
		{"all", nil, 6},
		{"kind", []string{"kind=struct"}, 2},
		{"conjunction", []string{"kind=pointer", "unit=b.c"}, 1},
		{"acyclic", []string{"scc_index=null"}, 2},
		{"abstract name", []string{"abstract_name=__PTR_Node"}, 2},
		{"same class", []string{"same_class=#0x2"}, 2},
		{"node", []string{"node=0x5"}, 1},
		{"none", []string{"name=missing"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--run", runID}, tt.terms...)
			out, err := execute(t, NewQueryCommand(&RootOptions{Format: "json", Database: db}), args...)
			require.NoError(t, err)

			resp := decode[QueryResult](t, out)
			assert.Equal(t, runID, resp.Data.RunID)
			assert.Equal(t, tt.count, resp.Data.Count)
			assert.Len(t, resp.Data.Rows, tt.count)
		})
	}
}

func TestQueryCommand_LatestRunAndLimit(t *testing.T) {
	db := filepath.Join(t.TempDir(), "types.db")
	analyzeInto(t, db)
	latest := analyzeInto(t, db)

	out, err := execute(t, NewQueryCommand(&RootOptions{Format: "json", Database: db}), "--limit", "4")
	require.NoError(t, err)

	resp := decode[QueryResult](t, out)
	assert.Equal(t, latest, resp.Data.RunID)
	assert.Equal(t, 4, resp.Data.Count)
}

func TestQueryCommand_Text(t *testing.T) {
	db := filepath.Join(t.TempDir(), "types.db")
	analyzeInto(t, db)

	out, err := execute(t, NewQueryCommand(&RootOptions{Format: "text", Database: db}), "node=#0x1")
	require.NoError(t, err)
	assert.Contains(t, out, `a.c:int base abstract="int"`)
	assert.Contains(t, out, "scc=-")
	assert.Contains(t, out, "1 row(s)")
}

func TestQueryCommand_Errors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "types.db")
	analyzeInto(t, db)

	tests := []struct {
		name string
		db   string
		args []string
		code string
	}{
		{"unknown field", db, []string{"color=red"}, ErrCodeBadFilter},
		{"malformed term", db, []string{"kind"}, ErrCodeBadFilter},
		{"negative limit", db, []string{"--limit", "-1"}, ErrCodeBadFilter},
		{"unknown run", db, []string{"--run", "no-such-run"}, ErrCodeRunNotFound},
		{"missing database", filepath.Join(t.TempDir(), "missing.db"), nil, ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, NewQueryCommand(&RootOptions{Format: "json", Database: tt.db}), tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			resp := decode[any](t, out)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestNormalizeTerms(t *testing.T) {
	assert.Equal(t,
		[]string{"node=0x2d", "same_class=0x1", "name=#tag"},
		normalizeTerms([]string{"node=#0x2d", "same_class=#0x1", "name=#tag"}))
}
