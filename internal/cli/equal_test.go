package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/typegraph/internal/ir"
)

func TestEqualCommand_Equal(t *testing.T) {
	path := writeFile(t, "list.cue", listCUE)

	out, err := execute(t, NewEqualCommand(&RootOptions{Format: "text"}), path, "a.c:Node", "b.c:Node")
	require.NoError(t, err)

	assert.Contains(t, out, "equal\n")
	assert.Contains(t, out, "a.c:Node #0x2")
	assert.Contains(t, out, "b.c:Node #0x5")
	assert.Contains(t, out, `kind=struct abstract="Node"`)
}

func TestEqualCommand_Unequal(t *testing.T) {
	path := writeFile(t, "list.cue", listCUE)

	out, err := execute(t, NewEqualCommand(&RootOptions{Format: "text"}), path, "a.c:Node", "a.c:int")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "unequal")
}

func TestEqualCommand_JSON(t *testing.T) {
	path := writeFile(t, "list.cue", listCUE)

	out, err := execute(t, NewEqualCommand(&RootOptions{Format: "json"}), path, "a.c:ptr", "#0x6")
	require.NoError(t, err)

	resp := decode[EqualResult](t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Equal)
	assert.Equal(t, "equal", resp.Data.Verdict)
	assert.Equal(t, ir.NodeID(3), resp.Data.A.ID)
	assert.Equal(t, ir.NodeID(6), resp.Data.B.ID)
	assert.Equal(t, "__PTR_Node", resp.Data.A.AbstractName)
	require.NotNil(t, resp.Data.A.Code)
	require.NotNil(t, resp.Data.B.Code)
	assert.Equal(t, *resp.Data.A.Code, *resp.Data.B.Code, "equal types share a summary code")
}

func TestEqualCommand_UnknownType(t *testing.T) {
	path := writeFile(t, "list.cue", listCUE)

	out, err := execute(t, NewEqualCommand(&RootOptions{Format: "json"}), path, "Node", "a.c:Node")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp := decode[any](t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeUnknownNode, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "ambiguous")
}

func TestFormatCode(t *testing.T) {
	code := uint32(0x2a)
	assert.Equal(t, "0000002a", formatCode(&code))
	assert.Equal(t, "incomplete", formatCode(nil))
}
