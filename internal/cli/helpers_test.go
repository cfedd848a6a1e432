package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// listCUE declares the same linked list in two units. Node IDs: a.c int=1,
// Node=2, ptr=3; b.c int=4, Node=5, ptr=6.
const listCUE = `
package test

unit: "a.c": types: {
	"int": {kind: "base", name: "int", encoding: "signed", size: 4}
	Node: {kind: "struct", name: "Node", size: 16, members: [
		{name: "next", type: "ptr", offset: 0},
		{name: "val", type: "int", offset: 8},
	]}
	ptr: {kind: "pointer", target: "Node", size: 8}
}
unit: "b.c": types: {
	"int": {kind: "base", name: "int", encoding: "signed", size: 4}
	Node: {kind: "struct", name: "Node", size: 16, members: [
		{name: "next", type: "ptr", offset: 0},
		{name: "val", type: "int", offset: 8},
	]}
	ptr: {kind: "pointer", target: "Node", size: 8}
}
`

// writeFile writes content to name in a fresh temp directory.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs cmd with args and returns what it wrote to stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

type response[T any] struct {
	Status string    `json:"status"`
	Data   T         `json:"data"`
	Error  *CLIError `json:"error"`
}

// decode parses a JSON CLIResponse carrying a T.
func decode[T any](t *testing.T, out string) response[T] {
	t.Helper()
	var resp response[T]
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}
