package compiler

import (
	"errors"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/typegraph/internal/ir"
)

const listSource = `
unit: "list.c": types: {
	"int": {kind: "base", name: "int", encoding: "signed", size: 4}
	Node: {kind: "struct", name: "Node", size: 16, members: [
		{name: "next", type: "ptr", offset: 0},
		{name: "val", type: "int", offset: 8},
	]}
	ptr: {kind: "pointer", target: "Node", size: 8}
}
`

func TestCompileGraphBasic(t *testing.T) {
	g, err := CompileSource(listSource, "list.cue")
	require.NoError(t, err)
	require.Equal(t, 3, g.Len())

	i := g.MustLookup(1)
	assert.Equal(t, ir.KindBase, i.Kind)
	assert.Equal(t, "int", i.Name)
	assert.Equal(t, "list.c", i.Unit)
	assert.Equal(t, &ir.Base{Encoding: ir.EncodingSigned, ByteSize: 4}, i.Body)

	node := g.MustLookup(2)
	assert.Equal(t, ir.KindStruct, node.Kind)
	comp, ok := node.Body.(*ir.Composite)
	require.True(t, ok)
	assert.Equal(t, int64(16), comp.ByteSize)
	assert.Equal(t, []ir.Member{
		{Name: "next", Type: 3, Offset: 0},
		{Name: "val", Type: 1, Offset: 8},
	}, comp.Members)

	ptr := g.MustLookup(3)
	assert.Equal(t, ir.KindPointer, ptr.Kind)
	assert.Empty(t, ptr.Name)
	assert.Equal(t, &ir.Chain{Target: 2, ByteSize: 8}, ptr.Body)
}

func TestCompileGraphFromValue(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(listSource)
	require.NoError(t, v.Err())

	g, err := CompileGraph(v)
	require.NoError(t, err)
	assert.Equal(t, []ir.NodeID{1, 2, 3}, g.IDs())
}

func TestCompileGraphCrossUnitReference(t *testing.T) {
	g, err := CompileSource(`
unit: "a.c": types: {
	"int": {kind: "base", name: "int", encoding: "signed", size: 4}
}
unit: "b.c": types: {
	counter: {kind: "typedef", name: "counter_t", target: "a.c:int"}
}
`, "units.cue")
	require.NoError(t, err)

	td := g.MustLookup(2)
	assert.Equal(t, "b.c", td.Unit)
	assert.Equal(t, &ir.Chain{Target: 1}, td.Body)
	assert.Equal(t, []string{"a.c", "b.c"}, g.Units())
}

func TestCompileGraphSameUnitLabelWins(t *testing.T) {
	g, err := CompileSource(`
unit: "a.c": types: {
	"int": {kind: "base", name: "int", encoding: "signed", size: 4}
}
unit: "b.c": types: {
	"int": {kind: "base", name: "int", encoding: "signed", size: 4}
	p: {kind: "pointer", target: "int", size: 8}
}
`, "units.cue")
	require.NoError(t, err)
	assert.Equal(t, &ir.Chain{Target: 2, ByteSize: 8}, g.MustLookup(3).Body)
}

func TestCompiledResolve(t *testing.T) {
	c, err := CompileLabeledSource(`
unit: "a.c": types: {
	"int": {kind: "base", name: "int", encoding: "signed", size: 4}
	Node: {kind: "struct", name: "Node", size: 4, members: [{name: "v", type: "int"}]}
}
unit: "b.c": types: {
	"int": {kind: "base", name: "int", encoding: "signed", size: 4}
}
`, "units.cue")
	require.NoError(t, err)
	assert.Equal(t, 3, c.Graph.Len())

	id, err := c.Resolve("a.c:int")
	require.NoError(t, err)
	assert.Equal(t, ir.NodeID(1), id)

	id, err = c.Resolve("b.c:int")
	require.NoError(t, err)
	assert.Equal(t, ir.NodeID(3), id)

	id, err = c.Resolve("Node")
	require.NoError(t, err)
	assert.Equal(t, ir.NodeID(2), id)

	_, err = c.Resolve("int")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous")

	_, err = c.Resolve("c.c:int")
	assert.Error(t, err)

	label, ok := c.Label(2)
	assert.True(t, ok)
	assert.Equal(t, "a.c:Node", label)
	_, ok = c.Label(99)
	assert.False(t, ok)

	assert.Equal(t, map[ir.NodeID]string{1: "a.c:int", 2: "a.c:Node", 3: "b.c:int"}, c.Labels())
}

func TestCompileGraphVoidReferences(t *testing.T) {
	g, err := CompileSource(`
unit: "a.c": types: {
	vp: {kind: "pointer", size: 8}
	vp2: {kind: "pointer", target: "void", size: 8}
	fn: {kind: "subroutine"}
}
`, "void.cue")
	require.NoError(t, err)
	assert.Equal(t, &ir.Chain{Target: ir.NoNode, ByteSize: 8}, g.MustLookup(1).Body)
	assert.Equal(t, &ir.Chain{Target: ir.NoNode, ByteSize: 8}, g.MustLookup(2).Body)
	assert.Equal(t, &ir.Subroutine{Return: ir.NoNode}, g.MustLookup(3).Body)
}

func TestCompileGraphAllKinds(t *testing.T) {
	g, err := CompileSource(`
unit: "k.c": types: {
	char: {kind: "base", name: "char", encoding: "signed_char", size: 1}
	cchar: {kind: "const", target: "char"}
	matrix: {kind: "array", elem: "char", dims: [{count: 3}, {lower: 0, upper: 3}]}
	flex: {kind: "array", elem: "char"}
	color: {kind: "enumeration", name: "Color", size: 4, enumerators: [
		"RED",
		{name: "GREEN", value: 5},
		"BLUE",
	]}
	idx: {kind: "subrange", base: "char", lower: 1, upper: 10}
	fn: {kind: "subroutine", return: "char", params: ["cchar", {name: "n", type: "char"}], variadic: true}
	s: {kind: "string", length: 12}
	dyn: {kind: "string"}
	nullptr: {kind: "unspecified", name: "decltype(nullptr)"}
	opaque: {kind: "struct", name: "FILE", declaration: true}
	rr: {kind: "rvalue_reference", target: "char", size: 8}
}
`, "kinds.cue")
	require.NoError(t, err)
	require.Equal(t, 13, g.Len(), "twelve types plus the implicit base of Color")
	assert.True(t, g.IsDeclaration(11))
	_, ok := g.Lookup(ir.ImplicitBaseID)
	require.True(t, ok)

	assert.Equal(t, &ir.Chain{Target: 1}, g.MustLookup(2).Body)

	matrix := g.MustLookup(3).Body.(*ir.Array)
	assert.Equal(t, ir.NodeID(1), matrix.Elem)
	require.Len(t, matrix.Dims, 2)
	count, ok := matrix.Count()
	require.True(t, ok)
	assert.Equal(t, int64(12), count)

	flex := g.MustLookup(4).Body.(*ir.Array)
	require.Len(t, flex.Dims, 1)
	_, ok = flex.Count()
	assert.False(t, ok, "array without dims is unbounded")

	color := g.MustLookup(5).Body.(*ir.Enumeration)
	assert.Equal(t, ir.NoNode, color.Base)
	assert.Equal(t, []int64{0, 5, 6}, color.Values())

	idx := g.MustLookup(6).Body.(*ir.Subrange)
	assert.Equal(t, ir.NodeID(1), idx.Base)
	assert.Equal(t, ir.Int64(1), idx.Lower)
	assert.Equal(t, ir.Int64(10), idx.Upper)
	assert.Nil(t, idx.Count)

	fn := g.MustLookup(7).Body.(*ir.Subroutine)
	assert.Equal(t, ir.NodeID(1), fn.Return)
	assert.Equal(t, []ir.Param{{Type: 2}, {Name: "n", Type: 1}}, fn.Params)
	assert.True(t, fn.Variadic)

	assert.Equal(t, &ir.String{Length: ir.Int64(12)}, g.MustLookup(8).Body)
	assert.Equal(t, &ir.String{}, g.MustLookup(9).Body)
	assert.Equal(t, &ir.Unspecified{}, g.MustLookup(10).Body)
	assert.True(t, g.IsDeclaration(11))
	assert.Equal(t, ir.KindRvalueReference, g.MustLookup(12).Kind)
}

func TestCompileGraphStaticMembers(t *testing.T) {
	g, err := CompileSource(`
unit: "a.cc": types: {
	"int": {kind: "base", name: "int", encoding: "signed", size: 4}
	S: {kind: "class", name: "S", size: 4, members: [
		{name: "count", type: "int", static: true},
		{name: "x", type: "int", offset: 0},
	]}
}
`, "static.cue")
	require.NoError(t, err)

	comp := g.MustLookup(2).Body.(*ir.Composite)
	require.Len(t, comp.Members, 2)
	assert.True(t, comp.Members[0].Declaration)
	assert.Len(t, comp.DataMembers(), 1)
}

func TestCompileGraphErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		field   string
		message string
	}{
		{
			name:    "no units",
			src:     `foo: 1`,
			field:   "unit",
			message: "at least one unit is required",
		},
		{
			name:    "no types",
			src:     `unit: "a.c": {}`,
			field:   `unit."a.c".types`,
			message: "types are required",
		},
		{
			name:    "empty types",
			src:     `unit: "a.c": types: {}`,
			field:   "unit",
			message: "no types declared",
		},
		{
			name:    "missing kind",
			src:     `unit: "a.c": types: x: {name: "x"}`,
			field:   `unit."a.c".types.x.kind`,
			message: "kind is required",
		},
		{
			name:    "unknown kind",
			src:     `unit: "a.c": types: x: {kind: "tuple"}`,
			field:   `unit."a.c".types.x.kind`,
			message: `unknown type kind "tuple"`,
		},
		{
			name:    "unknown encoding",
			src:     `unit: "a.c": types: x: {kind: "base", encoding: "decimal"}`,
			field:   `unit."a.c".types.x.encoding`,
			message: `unknown encoding "decimal"`,
		},
		{
			name:    "undefined reference",
			src:     `unit: "a.c": types: p: {kind: "pointer", target: "missing"}`,
			field:   `unit."a.c".types.p`,
			message: `undefined type reference "missing"`,
		},
		{
			name:    "undefined cross-unit reference",
			src:     `unit: "a.c": types: p: {kind: "pointer", target: "b.c:int"}`,
			field:   `unit."a.c".types.p`,
			message: `undefined type reference "b.c:int"`,
		},
		{
			name:    "member without type",
			src:     `unit: "a.c": types: s: {kind: "struct", members: [{name: "x"}]}`,
			field:   `unit."a.c".types.s.members[0].type`,
			message: "member type is required",
		},
		{
			name:    "float size",
			src:     `unit: "a.c": types: x: {kind: "base", encoding: "float", size: 4.5}`,
			field:   "size",
			message: "float values are not allowed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileSource(tt.src, "bad.cue")
			require.Error(t, err)

			var compileErr *CompileError
			require.True(t, errors.As(err, &compileErr), "expected CompileError, got %T: %v", err, err)
			assert.Equal(t, tt.field, compileErr.Field)
			assert.Contains(t, compileErr.Message, tt.message)
		})
	}
}

func TestCompileGraphCUEError(t *testing.T) {
	_, err := CompileSource(`unit: "a.c": types: x: {kind: "base", kind: "struct"}`, "conflict.cue")
	require.Error(t, err)

	var compileErr *CompileError
	require.True(t, errors.As(err, &compileErr))
	assert.Equal(t, "cue", compileErr.Field)
	assert.True(t, compileErr.Pos.IsValid())
	assert.Contains(t, err.Error(), "conflict.cue")
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{Field: "unit", Message: "no types declared"}
	assert.Equal(t, "unit: no types declared", err.Error())
}

func TestCompileGraphSubpath(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
fixtures: mutual: unit: "m.c": types: {
	A: {kind: "struct", name: "A", size: 8, members: [{name: "b", type: "pb"}]}
	B: {kind: "struct", name: "B", size: 8, members: [{name: "a", type: "pa"}]}
	pa: {kind: "pointer", target: "A", size: 8}
	pb: {kind: "pointer", target: "B", size: 8}
}
`)
	require.NoError(t, v.Err())

	g, err := CompileGraph(v.LookupPath(cue.ParsePath("fixtures.mutual")))
	require.NoError(t, err)
	assert.Equal(t, []ir.NodeID{1, 2, 3, 4}, g.IDs())
	assert.Equal(t, []ir.TypeEdge{{Source: 1, Target: 4, Label: ir.Reason{Kind: ir.ReasonMember, Source: 1, Index: 0, Name: "b"}}}, g.OutEdges(1))
}
