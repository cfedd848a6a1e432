package store

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/roach88/typegraph/internal/ir"
)

func TestFormatNodeID(t *testing.T) {
	tests := []struct {
		id   ir.NodeID
		want string
	}{
		{1, "0000000000000001"},
		{ir.NodeID(2)<<32 | 0x4b, "000000020000004b"},
		{ir.ImplicitBaseID, "8000000000000000"},
	}
	for _, tt := range tests {
		got := FormatNodeID(tt.id)
		assert.Equal(t, tt.want, got)

		back, err := ParseNodeID(got)
		require.NoError(t, err)
		assert.Equal(t, tt.id, back)
	}

	_, err := ParseNodeID("not-hex")
	assert.Error(t, err)
}

func TestFormatNodeIDOrdersNumerically(t *testing.T) {
	assert.Less(t, FormatNodeID(0xff), FormatNodeID(0x100))
	assert.Less(t, FormatNodeID(1<<32), FormatNodeID(ir.ImplicitBaseID))
}

func TestMembersPayload(t *testing.T) {
	edges := []ir.TypeEdge{
		{Source: 1, Target: 2, Label: ir.Reason{Kind: ir.ReasonMember, Source: 1, Index: 0, Name: "next"}},
		{Source: 2, Target: 1, Label: ir.Reason{Kind: ir.ReasonPointee, Source: 2}},
	}
	data, err := marshalMembers([]ir.NodeID{1, 2}, edges)
	require.NoError(t, err)

	members, got, err := unmarshalMembers(data)
	require.NoError(t, err)
	assert.Equal(t, []ir.NodeID{1, 2}, members)
	assert.Equal(t, edges, got)
}

func TestMembersPayloadWithoutEdges(t *testing.T) {
	data, err := marshalMembers([]ir.NodeID{7}, nil)
	require.NoError(t, err)

	members, edges, err := unmarshalMembers(data)
	require.NoError(t, err)
	assert.Equal(t, []ir.NodeID{7}, members)
	assert.Empty(t, edges)
}

func TestMembersPayloadRejectsOtherSchema(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, msgpack.NewEncoder(&buf).Encode(&membersPayload{Schema: 99, Members: []uint64{1}}))

	_, _, err := unmarshalMembers(buf.Bytes())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payload schema 99")

	_, _, err = unmarshalMembers([]byte{0xc1})
	assert.Error(t, err)
}

func TestNullableCode(t *testing.T) {
	assert.Nil(t, nullableCode(42, false))
	assert.Equal(t, int64(42), nullableCode(42, true))
}
