package store

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/roach88/typegraph/internal/ir"
)

// Current payload version - increment when the payload format changes.
const payloadSchemaVersion uint16 = 1

// membersPayload is the BLOB stored with classes and SCCs.
type membersPayload struct {
	Schema  uint16
	Members []uint64
	Edges   []edgePayload
}

type edgePayload struct {
	Source uint64
	Target uint64
	Kind   uint8
	Index  int
	Name   string
}

// FormatNodeID renders id as stored: 16 lowercase hex digits.
func FormatNodeID(id ir.NodeID) string {
	return fmt.Sprintf("%016x", uint64(id))
}

// ParseNodeID is the inverse of FormatNodeID.
func ParseNodeID(s string) (ir.NodeID, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return ir.NoNode, fmt.Errorf("parse node id %q: %w", s, err)
	}
	return ir.NodeID(v), nil
}

// marshalMembers encodes a member list and optional edges as msgpack.
func marshalMembers(members []ir.NodeID, edges []ir.TypeEdge) ([]byte, error) {
	p := membersPayload{Schema: payloadSchemaVersion, Members: make([]uint64, len(members))}
	for i, m := range members {
		p.Members[i] = uint64(m)
	}
	for _, e := range edges {
		p.Edges = append(p.Edges, edgePayload{
			Source: uint64(e.Source),
			Target: uint64(e.Target),
			Kind:   uint8(e.Label.Kind),
			Index:  e.Label.Index,
			Name:   e.Label.Name,
		})
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.Encode(&p); err != nil {
		return nil, fmt.Errorf("marshal members: %w", err)
	}
	return buf.Bytes(), nil
}

// unmarshalMembers decodes a payload written by marshalMembers.
func unmarshalMembers(data []byte) ([]ir.NodeID, []ir.TypeEdge, error) {
	var p membersPayload
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&p); err != nil {
		return nil, nil, fmt.Errorf("unmarshal members: %w", err)
	}
	if p.Schema != payloadSchemaVersion {
		return nil, nil, fmt.Errorf("unmarshal members: payload schema %d, expected %d", p.Schema, payloadSchemaVersion)
	}

	members := make([]ir.NodeID, len(p.Members))
	for i, m := range p.Members {
		members[i] = ir.NodeID(m)
	}
	var edges []ir.TypeEdge
	for _, e := range p.Edges {
		edges = append(edges, ir.TypeEdge{
			Source: ir.NodeID(e.Source),
			Target: ir.NodeID(e.Target),
			Label: ir.Reason{
				Kind:   ir.ReasonKind(e.Kind),
				Source: ir.NodeID(e.Source),
				Index:  e.Index,
				Name:   e.Name,
			},
		})
	}
	return members, edges, nil
}

// nullableCode maps an incomplete summary to SQL NULL.
func nullableCode(code uint32, complete bool) any {
	if !complete {
		return nil
	}
	return int64(code)
}
