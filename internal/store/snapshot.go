package store

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/roach88/typegraph/internal/engine"
	"github.com/roach88/typegraph/internal/ir"
)

// Snapshot is everything one analysis run persists.
type Snapshot struct {
	GraphHash string
	Source    string
	NodeCount int
	Nodes     []NodeRecord
	SCCs      []SCCRecord
	Classes   []ClassRecord
	Stats     engine.Stats
}

// NodeRecord is one row of type_summaries.
type NodeRecord struct {
	ID           ir.NodeID
	Kind         ir.Kind
	Name         string
	Unit         string
	AbstractName string
	Code         uint32
	Complete     bool
	Class        *engine.ClassID
	SCC          *int
}

// SCCRecord is one stored cyclic component.
type SCCRecord struct {
	Index     int
	Digest    uint32
	ChainOnly bool
	Members   []ir.NodeID
	Edges     []ir.TypeEdge
}

// ClassRecord is one stored equivalence class.
type ClassRecord struct {
	ID       engine.ClassID
	Members  []ir.NodeID
	Code     uint32
	Complete bool
}

// Representative returns the lowest member ID.
func (c ClassRecord) Representative() ir.NodeID {
	if len(c.Members) == 0 {
		return ir.NoNode
	}
	return c.Members[0]
}

// Capture analyses every node of g with e and returns the result as a
// Snapshot. All nodes are classified first so every record carries a class.
//
// SCC indexes follow the order of each component's lowest member.
func Capture(g *ir.Graph, e *engine.Engine, source string) (Snapshot, error) {
	hash, err := ir.GraphHash(g)
	if err != nil {
		return Snapshot{}, fmt.Errorf("capture: %w", err)
	}

	ids := g.IDs()
	e.Classify(ids)

	snap := Snapshot{
		GraphHash: hash,
		Source:    source,
		NodeCount: len(ids),
		Nodes:     make([]NodeRecord, 0, len(ids)),
	}

	sccIndex := make(map[*engine.TypeSCC]int)
	for _, id := range ids {
		scc := e.SCCOf(id)
		if scc == nil {
			continue
		}
		if _, ok := sccIndex[scc]; ok {
			continue
		}
		sccIndex[scc] = len(snap.SCCs)
		snap.SCCs = append(snap.SCCs, SCCRecord{
			Index:     len(snap.SCCs),
			Digest:    scc.Digest,
			ChainOnly: scc.ChainOnly,
			Members:   slices.Clone(scc.Members),
			Edges:     slices.Clone(scc.Edges),
		})
	}

	for _, id := range ids {
		n := g.MustLookup(id)
		code, complete := e.SummaryCode(id)
		if !complete {
			code = 0
		}
		rec := NodeRecord{
			ID:           id,
			Kind:         n.Kind,
			Name:         n.Name,
			Unit:         n.Unit,
			AbstractName: e.AbstractName(id),
			Code:         code,
			Complete:     complete,
		}
		if c, ok := e.ClassOf(id); ok {
			rec.Class = &c
		}
		if scc := e.SCCOf(id); scc != nil {
			idx := sccIndex[scc]
			rec.SCC = &idx
		}
		snap.Nodes = append(snap.Nodes, rec)
	}

	for _, c := range e.Classes() {
		if !c.Complete {
			c.Code = 0
		}
		snap.Classes = append(snap.Classes, ClassRecord{
			ID:       c.ID,
			Members:  c.Members,
			Code:     c.Code,
			Complete: c.Complete,
		})
	}
	slices.SortFunc(snap.Classes, func(a, b ClassRecord) int {
		return cmp.Compare(a.ID, b.ID)
	})

	snap.Stats = e.Stats()
	return snap, nil
}
