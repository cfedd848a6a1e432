package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/typegraph/internal/ir"
)

// WriteRun stores a snapshot as a new analysis run and returns it.
//
// The run row, its summaries, SCCs and classes are written in a single
// transaction: a reader never observes a partially written run. The run's
// seq is one past the highest existing seq.
func (s *Store) WriteRun(ctx context.Context, snap Snapshot) (Run, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var maxSeq sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(seq) FROM analysis_runs`).Scan(&maxSeq); err != nil {
		return Run{}, fmt.Errorf("write run: next seq: %w", err)
	}

	run := Run{
		ID:             uuid.Must(uuid.NewV7()).String(),
		Seq:            maxSeq.Int64 + 1,
		GraphHash:      snap.GraphHash,
		Source:         snap.Source,
		NodeCount:      snap.NodeCount,
		EngineVersion:  ir.EngineVersion,
		IRVersion:      ir.IRVersion,
		Comparisons:    snap.Stats.Comparisons,
		CacheHits:      snap.Stats.CacheHits,
		CacheMisses:    snap.Stats.CacheMisses,
		MaxAssumptions: snap.Stats.MaxAssumptions,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO analysis_runs
		(id, seq, graph_hash, source, node_count, engine_version, ir_version,
		 comparisons, cache_hits, cache_misses, max_assumptions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Seq,
		run.GraphHash,
		run.Source,
		run.NodeCount,
		run.EngineVersion,
		run.IRVersion,
		run.Comparisons,
		run.CacheHits,
		run.CacheMisses,
		run.MaxAssumptions,
	)
	if err != nil {
		return Run{}, fmt.Errorf("write run: insert run: %w", err)
	}

	if err := writeSummaries(ctx, tx, run.ID, snap.Nodes); err != nil {
		return Run{}, err
	}
	if err := writeSCCs(ctx, tx, run.ID, snap.SCCs); err != nil {
		return Run{}, err
	}
	if err := writeClasses(ctx, tx, run.ID, snap.Classes); err != nil {
		return Run{}, err
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("write run: commit: %w", err)
	}
	return run, nil
}

func writeSummaries(ctx context.Context, tx *sql.Tx, runID string, nodes []NodeRecord) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO type_summaries
		(run_id, node_id, kind, name, unit, abstract_name, code, complete, class_id, scc_index)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write summaries: prepare: %w", err)
	}
	defer stmt.Close()

	for _, n := range nodes {
		var class, scc any
		if n.Class != nil {
			class = int64(*n.Class)
		}
		if n.SCC != nil {
			scc = *n.SCC
		}
		_, err := stmt.ExecContext(ctx,
			runID,
			FormatNodeID(n.ID),
			n.Kind.String(),
			n.Name,
			n.Unit,
			n.AbstractName,
			nullableCode(n.Code, n.Complete),
			n.Complete,
			class,
			scc,
		)
		if err != nil {
			return fmt.Errorf("write summary %s: %w", n.ID, err)
		}
	}
	return nil
}

func writeSCCs(ctx context.Context, tx *sql.Tx, runID string, sccs []SCCRecord) error {
	for _, c := range sccs {
		payload, err := marshalMembers(c.Members, c.Edges)
		if err != nil {
			return fmt.Errorf("write scc %d: %w", c.Index, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sccs (run_id, scc_index, digest, chain_only, size, payload)
			VALUES (?, ?, ?, ?, ?, ?)
		`, runID, c.Index, int64(c.Digest), c.ChainOnly, len(c.Members), payload)
		if err != nil {
			return fmt.Errorf("write scc %d: %w", c.Index, err)
		}
	}
	return nil
}

func writeClasses(ctx context.Context, tx *sql.Tx, runID string, classes []ClassRecord) error {
	for _, c := range classes {
		payload, err := marshalMembers(c.Members, nil)
		if err != nil {
			return fmt.Errorf("write class %d: %w", c.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO classes (run_id, class_id, representative, code, complete, size, payload)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			runID,
			int64(c.ID),
			FormatNodeID(c.Representative()),
			nullableCode(c.Code, c.Complete),
			c.Complete,
			len(c.Members),
			payload,
		)
		if err != nil {
			return fmt.Errorf("write class %d: %w", c.ID, err)
		}
	}
	return nil
}

// DeleteRun removes a run and, by cascade, everything recorded for it.
// Deleting an unknown run is not an error.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM analysis_runs WHERE id = ?`, runID); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}
