package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/typegraph/internal/engine"
	"github.com/roach88/typegraph/internal/ir"
)

// ErrRunNotFound is returned when a run ID or the latest run does not exist.
var ErrRunNotFound = errors.New("run not found")

// Run is one row of analysis_runs.
type Run struct {
	ID             string
	Seq            int64
	GraphHash      string
	Source         string
	NodeCount      int
	EngineVersion  string
	IRVersion      string
	Comparisons    int
	CacheHits      int
	CacheMisses    int
	MaxAssumptions int
}

const runColumns = `id, seq, graph_hash, source, node_count, engine_version, ir_version,
	comparisons, cache_hits, cache_misses, max_assumptions`

// SummaryColumns is the column list ScanSummaries expects, in order.
// Compiled filter queries select exactly these columns.
const SummaryColumns = "node_id, kind, name, unit, abstract_name, code, complete, class_id, scc_index"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var r Run
	err := row.Scan(
		&r.ID,
		&r.Seq,
		&r.GraphHash,
		&r.Source,
		&r.NodeCount,
		&r.EngineVersion,
		&r.IRVersion,
		&r.Comparisons,
		&r.CacheHits,
		&r.CacheMisses,
		&r.MaxAssumptions,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	return r, nil
}

// ReadRun retrieves a run by ID.
// Returns ErrRunNotFound if it does not exist.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM analysis_runs WHERE id = ?`, id)
	return scanRun(row)
}

// LatestRun returns the run with the highest seq.
// Returns ErrRunNotFound on an empty store.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM analysis_runs ORDER BY seq DESC LIMIT 1`)
	return scanRun(row)
}

// ListRuns returns every run ordered by seq.
// Returns an empty slice (not nil) on an empty store.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	return s.queryRuns(ctx, `SELECT `+runColumns+` FROM analysis_runs ORDER BY seq ASC`)
}

// FindRunsByGraphHash returns the runs that analysed an identical input,
// ordered by seq.
func (s *Store) FindRunsByGraphHash(ctx context.Context, hash string) ([]Run, error) {
	return s.queryRuns(ctx, `
		SELECT `+runColumns+` FROM analysis_runs
		WHERE graph_hash = ?
		ORDER BY seq ASC
	`, hash)
}

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadSummaries returns the per-node records of a run in node ID order.
func (s *Store) ReadSummaries(ctx context.Context, runID string) ([]NodeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+SummaryColumns+` FROM type_summaries
		WHERE run_id = ?
		ORDER BY node_id ASC COLLATE BINARY
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	return ScanSummaries(rows)
}

// ReadClassMembers returns the records of every node in one class.
func (s *Store) ReadClassMembers(ctx context.Context, runID string, class engine.ClassID) ([]NodeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+SummaryColumns+` FROM type_summaries
		WHERE run_id = ? AND class_id = ?
		ORDER BY node_id ASC COLLATE BINARY
	`, runID, int64(class))
	if err != nil {
		return nil, fmt.Errorf("query class members: %w", err)
	}
	return ScanSummaries(rows)
}

// ScanSummaries reads rows selecting SummaryColumns and closes them.
// Returns an empty slice (not nil) when there are no rows.
func ScanSummaries(rows *sql.Rows) ([]NodeRecord, error) {
	defer rows.Close()

	records := []NodeRecord{}
	for rows.Next() {
		var (
			rec      NodeRecord
			nodeID   string
			kind     string
			code     sql.NullInt64
			classID  sql.NullInt64
			sccIndex sql.NullInt64
		)
		err := rows.Scan(&nodeID, &kind, &rec.Name, &rec.Unit, &rec.AbstractName,
			&code, &rec.Complete, &classID, &sccIndex)
		if err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}

		if rec.ID, err = ParseNodeID(nodeID); err != nil {
			return nil, err
		}
		k, ok := ir.ParseKind(kind)
		if !ok {
			return nil, fmt.Errorf("scan summary %s: unknown kind %q", nodeID, kind)
		}
		rec.Kind = k
		if code.Valid {
			rec.Code = uint32(code.Int64)
		}
		if classID.Valid {
			c := engine.ClassID(classID.Int64)
			rec.Class = &c
		}
		if sccIndex.Valid {
			i := int(sccIndex.Int64)
			rec.SCC = &i
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}
	return records, nil
}

// ReadSCCs returns the cyclic components of a run in index order.
func (s *Store) ReadSCCs(ctx context.Context, runID string) ([]SCCRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scc_index, digest, chain_only, payload FROM sccs
		WHERE run_id = ?
		ORDER BY scc_index ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query sccs: %w", err)
	}
	defer rows.Close()

	sccs := []SCCRecord{}
	for rows.Next() {
		var (
			rec     SCCRecord
			digest  int64
			payload []byte
		)
		if err := rows.Scan(&rec.Index, &digest, &rec.ChainOnly, &payload); err != nil {
			return nil, fmt.Errorf("scan scc: %w", err)
		}
		rec.Digest = uint32(digest)
		rec.Members, rec.Edges, err = unmarshalMembers(payload)
		if err != nil {
			return nil, fmt.Errorf("scc %d: %w", rec.Index, err)
		}
		sccs = append(sccs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sccs: %w", err)
	}
	return sccs, nil
}

// ReadClasses returns the equivalence classes of a run in class ID order.
func (s *Store) ReadClasses(ctx context.Context, runID string) ([]ClassRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT class_id, code, complete, payload FROM classes
		WHERE run_id = ?
		ORDER BY class_id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query classes: %w", err)
	}
	defer rows.Close()

	classes := []ClassRecord{}
	for rows.Next() {
		var (
			rec     ClassRecord
			id      int64
			code    sql.NullInt64
			payload []byte
		)
		if err := rows.Scan(&id, &code, &rec.Complete, &payload); err != nil {
			return nil, fmt.Errorf("scan class: %w", err)
		}
		rec.ID = engine.ClassID(id)
		if code.Valid {
			rec.Code = uint32(code.Int64)
		}
		rec.Members, _, err = unmarshalMembers(payload)
		if err != nil {
			return nil, fmt.Errorf("class %d: %w", rec.ID, err)
		}
		classes = append(classes, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate classes: %w", err)
	}
	return classes, nil
}

// FindSummaries runs a compiled filter query selecting SummaryColumns.
func (s *Store) FindSummaries(ctx context.Context, query string, args ...any) ([]NodeRecord, error) {
	rows, err := s.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find summaries: %w", err)
	}
	return ScanSummaries(rows)
}
