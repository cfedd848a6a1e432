package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/typegraph/internal/ir"
	"github.com/roach88/typegraph/internal/queryir"
	"github.com/roach88/typegraph/internal/store"
)

// SQLCompiler compiles QueryIR to parameterized SQL for SQLite.
//
// CRITICAL: ALL queries include ORDER BY for deterministic results.
// CRITICAL: All values are parameterized (never interpolated).
type SQLCompiler struct {
	// RunID scopes every query to one analysis run.
	RunID string
}

// NewSQLCompiler creates a compiler for queries against run runID.
func NewSQLCompiler(runID string) *SQLCompiler {
	return &SQLCompiler{RunID: runID}
}

// Compile converts a QueryIR query to parameterized SQL selecting
// store.SummaryColumns. Returns (sql, params, error) tuple.
//
// The query is validated first; an invalid query is never compiled.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if q == nil {
		return "", nil, fmt.Errorf("cannot compile nil query")
	}
	if res := queryir.Validate(q); !res.Valid {
		return "", nil, fmt.Errorf("invalid query: %s", strings.Join(res.Errors, "; "))
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	where := "run_id = ?"
	params := []any{c.RunID}

	if q.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		where += " AND " + filterSQL
		params = append(params, filterParams...)
	}

	// MANDATORY: node_id is unique within a run, so the order is total.
	sql := fmt.Sprintf("SELECT %s FROM type_summaries WHERE %s ORDER BY node_id ASC COLLATE BINARY",
		store.SummaryColumns, where)

	if q.Limit > 0 {
		sql += " LIMIT ?"
		params = append(params, q.Limit)
	}
	return sql, params, nil
}

// compilePredicate compiles a queryir.Predicate to a WHERE clause fragment.
// CRITICAL: Values NEVER interpolated - always use ? placeholders.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	if p == nil {
		return "1 = 1", nil, nil
	}

	switch pred := p.(type) {
	case queryir.Equals:
		return c.compileEquals(pred)
	case *queryir.Equals:
		return c.compileEquals(*pred)
	case queryir.IsNull:
		return fmt.Sprintf("%s IS NULL", pred.Field), nil, nil
	case *queryir.IsNull:
		return fmt.Sprintf("%s IS NULL", pred.Field), nil, nil
	case queryir.NodeIs:
		return "node_id = ?", []any{store.FormatNodeID(pred.Node)}, nil
	case *queryir.NodeIs:
		return "node_id = ?", []any{store.FormatNodeID(pred.Node)}, nil
	case queryir.SameClass:
		return c.compileSameClass(pred.Node)
	case *queryir.SameClass:
		return c.compileSameClass(pred.Node)
	case queryir.And:
		return c.compileAnd(pred)
	case *queryir.And:
		return c.compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileEquals compiles an Equals predicate to "field = ?". Field names
// come from the closed queryir.Field set checked by Validate.
func (c *SQLCompiler) compileEquals(eq queryir.Equals) (string, []any, error) {
	param, err := irValueToParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("convert value: %w", err)
	}
	return fmt.Sprintf("%s = ?", eq.Field), []any{param}, nil
}

// compileSameClass looks the class up in the same run. A NULL class_id
// compares unequal to everything, so unclassified nodes match nothing.
func (c *SQLCompiler) compileSameClass(node ir.NodeID) (string, []any, error) {
	sql := "class_id = (SELECT class_id FROM type_summaries WHERE run_id = ? AND node_id = ?)"
	return sql, []any{c.RunID, store.FormatNodeID(node)}, nil
}

func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil // vacuous truth
	}

	var sqlParts []string
	var allParams []any
	for _, pred := range and.Predicates {
		sql, params, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		sqlParts = append(sqlParts, sql)
		allParams = append(allParams, params...)
	}

	sql := "(" + strings.Join(sqlParts, " AND ") + ")"
	return sql, allParams, nil
}

// irValueToParam converts an ir.IRValue to a Go native type for SQL parameter.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRBool:
		return bool(val), nil
	case ir.IRArray:
		return nil, fmt.Errorf("IRArray cannot be used as SQL parameter directly")
	case ir.IRObject:
		return nil, fmt.Errorf("IRObject cannot be used as SQL parameter directly")
	default:
		return nil, fmt.Errorf("unsupported IRValue type for SQL parameter: %T", v)
	}
}
