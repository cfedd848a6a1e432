package harness

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/typegraph/internal/compiler"
	"github.com/roach88/typegraph/internal/engine"
	"github.com/roach88/typegraph/internal/ir"
	"github.com/roach88/typegraph/internal/queryir"
	"github.com/roach88/typegraph/internal/querysql"
	"github.com/roach88/typegraph/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s: expected %s, actual %s", e.Type, e.Expected, e.Actual)
}

// AssertionContext provides what assertions are evaluated against.
type AssertionContext struct {
	Ctx      context.Context
	Compiled *compiler.Compiled
	Engine   *engine.Engine
	Snapshot store.Snapshot

	// Store and RunID back stored assertions. Both may be zero when no
	// stored assertion is evaluated.
	Store *store.Store
	RunID string
}

// EvaluateAssertions evaluates all assertions in order and returns one
// outcome per assertion.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []Outcome {
	outcomes := make([]Outcome, 0, len(assertions))
	for i, assertion := range assertions {
		err := evaluate(actx, assertion)
		if err != nil {
			err = fmt.Errorf("assertions[%d]: %w", i, err)
		}
		outcomes = append(outcomes, Outcome{Index: i, Assertion: assertion, Err: err})
	}
	return outcomes
}

func evaluate(actx *AssertionContext, a Assertion) error {
	switch a.Type {
	case AssertEqual, AssertUnequal:
		return assertEquality(actx, a)
	case AssertComplete, AssertIncomplete:
		return assertCompleteness(actx, a)
	case AssertSameCode:
		return assertSameCode(actx, a)
	case AssertAbstractName:
		return assertAbstractName(actx, a)
	case AssertSCCSize:
		return assertSCCSize(actx, a)
	case AssertSameClass:
		return assertSameClass(actx, a)
	case AssertClassCount:
		return assertClassCount(actx, a)
	case AssertStored:
		return assertStored(actx, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func resolvePair(actx *AssertionContext, a Assertion) (ir.NodeID, ir.NodeID, error) {
	x, err := actx.Compiled.Resolve(a.A)
	if err != nil {
		return ir.NoNode, ir.NoNode, err
	}
	y, err := actx.Compiled.Resolve(a.B)
	if err != nil {
		return ir.NoNode, ir.NoNode, err
	}
	return x, y, nil
}

// assertEquality compares two nodes from the top level. A top-level
// verdict is never by assumption, so equal requires a plain Equal.
func assertEquality(actx *AssertionContext, a Assertion) error {
	x, y, err := resolvePair(actx, a)
	if err != nil {
		return err
	}
	got := actx.Engine.EqualDetailed(x, y)
	want := engine.Equal
	if a.Type == AssertUnequal {
		want = engine.Unequal
	}
	if got != want {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s and %s compare %s", a.A, a.B, want),
			Actual:   got.String(),
		}
	}
	return nil
}

func assertCompleteness(actx *AssertionContext, a Assertion) error {
	id, err := actx.Compiled.Resolve(a.Node)
	if err != nil {
		return err
	}
	_, complete := actx.Engine.SummaryCode(id)
	want := a.Type == AssertComplete
	if complete != want {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s to be %s", a.Node, a.Type),
			Actual:   fmt.Sprintf("complete=%t", complete),
		}
	}
	return nil
}

func assertSameCode(actx *AssertionContext, a Assertion) error {
	x, y, err := resolvePair(actx, a)
	if err != nil {
		return err
	}
	cx, okX := actx.Engine.SummaryCode(x)
	cy, okY := actx.Engine.SummaryCode(y)
	if !okX || !okY || cx != cy {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s and %s to share a complete summary code", a.A, a.B),
			Actual:   fmt.Sprintf("%s=%s %s=%s", a.A, formatCode(cx, okX), a.B, formatCode(cy, okY)),
		}
	}
	return nil
}

func formatCode(code uint32, complete bool) string {
	if !complete {
		return "incomplete"
	}
	return fmt.Sprintf("%08x", code)
}

func assertAbstractName(actx *AssertionContext, a Assertion) error {
	id, err := actx.Compiled.Resolve(a.Node)
	if err != nil {
		return err
	}
	if got := actx.Engine.AbstractName(id); got != a.Name {
		return &AssertionError{
			Type:     a.Type,
			Expected: strconv.Quote(a.Name),
			Actual:   strconv.Quote(got),
		}
	}
	return nil
}

func assertSCCSize(actx *AssertionContext, a Assertion) error {
	id, err := actx.Compiled.Resolve(a.Node)
	if err != nil {
		return err
	}
	size := 0
	if scc := actx.Engine.SCCOf(id); scc != nil {
		size = len(scc.Members)
	}
	if size != a.Size {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s in a component of %d nodes", a.Node, a.Size),
			Actual:   fmt.Sprintf("%d nodes", size),
		}
	}
	return nil
}

func assertSameClass(actx *AssertionContext, a Assertion) error {
	x, y, err := resolvePair(actx, a)
	if err != nil {
		return err
	}
	cx, okX := actx.Engine.ClassOf(x)
	cy, okY := actx.Engine.ClassOf(y)
	if !okX || !okY || cx != cy {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s and %s in one class", a.A, a.B),
			Actual:   fmt.Sprintf("%s in %s, %s in %s", a.A, formatClass(cx, okX), a.B, formatClass(cy, okY)),
		}
	}
	return nil
}

func formatClass(c engine.ClassID, ok bool) string {
	if !ok {
		return "no class"
	}
	return fmt.Sprintf("class %d", c)
}

func assertClassCount(actx *AssertionContext, a Assertion) error {
	if got := len(actx.Snapshot.Classes); got != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d classes", a.Count),
			Actual:   fmt.Sprintf("%d classes", got),
		}
	}
	return nil
}

// assertStored runs a filter query against the stored run and counts the
// matching summaries.
func assertStored(actx *AssertionContext, a Assertion) error {
	if actx.Store == nil || actx.RunID == "" {
		return fmt.Errorf("stored requires database context")
	}
	terms, err := resolveTerms(actx.Compiled, a.Where)
	if err != nil {
		return err
	}
	filter, err := queryir.ParseFilter(terms)
	if err != nil {
		return err
	}
	sql, params, err := querysql.NewSQLCompiler(actx.RunID).Compile(queryir.Select{Filter: filter})
	if err != nil {
		return err
	}
	rows, err := actx.Store.FindSummaries(actx.Ctx, sql, params...)
	if err != nil {
		return err
	}
	if len(rows) != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d summaries where %s", a.Count, formatWhere(a.Where)),
			Actual:   fmt.Sprintf("%d summaries", len(rows)),
		}
	}
	return nil
}

// resolveTerms rewrites node and same_class terms that name a declared
// label into numeric node IDs.
func resolveTerms(c *compiler.Compiled, terms []string) ([]string, error) {
	out := make([]string, len(terms))
	for i, term := range terms {
		out[i] = term
		name, value, ok := strings.Cut(term, "=")
		if !ok || (name != "node" && name != "same_class") {
			continue
		}
		if _, err := strconv.ParseUint(value, 0, 64); err == nil {
			continue
		}
		id, err := c.Resolve(value)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", term, err)
		}
		out[i] = fmt.Sprintf("%s=%d", name, id)
	}
	return out, nil
}

// formatWhere creates a human-readable description of filter terms.
func formatWhere(where []string) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	return strings.Join(where, " AND ")
}
