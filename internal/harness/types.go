package harness

import (
	"github.com/roach88/typegraph/internal/ir"
	"github.com/roach88/typegraph/internal/store"
)

// Result is the outcome of a test scenario execution.
type Result struct {
	// Scenario is the name of the scenario that produced this result.
	Scenario string

	// Path is the scenario file, when the scenario was loaded from one.
	Path string

	// Pass indicates overall test success.
	// True if every assertion holds.
	Pass bool

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string

	// Outcomes holds one entry per assertion, in scenario order.
	Outcomes []Outcome

	// Snapshot is the analysis captured before any assertion ran.
	Snapshot store.Snapshot

	// Run is the stored copy of Snapshot.
	Run store.Run

	labels map[ir.NodeID]string
}

// Outcome is the evaluation of one assertion. Err is nil when it holds.
type Outcome struct {
	Index     int
	Assertion Assertion
	Err       error
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult(scenario string) *Result {
	return &Result{
		Scenario: scenario,
		Pass:     true,
		Errors:   []string{},
		labels:   map[ir.NodeID]string{},
	}
}

// AddOutcome records an assertion outcome, failing the result on error.
func (r *Result) AddOutcome(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	if o.Err != nil {
		r.Errors = append(r.Errors, o.Err.Error())
		r.Pass = false
	}
}

// Label names a node by the "<unit>:<label>" it was declared under. Nodes
// the scenario never declared, such as the implicit base type, are named
// by their hex ID.
func (r *Result) Label(id ir.NodeID) string {
	if l, ok := r.labels[id]; ok {
		return l
	}
	return "#" + store.FormatNodeID(id)
}
