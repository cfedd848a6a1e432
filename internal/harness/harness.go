package harness

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/roach88/typegraph/internal/compiler"
	"github.com/roach88/typegraph/internal/engine"
	"github.com/roach88/typegraph/internal/store"
)

// Harness is the test execution engine.
// It runs one scenario against a fresh engine and in-memory store.
type Harness struct {
	logger *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger handed to the engine. The default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// New creates a Harness.
func New(opts ...Option) *Harness {
	h := &Harness{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a test scenario with a default Harness.
func Run(scenario *Scenario) (*Result, error) {
	return New().Run(context.Background(), scenario)
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Compile the CUE graph and reject it if validation finds problems
// 2. Classify every node and capture the analysis as a snapshot
// 3. Persist the snapshot as a run
// 4. Evaluate assertions against the engine, snapshot and stored run
//
// An error is returned when the scenario cannot be executed. Failed
// assertions are reported in the Result instead.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	compiled, err := compileScenario(scenario)
	if err != nil {
		return nil, err
	}
	if errs := compiler.Validate(compiled.Graph); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("invalid graph: %s", strings.Join(msgs, "; "))
	}

	eng := engine.New(compiled.Graph, engine.WithLogger(h.logger))
	snap, err := store.Capture(compiled.Graph, eng, "scenario:"+scenario.Name)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	run, err := st.WriteRun(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("failed to store analysis: %w", err)
	}
	h.logger.Debug("scenario analysed",
		"scenario", scenario.Name,
		"nodes", snap.NodeCount,
		"classes", len(snap.Classes),
		"sccs", len(snap.SCCs),
		"run", run.ID)

	result := NewResult(scenario.Name)
	result.Snapshot = snap
	result.Run = run
	result.labels = compiled.Labels()

	actx := &AssertionContext{
		Ctx:      ctx,
		Compiled: compiled,
		Engine:   eng,
		Snapshot: snap,
		Store:    st,
		RunID:    run.ID,
	}
	for _, o := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddOutcome(o)
	}
	return result, nil
}

func compileScenario(scenario *Scenario) (*compiler.Compiled, error) {
	if scenario.Source != "" {
		c, err := compiler.CompileLabeledSource(scenario.Source, scenario.Name+".cue")
		if err != nil {
			return nil, fmt.Errorf("failed to compile scenario source: %w", err)
		}
		return c, nil
	}
	data, err := os.ReadFile(scenario.Graph)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}
	c, err := compiler.CompileLabeledSource(string(data), scenario.Graph)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", scenario.Graph, err)
	}
	return c, nil
}
