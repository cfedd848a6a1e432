package engine

import (
	"log/slog"

	"github.com/roach88/typegraph/internal/ir"
)

// Source is the debug-info store the engine analyses. Implementations must
// not change while an Engine is using them.
//
// *ir.Graph implements Source.
type Source interface {
	// Lookup returns the node for id, or false for void and unknown IDs.
	Lookup(id ir.NodeID) (*ir.Node, bool)

	// OutEdges returns the outgoing edges of id in kind-specific order. A
	// declaration with a visible definition has one edge, to that
	// definition.
	OutEdges(id ir.NodeID) []ir.TypeEdge

	// Referrers returns every edge whose target is id.
	Referrers(id ir.NodeID) []ir.TypeEdge

	// ConcreteForm strips typedef and qualifier wrappers.
	ConcreteForm(id ir.NodeID) ir.NodeID

	// FindDefinition resolves an opaque declaration to a visible definition.
	FindDefinition(id ir.NodeID) (ir.NodeID, bool)
}

var _ Source = (*ir.Graph)(nil)

// Engine is one analysis session over a Source.
//
// INVARIANTS:
//   - A node's entry in sccs is written at most once
//   - summaries and names are memoized and never recomputed
//   - Every node appears in at most one equivalence class
type Engine struct {
	src    Source
	logger *slog.Logger

	// sccs maps a node to its component. A present nil value records
	// "no SCC" (the node is not on any cycle).
	sccs map[ir.NodeID]*TypeSCC

	summaries map[ir.NodeID]summary
	summing   map[ir.NodeID]bool // summary in progress

	names  map[ir.NodeID]string
	naming map[ir.NodeID]bool // abstract name in progress

	part  *partition
	stats Stats
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for diagnostics.
//
// Default: slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Engine analysing src.
func New(src Source, opts ...Option) *Engine {
	e := &Engine{
		src:       src,
		logger:    slog.Default(),
		sccs:      make(map[ir.NodeID]*TypeSCC),
		summaries: make(map[ir.NodeID]summary),
		summing:   make(map[ir.NodeID]bool),
		names:     make(map[ir.NodeID]string),
		naming:    make(map[ir.NodeID]bool),
		part:      newPartition(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Source returns the store the engine analyses.
func (e *Engine) Source() Source {
	return e.src
}

// Stats counts work done by an Engine.
type Stats struct {
	// Comparisons is the number of equality steps, recursive ones included.
	Comparisons int

	// CacheHits and CacheMisses count class-cache lookups.
	CacheHits   int
	CacheMisses int

	// MaxAssumptions is the largest assumption set seen during recursion.
	MaxAssumptions int

	// Classes is the current number of equivalence classes.
	Classes int

	// SCCs is the number of cyclic components built.
	SCCs int

	// Summaries is the number of memoized summary codes.
	Summaries int
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	s := e.stats
	s.Classes = len(e.part.classes)
	s.Summaries = len(e.summaries)
	return s
}
