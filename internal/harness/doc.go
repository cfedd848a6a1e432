// Package harness runs conformance scenarios against the type-graph engine.
//
// A scenario names a CUE graph description and a list of facts the engine
// must establish about it. Each run compiles the graph, classifies every
// node, captures the analysis, stores it in a fresh in-memory database and
// then evaluates the assertions against the engine, the snapshot and the
// stored run.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: list_across_units
//	description: "A self-referential list defined in two units"
//	graph: graphs/list.cue   # or an inline `source:` block
//	assertions:
//	  - type: equal
//	    a: a.c:Node
//	    b: b.c:Node
//	  - type: scc_size
//	    node: a.c:Node
//	    size: 2
//	  - type: stored
//	    where: [kind=struct]
//	    count: 2
//
// Nodes are named "<unit>:<label>" after the labels of the graph
// description, or by a bare label declared in exactly one unit.
//
// # Assertion Types
//
//   - equal, unequal: top-level structural equality of a and b
//   - complete, incomplete: whether node has a summary code
//   - same_code: a and b share a complete summary code
//   - abstract_name: the abstract name of node
//   - scc_size: size of the cyclic component holding node (0 if none)
//   - same_class: a and b fall in one equivalence class
//   - class_count: number of equivalence classes
//   - stored: number of stored summaries matching where terms
//
// # Golden Reports
//
// Result.Report renders a run as text in node-ID order. Codes, classes and
// components are relabelled by first appearance, so golden files stay
// readable and do not change when the hash function does. Regenerate them
// with:
//
//	go test ./internal/harness -update
package harness
