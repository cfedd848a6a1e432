package compiler

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/typegraph/internal/ir"
)

// Cycle levels.
const (
	LevelError   = "error"
	LevelWarning = "warning"
)

// CycleWarning represents a cycle in the type graph that does not pass
// through a struct, union, class or subroutine.
//
// Recursion through aggregates (a list node pointing at itself) is normal
// and never reported. Cycles made only of chain kinds are reported:
//   - pointer or reference loops ("typedef T *T") are warnings
//   - loops of typedefs and qualifiers alone are errors, since such a type
//     has no concrete form
type CycleWarning struct {
	Nodes   []ir.NodeID `json:"nodes"`   // members in ascending ID order
	Path    []string    `json:"path"`    // cycle traversal, first node repeated at the end
	Message string      `json:"message"` // human-readable description
	Level   string      `json:"level"`   // "error" or "warning"
}

// AnalyzeCycles finds the chain-only cycles of g.
//
// The algorithm:
//  1. Build the reference graph from node bodies (implicit bases excluded)
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop whose members are all
//     chain kinds
//
// A graph whose cycles all pass through aggregates returns an empty list.
// Warnings are ordered by their lowest member ID.
func AnalyzeCycles(g *ir.Graph) []CycleWarning {
	graph := buildReferenceGraph(g)
	sccs := tarjanSCC(graph)

	warnings := []CycleWarning{}
	for _, scc := range sccs {
		if len(scc) == 1 && !hasSelfLoop(scc[0], graph) {
			continue
		}
		slices.Sort(scc)
		if !chainOnly(g, scc) {
			continue
		}
		warnings = append(warnings, cycleSCCToWarning(g, scc, graph))
	}
	slices.SortFunc(warnings, func(a, b CycleWarning) int {
		return cmp.Compare(a.Nodes[0], b.Nodes[0])
	})
	return warnings
}

// referenceGraph maps a node to the nodes its body references, in out-edge
// order.
type referenceGraph struct {
	nodes []ir.NodeID
	edges map[ir.NodeID][]ir.NodeID
}

func buildReferenceGraph(g *ir.Graph) referenceGraph {
	rg := referenceGraph{edges: make(map[ir.NodeID][]ir.NodeID)}
	for _, id := range g.IDs() {
		rg.nodes = append(rg.nodes, id)
		n := g.MustLookup(id)
		for _, r := range bodyRefs(n) {
			if _, ok := g.Lookup(r.target); !ok {
				continue // void, implicit or dangling
			}
			rg.edges[id] = append(rg.edges[id], r.target)
		}
	}
	return rg
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node ir.NodeID, graph referenceGraph) bool {
	return slices.Contains(graph.edges[node], node)
}

func chainOnly(g *ir.Graph, scc []ir.NodeID) bool {
	for _, id := range scc {
		if g.MustLookup(id).Kind.Variant() != ir.VariantChain {
			return false
		}
	}
	return true
}

func wrappersOnly(g *ir.Graph, scc []ir.NodeID) bool {
	for _, id := range scc {
		if !g.MustLookup(id).Kind.IsWrapper() {
			return false
		}
	}
	return true
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Returns a list of SCCs, where each SCC is a list of node IDs.
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph referenceGraph) [][]ir.NodeID {
	var (
		index   = 0
		stack   []ir.NodeID
		indices = make(map[ir.NodeID]int)
		lowlink = make(map[ir.NodeID]int)
		onStack = make(map[ir.NodeID]bool)
		sccs    [][]ir.NodeID
	)

	var strongConnect func(ir.NodeID)
	strongConnect = func(v ir.NodeID) {
		// Set the depth index for v
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		// Consider successors of v
		for _, w := range graph.edges[v] {
			if _, visited := indices[w]; !visited {
				// Successor w has not yet been visited; recurse on it
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				// Successor w is on stack and hence in the current SCC
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// If v is a root node, pop the stack and create an SCC
		if lowlink[v] == indices[v] {
			var scc []ir.NodeID
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	// Visit all nodes in ID order
	for _, node := range graph.nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning.
func cycleSCCToWarning(g *ir.Graph, scc []ir.NodeID, graph referenceGraph) CycleWarning {
	level := LevelWarning
	what := "Pointer cycle"
	if wrappersOnly(g, scc) {
		level = LevelError
		what = "Typedef or qualifier loop"
	}

	ids := reconstructCyclePath(scc, graph)
	path := make([]string, len(ids))
	for i, id := range ids {
		path[i] = g.MustLookup(id).String()
	}
	return CycleWarning{
		Nodes:   scc,
		Path:    path,
		Message: fmt.Sprintf("%s detected: %s", what, strings.Join(path, " → ")),
		Level:   level,
	}
}

// reconstructCyclePath builds a cycle path from an SCC.
//
// Strategy: Start at first node in SCC, follow edges to other SCC members,
// continue until we return to start node.
func reconstructCyclePath(scc []ir.NodeID, graph referenceGraph) []ir.NodeID {
	if len(scc) == 0 {
		return nil
	}

	start := scc[0]
	current := start
	path := []ir.NodeID{current}
	visited := make(map[ir.NodeID]bool)

	// Follow edges within SCC until we return to start
	for {
		visited[current] = true

		next, found := ir.NoNode, false
		for _, neighbor := range graph.edges[current] {
			if slices.Contains(scc, neighbor) && (!visited[neighbor] || neighbor == start) {
				next, found = neighbor, true
				break
			}
		}
		if !found {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
