package engine

import (
	"fmt"
	"iter"

	"github.com/roach88/typegraph/internal/ir"
)

// Mode selects how a Walker treats edges to already-seen nodes.
type Mode uint8

const (
	// ModeWalk skips edges to nodes on the current path and re-descends
	// into finished nodes reached by another edge. Consumers that only
	// need an acyclic view use it.
	ModeWalk Mode = iota

	// ModeEdges offers every edge exactly once, classifying back and
	// cross edges without descending into them.
	ModeEdges
)

func (m Mode) String() string {
	switch m {
	case ModeWalk:
		return "walk"
	case ModeEdges:
		return "edges"
	default:
		return fmt.Sprintf("Mode(%d)", m)
	}
}

// EdgeClass classifies the edge that produced a Step.
type EdgeClass uint8

const (
	// EdgeRoot marks the start node. Its Reason has kind ir.ReasonRoot.
	EdgeRoot EdgeClass = iota
	// EdgeTree marks an edge whose target was entered by this step. Void
	// targets are reported as tree edges but never entered.
	EdgeTree
	// EdgeBack marks an edge to a node on the current path.
	EdgeBack
	// EdgeCross marks an edge to a fully explored node.
	EdgeCross
)

func (c EdgeClass) String() string {
	switch c {
	case EdgeRoot:
		return "root"
	case EdgeTree:
		return "tree"
	case EdgeBack:
		return "back"
	case EdgeCross:
		return "cross"
	default:
		return fmt.Sprintf("EdgeClass(%d)", c)
	}
}

// Step is one position of a walk: the node reached and why.
type Step struct {
	Node   ir.NodeID
	Reason ir.Reason
	Class  EdgeClass
	// Depth is the number of nodes on the path above Node.
	Depth int
}

type color uint8

const (
	white color = iota // unvisited
	grey               // on the current path
	black              // all edges offered
)

type frame struct {
	node  ir.NodeID
	edges []ir.TypeEdge
	next  int
}

// Walker is a lazy depth-first traversal of the type graph. It is pull
// based and not restartable; abandoning it early costs nothing.
//
// Usage:
//
//	w := eng.Walk(start, engine.ModeEdges)
//	for w.Next() {
//	    st := w.Step()
//	    ...
//	}
type Walker struct {
	src    Source
	mode   Mode
	start  ir.NodeID
	colors map[ir.NodeID]color
	stack  []frame

	started bool
	done    bool
	cur     Step

	// prune drops an edge before it is classified.
	prune func(ir.TypeEdge) bool
	// onFinish runs when a node is blackened.
	onFinish func(ir.NodeID)
}

type walkOption func(*Walker)

func withPrune(fn func(ir.TypeEdge) bool) walkOption {
	return func(w *Walker) { w.prune = fn }
}

func withFinish(fn func(ir.NodeID)) walkOption {
	return func(w *Walker) { w.onFinish = fn }
}

// Walk starts a depth-first traversal at start.
func (e *Engine) Walk(start ir.NodeID, mode Mode) *Walker {
	return newWalker(e.src, start, mode)
}

func newWalker(src Source, start ir.NodeID, mode Mode, opts ...walkOption) *Walker {
	w := &Walker{
		src:    src,
		mode:   mode,
		start:  start,
		colors: make(map[ir.NodeID]color),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Next advances to the next step. It returns false once every edge
// reachable from the start node has been offered.
func (w *Walker) Next() bool {
	if w.done {
		return false
	}
	if !w.started {
		w.started = true
		w.cur = Step{Node: w.start, Reason: ir.Reason{Kind: ir.ReasonRoot}, Class: EdgeRoot}
		if w.start != ir.NoNode {
			w.push(w.start)
		} else {
			w.done = true
		}
		return true
	}

	for len(w.stack) > 0 {
		top := &w.stack[len(w.stack)-1]
		if top.next >= len(top.edges) {
			w.pop()
			continue
		}
		edge := top.edges[top.next]
		top.next++
		if w.prune != nil && w.prune(edge) {
			continue
		}

		step := Step{Node: edge.Target, Reason: edge.Label, Class: EdgeTree, Depth: len(w.stack)}
		if edge.Target == ir.NoNode {
			w.cur = step
			return true
		}
		switch w.colors[edge.Target] {
		case white:
			w.push(edge.Target)
		case grey:
			if w.mode == ModeWalk {
				continue
			}
			step.Class = EdgeBack
		case black:
			step.Class = EdgeCross
			if w.mode == ModeWalk {
				w.push(edge.Target)
			}
		}
		w.cur = step
		return true
	}

	w.done = true
	return false
}

// Step returns the current position. It is only valid after Next returned
// true.
func (w *Walker) Step() Step {
	return w.cur
}

// All returns the remaining steps as an iterator.
func (w *Walker) All() iter.Seq[Step] {
	return func(yield func(Step) bool) {
		for w.Next() {
			if !yield(w.cur) {
				return
			}
		}
	}
}

// Path returns the nodes on the current exploration path, outermost first.
func (w *Walker) Path() []ir.NodeID {
	path := make([]ir.NodeID, len(w.stack))
	for i, f := range w.stack {
		path[i] = f.node
	}
	return path
}

func (w *Walker) push(id ir.NodeID) {
	w.colors[id] = grey
	w.stack = append(w.stack, frame{node: id, edges: w.src.OutEdges(id)})
}

func (w *Walker) pop() {
	id := w.stack[len(w.stack)-1].node
	w.stack = w.stack[:len(w.stack)-1]
	w.colors[id] = black
	if w.onFinish != nil {
		w.onFinish(id)
	}
}
