package engine

import (
	"cmp"
	"fmt"
	"slices"

	"fortio.org/safecast"

	"github.com/roach88/typegraph/internal/ir"
)

// ClassID identifies an equivalence class within one Engine.
type ClassID uint32

// Class is a snapshot of one equivalence class: nodes known to be mutually
// structurally equal.
type Class struct {
	ID ClassID
	// Members in ascending ID order. Members[0] is the canonical
	// representative.
	Members []ir.NodeID
	// Code is the shared summary code; Complete is false when the members
	// are incomplete and Code is meaningless.
	Code     uint32
	Complete bool
}

// Representative returns the lowest member ID.
func (c Class) Representative() ir.NodeID {
	return c.Members[0]
}

type classState struct {
	id      ClassID
	rep     ir.NodeID // first member; comparisons are made against it
	members []ir.NodeID
	key     summary
}

// partition is the equivalence-class cache: classes, the node-to-class
// lookup and an index from summary code to the classes carrying it.
type partition struct {
	classes map[ClassID]*classState
	classOf map[ir.NodeID]ClassID
	byCode  map[summary][]ClassID
	next    int
}

func newPartition() *partition {
	return &partition{
		classes: make(map[ClassID]*classState),
		classOf: make(map[ir.NodeID]ClassID),
		byCode:  make(map[summary][]ClassID),
	}
}

// ClassOf returns the equivalence class of id, if it has one yet. Nodes
// join classes as a side effect of Equal and EqualDetailed.
func (e *Engine) ClassOf(id ir.NodeID) (ClassID, bool) {
	c, ok := e.part.classOf[id]
	return c, ok
}

// Classes returns every equivalence class ordered by representative.
func (e *Engine) Classes() []Class {
	out := make([]Class, 0, len(e.part.classes))
	for _, st := range e.part.classes {
		members := slices.Clone(st.members)
		slices.Sort(members)
		out = append(out, Class{ID: st.id, Members: members, Code: st.key.code, Complete: st.key.ok})
	}
	slices.SortFunc(out, func(a, b Class) int {
		return cmp.Compare(a.Representative(), b.Representative())
	})
	return out
}

// Classify places every given node into the partition, comparing each one
// against the existing classes that share its summary code.
func (e *Engine) Classify(ids []ir.NodeID) {
	for _, id := range ids {
		if id == ir.NoNode {
			continue
		}
		if _, ok := e.src.Lookup(id); !ok {
			continue
		}
		e.place(id)
	}
}

// place returns the class of id, creating or joining one if needed. Only
// classes with the same summary code are candidates, and candidates are
// compared without recording results, so placement never recurses into
// another placement.
func (e *Engine) place(id ir.NodeID) ClassID {
	if c, ok := e.part.classOf[id]; ok {
		return c
	}
	key := e.summaryOf(id)
	trial := comparer{e: e}
	for _, cid := range slices.Clone(e.part.byCode[key]) {
		st, ok := e.part.classes[cid]
		if !ok {
			continue
		}
		r, _ := trial.equal(id, st.rep, nil)
		if r != Unequal {
			e.join(id, cid)
			return cid
		}
	}
	return e.newClass(id, key)
}

func (e *Engine) newClass(id ir.NodeID, key summary) ClassID {
	slot, err := safecast.Conv[uint32](e.part.next)
	if err != nil {
		panic(fmt.Errorf("class id overflow: %w", err))
	}
	e.part.next++
	cid := ClassID(slot)
	e.part.classes[cid] = &classState{id: cid, rep: id, members: []ir.NodeID{id}, key: key}
	e.part.classOf[id] = cid
	e.part.byCode[key] = append(e.part.byCode[key], cid)
	e.logger.Debug("class created", "class", cid, "node", id, "code", key.code, "complete", key.ok)
	return cid
}

func (e *Engine) join(id ir.NodeID, cid ClassID) {
	st := e.part.classes[cid]
	st.members = append(st.members, id)
	e.part.classOf[id] = cid
}

// recordEqual installs an Equal verdict. Two distinct existing classes are
// merged only after their representatives compare equal.
func (e *Engine) recordEqual(a, b ir.NodeID) {
	ca, okA := e.part.classOf[a]
	cb, okB := e.part.classOf[b]
	switch {
	case okA && okB:
		if ca != cb {
			e.mergeVerified(ca, cb, a, b)
		}
	case okA:
		e.join(b, ca)
	case okB:
		e.join(a, cb)
	default:
		e.join(b, e.place(a))
	}
}

// recordUnequal installs an Unequal verdict by making sure both nodes are
// classified. Landing in the same class is a contradiction.
func (e *Engine) recordUnequal(a, b ir.NodeID) {
	ca := e.place(a)
	cb := e.place(b)
	if ca == cb {
		violation(ErrCodeDoubleBooking, "record unequal", a, b, map[string]string{
			"class": fmt.Sprintf("%d", ca),
		})
	}
}

func (e *Engine) mergeVerified(ca, cb ClassID, a, b ir.NodeID) {
	sa, sb := e.part.classes[ca], e.part.classes[cb]
	trial := comparer{e: e}
	// Compare the representatives structurally; the cache already
	// claims they differ.
	if r, _ := trial.compare(sa.rep, sb.rep, nil); r == Unequal {
		violation(ErrCodeConflictingMerge, "merge classes", a, b, map[string]string{
			"class_a": fmt.Sprintf("%d", ca),
			"class_b": fmt.Sprintf("%d", cb),
		})
	}
	// Keep the larger class; move the smaller one's members.
	keep, drop := sa, sb
	if len(sb.members) > len(sa.members) {
		keep, drop = sb, sa
	}
	for _, m := range drop.members {
		e.part.classOf[m] = keep.id
	}
	keep.members = append(keep.members, drop.members...)
	delete(e.part.classes, drop.id)
	e.part.byCode[drop.key] = slices.DeleteFunc(e.part.byCode[drop.key], func(c ClassID) bool {
		return c == drop.id
	})
	e.logger.Debug("classes merged", "kept", keep.id, "dropped", drop.id)
}
