package harness

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/typegraph/internal/ir"
)

// Report renders the result as deterministic text for golden comparison.
//
// Summary codes, class IDs and SCC indexes are replaced by labels numbered
// in order of first appearance (c1, k1, s1), so the report records which
// nodes share them without depending on hash values. The graph hash and
// engine statistics are left out for the same reason.
func (r *Result) Report() []byte {
	var buf strings.Builder
	snap := r.Snapshot

	fmt.Fprintf(&buf, "scenario %s\n", r.Scenario)
	fmt.Fprintf(&buf, "nodes %d classes %d sccs %d\n", snap.NodeCount, len(snap.Classes), len(snap.SCCs))

	codes := newNumbering("c")
	classes := newNumbering("k")
	for _, n := range snap.Nodes {
		code := "none"
		if n.Complete {
			code = codes.label(uint64(n.Code))
		}
		class := "-"
		if n.Class != nil {
			class = classes.label(uint64(*n.Class))
		}
		scc := "-"
		if n.SCC != nil {
			scc = "s" + strconv.Itoa(*n.SCC+1)
		}
		fmt.Fprintf(&buf, "node %s kind=%s name=%q abstract=%q code=%s class=%s scc=%s\n",
			r.Label(n.ID), n.Kind, n.Name, n.AbstractName, code, class, scc)
	}

	byLabel := make(map[string]string, len(snap.Classes))
	for _, c := range snap.Classes {
		code := "none"
		if c.Complete {
			code = codes.label(uint64(c.Code))
		}
		byLabel[classes.label(uint64(c.ID))] = fmt.Sprintf("code=%s: %s", code, r.labelList(c.Members))
	}
	for _, l := range classes.order {
		fmt.Fprintf(&buf, "class %s %s\n", l, byLabel[l])
	}

	for _, s := range snap.SCCs {
		fmt.Fprintf(&buf, "scc s%d chain_only=%t: %s\n", s.Index+1, s.ChainOnly, r.labelList(s.Members))
	}

	for _, o := range r.Outcomes {
		status := "pass"
		if o.Err != nil {
			status = "fail"
		}
		fmt.Fprintf(&buf, "assert[%d] %s: %s\n", o.Index, describe(o.Assertion), status)
	}

	if r.Pass {
		buf.WriteString("result: pass\n")
	} else {
		buf.WriteString("result: fail\n")
	}
	return []byte(buf.String())
}

func (r *Result) labelList(ids []ir.NodeID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = r.Label(id)
	}
	return strings.Join(parts, " ")
}

// numbering assigns stable labels to values in order of first appearance.
type numbering struct {
	prefix string
	labels map[uint64]string
	order  []string
}

func newNumbering(prefix string) *numbering {
	return &numbering{prefix: prefix, labels: make(map[uint64]string)}
}

func (n *numbering) label(v uint64) string {
	if l, ok := n.labels[v]; ok {
		return l
	}
	l := n.prefix + strconv.Itoa(len(n.order)+1)
	n.labels[v] = l
	n.order = append(n.order, l)
	return l
}

// describe renders an assertion on one line.
func describe(a Assertion) string {
	switch a.Type {
	case AssertEqual, AssertUnequal, AssertSameCode, AssertSameClass:
		return fmt.Sprintf("%s %s %s", a.Type, a.A, a.B)
	case AssertComplete, AssertIncomplete:
		return fmt.Sprintf("%s %s", a.Type, a.Node)
	case AssertAbstractName:
		return fmt.Sprintf("%s %s %q", a.Type, a.Node, a.Name)
	case AssertSCCSize:
		return fmt.Sprintf("%s %s %d", a.Type, a.Node, a.Size)
	case AssertClassCount:
		return fmt.Sprintf("%s %d", a.Type, a.Count)
	case AssertStored:
		return fmt.Sprintf("%s [%s] %d", a.Type, strings.Join(a.Where, " "), a.Count)
	default:
		return a.Type
	}
}

// RunWithGolden executes a scenario and compares its report against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the report doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares the report of an existing result against a golden
// file without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, result.Report())
}
