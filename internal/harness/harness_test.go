package harness

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listSource = `
unit: "a.c": types: {
	"int": {kind: "base", name: "int", encoding: "signed", size: 4}
	Node: {kind: "struct", name: "Node", size: 16, members: [
		{name: "next", type: "ptr", offset: 0},
		{name: "val", type: "int", offset: 8},
	]}
	ptr: {kind: "pointer", target: "Node", size: 8}
}
`

func inlineScenario(name string, assertions ...Assertion) *Scenario {
	return &Scenario{
		Name:        name,
		Description: name,
		Source:      listSource,
		Assertions:  assertions,
	}
}

func TestRun_PassingAssertions(t *testing.T) {
	result, err := Run(inlineScenario("list",
		Assertion{Type: AssertSCCSize, Node: "Node", Size: 2},
		Assertion{Type: AssertSCCSize, Node: "int", Size: 0},
		Assertion{Type: AssertAbstractName, Node: "ptr", Name: "__PTR_Node"},
		Assertion{Type: AssertComplete, Node: "Node"},
		Assertion{Type: AssertClassCount, Count: 3},
		Assertion{Type: AssertStored, Where: []string{"node=Node"}, Count: 1},
		Assertion{Type: AssertStored, Where: []string{"kind=pointer", "abstract_name=__PTR_Node"}, Count: 1},
	))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	assert.Len(t, result.Outcomes, 7)
	assert.Equal(t, 3, result.Snapshot.NodeCount)
	assert.Equal(t, 3, result.Run.NodeCount)
	assert.NotEmpty(t, result.Run.ID)
	assert.Equal(t, "scenario:list", result.Run.Source)
}

func TestRun_FailingAssertions(t *testing.T) {
	result, err := Run(inlineScenario("failing",
		Assertion{Type: AssertEqual, A: "Node", B: "int"},
		Assertion{Type: AssertIncomplete, Node: "Node"},
		Assertion{Type: AssertClassCount, Count: 2},
		Assertion{Type: AssertStored, Where: []string{"kind=struct"}, Count: 5},
		Assertion{Type: AssertSCCSize, Node: "missing", Size: 0},
	))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Outcomes, 5)
	require.Len(t, result.Errors, 5)

	var ae *AssertionError
	require.True(t, errors.As(result.Outcomes[0].Err, &ae))
	assert.Equal(t, AssertEqual, ae.Type)
	assert.Equal(t, "unequal", ae.Actual)

	require.True(t, errors.As(result.Outcomes[2].Err, &ae))
	assert.Equal(t, "3 classes", ae.Actual)

	require.True(t, errors.As(result.Outcomes[3].Err, &ae))
	assert.Equal(t, "1 summaries", ae.Actual)

	assert.False(t, errors.As(result.Outcomes[4].Err, &ae), "unresolved labels are not assertion failures")
	assert.Contains(t, result.Errors[4], `assertions[4]: undefined type reference "missing"`)
}

func TestRun_InvalidGraph(t *testing.T) {
	scenario := &Scenario{
		Name:        "invalid",
		Description: "negative size",
		Source:      `unit: "a.c": types: {x: {kind: "base", name: "x", encoding: "signed", size: -1}}`,
		Assertions:  []Assertion{{Type: AssertClassCount, Count: 1}},
	}
	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid graph")
	assert.Contains(t, err.Error(), "E102")
}

func TestRun_CompileError(t *testing.T) {
	scenario := &Scenario{
		Name:        "broken",
		Description: "undefined reference",
		Source:      `unit: "a.c": types: {p: {kind: "pointer", target: "nowhere"}}`,
		Assertions:  []Assertion{{Type: AssertClassCount, Count: 1}},
	}
	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile scenario source")
}

func TestResult_LabelFallsBackToHexID(t *testing.T) {
	r := NewResult("x")
	assert.Equal(t, "#0000000000000007", r.Label(7))
}

func TestReport_MarksFailures(t *testing.T) {
	result, err := Run(inlineScenario("report",
		Assertion{Type: AssertClassCount, Count: 3},
		Assertion{Type: AssertClassCount, Count: 4},
	))
	require.NoError(t, err)

	report := string(result.Report())
	assert.Contains(t, report, "assert[0] class_count 3: pass\n")
	assert.Contains(t, report, "assert[1] class_count 4: fail\n")
	assert.Contains(t, report, "result: fail\n")
	assert.Contains(t, report, "scc s1 chain_only=false: a.c:Node a.c:ptr\n")
}

func TestGolden_Scenarios(t *testing.T) {
	paths, err := DiscoverScenarios(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.Len(t, paths, 2)

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err)
		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestDiscoverScenarios(t *testing.T) {
	paths, err := DiscoverScenarios(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("testdata", "scenarios", "list_across_units.yaml"),
		filepath.Join("testdata", "scenarios", "opaque_declaration.yaml"),
	}, paths)

	single := filepath.Join("testdata", "scenarios", "opaque_declaration.yaml")
	paths, err = DiscoverScenarios(single)
	require.NoError(t, err)
	assert.Equal(t, []string{single}, paths)

	_, err = DiscoverScenarios(filepath.Join("testdata", "absent"))
	var notFound *ScenarioNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, filepath.Join("testdata", "absent"), notFound.Path)
}

func TestRunAll(t *testing.T) {
	paths, err := DiscoverScenarios(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	paths = append(paths, filepath.Join("testdata", "nonexistent.yaml"))

	suite, err := New().RunAll(context.Background(), paths, 2)
	require.NoError(t, err)

	assert.Equal(t, 3, suite.Total)
	assert.Equal(t, 2, suite.Passed)
	assert.Equal(t, 1, suite.Failed)
	require.Len(t, suite.Failures, 1)
	assert.Equal(t, paths[2], suite.Failures[0].ScenarioPath)
	assert.Contains(t, suite.Failures[0].Error, "failed to load scenario")
	require.Len(t, suite.Results, 2)
	assert.Equal(t, "list_across_units", suite.Results[0].Scenario)
	assert.Equal(t, "opaque_declaration", suite.Results[1].Scenario)
	assert.Equal(t, paths[1], suite.Results[1].Path)
}
