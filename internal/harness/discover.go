package harness

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ScenarioNotFoundError is returned when a scenario path doesn't exist.
type ScenarioNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario path %q does not exist", e.Path)
}

// DiscoverScenarios returns the scenario files under path in lexical order.
// A file path is returned as is; a directory is walked for *.yaml and
// *.yml files.
func DiscoverScenarios(path string) ([]string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &ScenarioNotFoundError{Path: path}
	}
	if err != nil {
		return nil, fmt.Errorf("stat scenario path: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var paths []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ext := strings.ToLower(filepath.Ext(p)); ext == ".yaml" || ext == ".yml" {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover scenarios: %w", err)
	}
	slices.Sort(paths)
	return paths, nil
}

// SuiteResult summarises a batch of scenario files.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Failures []ScenarioFailure `json:"failures,omitempty"`

	// Results holds the result of every scenario that executed, in path
	// order. Scenarios that failed to load or execute have no entry.
	Results []*Result `json:"-"`
}

// ScenarioFailure represents one scenario that did not pass.
type ScenarioFailure struct {
	ScenarioPath string `json:"scenario_path"`
	Error        string `json:"error"`
}

// RunAll loads and runs every scenario file, at most parallel at a time
// (parallel < 1 means no limit). Each scenario runs against its own engine
// and store. A scenario that fails to load, execute or pass is recorded
// as a failure rather than aborting the batch.
func (h *Harness) RunAll(ctx context.Context, paths []string, parallel int) (*SuiteResult, error) {
	type slot struct {
		result *Result
		err    error
	}
	slots := make([]slot, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scenario, err := LoadScenario(path)
			if err != nil {
				slots[i].err = fmt.Errorf("failed to load scenario: %w", err)
				return nil
			}
			result, err := h.Run(gctx, scenario)
			if err != nil {
				slots[i].err = fmt.Errorf("scenario execution failed: %w", err)
				return nil
			}
			result.Path = path
			slots[i].result = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	suite := &SuiteResult{Total: len(paths)}
	for i, s := range slots {
		switch {
		case s.err != nil:
			suite.Failed++
			suite.Failures = append(suite.Failures, ScenarioFailure{ScenarioPath: paths[i], Error: s.err.Error()})
		case !s.result.Pass:
			suite.Failed++
			suite.Results = append(suite.Results, s.result)
			suite.Failures = append(suite.Failures, ScenarioFailure{
				ScenarioPath: paths[i],
				Error:        fmt.Sprintf("scenario assertions failed: %s", strings.Join(s.result.Errors, "; ")),
			})
		default:
			suite.Passed++
			suite.Results = append(suite.Results, s.result)
		}
	}
	return suite, nil
}
