package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/typegraph/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
	Jobs   int    // scenarios run in parallel
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match", "updated" or "mismatch"
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios>",
		Short: "Run analysis scenarios",
		Long: `Run YAML analysis scenarios: each one describes a type graph and a list
of assertions about equality, summary codes, abstract names, components,
classes and stored summaries.

<scenarios> is a scenario file or a directory searched for *.yaml and
*.yml files. When golden/<name>.golden exists next to a scenario, the
scenario's analysis report must match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  typegraph test ./scenarios
  typegraph test ./scenarios --filter "list_*"
  typegraph test ./scenarios --update
  typegraph test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern on the file name")
	cmd.Flags().IntVar(&opts.Jobs, "jobs", 0, "scenarios run in parallel (default from analysis.jobs)")

	return cmd
}

func runTests(opts *TestOptions, scenariosPath string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	paths, err := harness.DiscoverScenarios(scenariosPath)
	if err != nil {
		var notFound *harness.ScenarioNotFoundError
		if errors.As(err, &notFound) {
			return outputCommandError(formatter, &LoadError{Code: ErrCodeNotFound, Message: err.Error()})
		}
		return outputCommandError(formatter, &LoadError{Code: ErrCodeScanError, Message: err.Error()})
	}
	paths, err = filterScenarios(paths, opts.Filter)
	if err != nil {
		return outputCommandError(formatter, &LoadError{Code: ErrCodeGeneric, Message: err.Error()})
	}

	if len(paths) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(formatter, TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(formatter.Writer, "No scenarios found.")
		return nil
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = opts.config().Analysis.Jobs
	}
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}

	h := harness.New(harness.WithLogger(opts.logger()))
	suite, err := h.RunAll(cmd.Context(), paths, jobs)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario run aborted", err)
	}

	byPath := make(map[string]*ScenarioResult, len(paths))
	for _, r := range suite.Results {
		sr := &ScenarioResult{Name: r.Scenario, Path: r.Path, Pass: r.Pass, Errors: r.Errors}
		checkGolden(sr, r, opts.Update)
		byPath[r.Path] = sr
	}
	for _, f := range suite.Failures {
		if _, ok := byPath[f.ScenarioPath]; ok {
			continue
		}
		byPath[f.ScenarioPath] = &ScenarioResult{
			Name:   scenarioName(f.ScenarioPath),
			Path:   f.ScenarioPath,
			Errors: []string{f.Error},
		}
	}

	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(paths)), Total: len(paths)}
	for _, p := range paths {
		sr := byPath[p]
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, *sr)
	}

	// Output results
	if opts.Format == "json" {
		return outputTestJSON(formatter, result)
	}
	return outputTestText(formatter, result)
}

// filterScenarios keeps the paths whose file name, without extension,
// matches the glob pattern.
func filterScenarios(paths []string, pattern string) ([]string, error) {
	if pattern == "" {
		return paths, nil
	}
	var out []string
	for _, p := range paths {
		matched, err := filepath.Match(pattern, scenarioName(p))
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
		if matched {
			out = append(out, p)
		}
	}
	return out, nil
}

func scenarioName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile string) string {
	return filepath.Join(filepath.Dir(scenarioFile), "golden", scenarioName(scenarioFile)+".golden")
}

// checkGolden compares the scenario report with its golden file, or
// rewrites the golden file when update is set. Scenarios without a golden
// file are judged on their assertions alone.
func checkGolden(sr *ScenarioResult, r *harness.Result, update bool) {
	goldenPath := goldenFilePath(r.Path)
	report := r.Report()

	if update {
		if err := writeGoldenFile(goldenPath, report); err != nil {
			sr.Pass = false
			sr.Errors = append(sr.Errors, fmt.Sprintf("failed to update golden file: %v", err))
			return
		}
		sr.Golden = "updated"
		return
	}

	want, err := os.ReadFile(goldenPath)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		sr.Pass = false
		sr.Errors = append(sr.Errors, fmt.Sprintf("failed to read golden file: %v", err))
		return
	}
	if !bytes.Equal(want, report) {
		sr.Pass = false
		sr.Golden = "mismatch"
		sr.Errors = append(sr.Errors, "report does not match golden file (run with --update to regenerate)")
		return
	}
	sr.Golden = "match"
}

func writeGoldenFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(formatter *OutputFormatter, result TestResult) error {
	status := "ok"
	if result.Failed > 0 {
		status = "error"
	}

	response := CLIResponse{
		Status: status,
		Data:   result,
	}

	if result.Failed > 0 {
		response.Error = &CLIError{
			Code:    "E_TEST_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	encoder := json.NewEncoder(formatter.Writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test result as text.
func outputTestText(formatter *OutputFormatter, result TestResult) error {
	w := formatter.Writer

	for _, sr := range result.Scenarios {
		mark := Good("✓")
		if !sr.Pass {
			mark = Bad("✗")
		}
		suffix := ""
		if sr.Golden == "updated" {
			suffix = " (golden updated)"
		}
		fmt.Fprintf(w, "%s %s%s\n", mark, sr.Name, suffix)
		for _, e := range sr.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
