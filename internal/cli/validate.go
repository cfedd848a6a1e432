package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/typegraph/internal/compiler"
	"github.com/roach88/typegraph/internal/ir"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Strict bool
	Jobs   int
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Nodes  int                        `json:"nodes"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
	Cycles []compiler.CycleWarning    `json:"cycles,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <input>...",
		Short: "Check a type graph without analysing it",
		Long: `Check a type graph for structural problems without running the analysis.

Reports dangling references, negative sizes, inconsistent array bounds,
duplicate members or enumerators and declarations that carry a body.
Loops made only of typedefs and qualifiers are errors; pointer loops that
never pass through an aggregate are warnings, or errors with --strict.

Examples:
  typegraph validate types.cue
  typegraph validate ./graphs --strict
  typegraph validate ./build/app --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "treat pointer-loop warnings as errors (default from analysis.strict)")
	cmd.Flags().IntVar(&opts.Jobs, "jobs", 0, "binaries decoded in parallel (default from analysis.jobs)")

	return cmd
}

func runValidate(opts *ValidateOptions, inputs []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	lr, err := opts.load(cmd, formatter, inputs, opts.Jobs)
	if err != nil {
		return err
	}

	result := checkGraph(lr.Graph, opts.Strict || opts.config().Analysis.Strict)
	if !result.Valid {
		return outputValidationFailure(formatter, lr, result)
	}
	return outputValidateSuccess(formatter, lr, result)
}

// checkGraph validates g and looks for chain-only cycles. In strict mode
// any such cycle invalidates the graph.
func checkGraph(g *ir.Graph, strict bool) ValidationResult {
	result := ValidationResult{
		Nodes:  g.Len(),
		Errors: compiler.Validate(g),
		Cycles: compiler.AnalyzeCycles(g),
	}
	result.Valid = len(result.Errors) == 0
	for _, c := range result.Cycles {
		if strict || c.Level == compiler.LevelError {
			result.Valid = false
		}
	}
	return result
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, lr *LoadResult, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "%s Graph valid: %d node(s)\n", Good("✓"), result.Nodes)
	for _, c := range result.Cycles {
		fmt.Fprintf(formatter.Writer, "  %s %s: %s\n", Warn("warning"), lr.Label(firstNode(c.Nodes)), c.Message)
	}
	return nil
}

// outputValidationFailure outputs every validation error and cycle.
func outputValidationFailure(formatter *OutputFormatter, lr *LoadResult, result ValidationResult) error {
	count := len(result.Errors) + len(result.Cycles)

	if formatter.Format == "json" {
		first := &CLIError{Code: ErrCodeCycle, Message: "chain-only cycle"}
		if len(result.Errors) > 0 {
			first = &CLIError{Code: result.Errors[0].Code, Message: result.Errors[0].Message}
		} else if len(result.Cycles) > 0 {
			first.Message = result.Cycles[0].Message
		}

		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error:  first,
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Invalid graph = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d problem(s)", count))
	}

	// Text format
	fmt.Fprintf(formatter.Writer, "%s Validation failed\n\n", Bad("✗"))

	for _, e := range result.Errors {
		fmt.Fprintf(formatter.Writer, "%s %s\n", lr.Label(e.Node), Dim(e.Field))
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", e.Code, e.Message)
	}
	for _, c := range result.Cycles {
		fmt.Fprintf(formatter.Writer, "%s %s\n", lr.Label(firstNode(c.Nodes)), Dim(c.Level))
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", ErrCodeCycle, c.Message)
	}

	// Invalid graph = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d problem(s)", count))
}
