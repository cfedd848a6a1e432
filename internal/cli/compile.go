package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/typegraph/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
	Jobs   int
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	NodeCount int
	Units     map[string]int // nodes per unit
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <input>...",
		Short: "Compile a type graph to canonical JSON",
		Long: `Compile CUE type-graph descriptions or DWARF debug info to canonical
JSON: sorted keys, no whitespace, node IDs as decimal strings.

The output carries the graph hash, the content address analysis runs are
stored under, so two inputs describing the same graph can be recognised.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().IntVar(&opts.Jobs, "jobs", 0, "binaries decoded in parallel (default from analysis.jobs)")

	return cmd
}

func runCompile(opts *CompileOptions, inputs []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	lr, err := opts.load(cmd, formatter, inputs, opts.Jobs)
	if err != nil {
		return err
	}

	hash, err := ir.GraphHash(lr.Graph)
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, err.Error())
	}
	data, err := canonicalGraph(lr.Graph, hash)
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, err.Error())
	}

	// Write to file if --output specified
	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, data, 0644); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
	}

	return outputCompileSuccess(formatter, data, hash, calculateStats(lr.Graph), opts.Output)
}

// canonicalGraph renders g as canonical JSON.
func canonicalGraph(g *ir.Graph, hash string) ([]byte, error) {
	nodes := make(ir.IRArray, 0, g.Len())
	for _, id := range g.IDs() {
		nodes = append(nodes, ir.NodeValue(g.MustLookup(id)))
	}
	return ir.MarshalCanonical(ir.IRObject{
		"graph_hash": ir.IRString(hash),
		"ir_version": ir.IRString(ir.IRVersion),
		"nodes":      nodes,
	})
}

// calculateStats computes summary statistics for g.
func calculateStats(g *ir.Graph) CompilationStats {
	stats := CompilationStats{NodeCount: g.Len(), Units: make(map[string]int)}
	for _, id := range g.IDs() {
		stats.Units[g.MustLookup(id).Unit]++
	}
	return stats
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, data []byte, hash string, stats CompilationStats, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(json.RawMessage(data))
	}

	// Human-readable text output
	fmt.Fprintf(formatter.Writer, "%s Compiled %d node(s) in %d unit(s)\n", Good("✓"), stats.NodeCount, len(stats.Units))
	fmt.Fprintf(formatter.Writer, "  graph: %s\n", hash)
	for _, unit := range sortedKeys(stats.Units) {
		fmt.Fprintf(formatter.Writer, "  %s: %d node(s)\n", unit, stats.Units[unit])
	}

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote canonical IR to %s\n", outputFile)
	}

	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	// Compilation errors are command-level errors (exit code 2)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}
