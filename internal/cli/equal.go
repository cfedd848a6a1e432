package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/typegraph/internal/engine"
	"github.com/roach88/typegraph/internal/ir"
)

// EqualOptions holds flags for the equal command.
type EqualOptions struct {
	*RootOptions
	Jobs int
}

// NodeInfo describes one node in command output.
type NodeInfo struct {
	ID           ir.NodeID `json:"id"`
	Label        string    `json:"label"`
	Kind         string    `json:"kind"`
	Name         string    `json:"name,omitempty"`
	Unit         string    `json:"unit"`
	AbstractName string    `json:"abstract_name"`
	Code         *uint32   `json:"code"` // null when the node is incomplete
}

// EqualResult holds the verdict of one comparison.
type EqualResult struct {
	A       NodeInfo    `json:"a"`
	B       NodeInfo    `json:"b"`
	Verdict string      `json:"verdict"` // "equal", "equal_by_assumption" or "unequal"
	Equal   bool        `json:"equal"`
	Stats   StatsOutput `json:"stats"`
}

// NewEqualCommand creates the equal command.
func NewEqualCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EqualOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "equal <input> <type-a> <type-b>",
		Short: "Test two types for structural equality",
		Long: `Test whether two types of a graph are structurally equal.

Types are named by CUE label ("unit:label" or a unique bare label), by
node ID (decimal, 0x-hex or "#0x..." as printed) or by declared name
("unit:name" or a unique bare name). Recursive types are compared up to
their cycles. An opaque declaration equals the definition it resolves to.

Exits with status 1 when the types are unequal.

Examples:
  typegraph equal list.cue a.c:Node b.c:Node
  typegraph equal ./build/app 0x2d 0x1f0 --format json`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEqual(opts, args[0], args[1], args[2], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Jobs, "jobs", 0, "binaries decoded in parallel (default from analysis.jobs)")

	return cmd
}

func runEqual(opts *EqualOptions, input, refA, refB string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	lr, err := opts.load(cmd, formatter, []string{input}, opts.Jobs)
	if err != nil {
		return err
	}
	ids, err := resolve(formatter, lr, refA, refB)
	if err != nil {
		return err
	}

	e := engine.New(lr.Graph, engine.WithLogger(opts.logger()))
	verdict := e.EqualDetailed(ids[0], ids[1])

	result := EqualResult{
		A:       describeNode(lr, e, ids[0]),
		B:       describeNode(lr, e, ids[1]),
		Verdict: verdict.String(),
		Equal:   verdict != engine.Unequal,
		Stats:   newStatsOutput(e.Stats()),
	}

	if err := outputEqualResult(formatter, result); err != nil {
		return err
	}
	if !result.Equal {
		return NewExitError(ExitFailure, fmt.Sprintf("%s and %s are unequal", refA, refB))
	}
	return nil
}

func describeNode(lr *LoadResult, e *engine.Engine, id ir.NodeID) NodeInfo {
	n := lr.Graph.MustLookup(id)
	info := NodeInfo{
		ID:           id,
		Label:        lr.Label(id),
		Kind:         n.Kind.String(),
		Name:         n.Name,
		Unit:         n.Unit,
		AbstractName: e.AbstractName(id),
	}
	if code, complete := e.SummaryCode(id); complete {
		info.Code = &code
	}
	return info
}

func formatCode(code *uint32) string {
	if code == nil {
		return "incomplete"
	}
	return fmt.Sprintf("%08x", *code)
}

func outputEqualResult(formatter *OutputFormatter, result EqualResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	verdict := Good(result.Verdict)
	if !result.Equal {
		verdict = Bad(result.Verdict)
	}
	w := formatter.Writer
	fmt.Fprintln(w, verdict)
	for _, n := range []NodeInfo{result.A, result.B} {
		fmt.Fprintf(w, "  %s %s\n", n.Label, Dim(n.ID.String()))
		fmt.Fprintf(w, "    kind=%s abstract=%q code=%s\n", n.Kind, n.AbstractName, formatCode(n.Code))
	}
	formatter.VerboseLog("compared %d step(s), max %d assumption(s)",
		result.Stats.Comparisons, result.Stats.MaxAssumptions)
	return nil
}
