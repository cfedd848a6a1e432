package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/typegraph/internal/engine"
)

// WalkOptions holds flags for the walk command.
type WalkOptions struct {
	*RootOptions
	Mode     string
	MaxDepth int
	Jobs     int
}

// WalkStep is one position of a traversal.
type WalkStep struct {
	Depth  int     `json:"depth"`
	Node   NodeRef `json:"node"`
	Reason string  `json:"reason"`
	Class  string  `json:"class"` // "root", "tree", "back" or "cross"
}

// WalkStats counts the steps of a traversal by edge class.
type WalkStats struct {
	Steps int `json:"steps"`
	Tree  int `json:"tree"`
	Back  int `json:"back"`
	Cross int `json:"cross"`
}

// WalkResult holds the walk command output.
type WalkResult struct {
	Start NodeRef    `json:"start"`
	Mode  string     `json:"mode"`
	Steps []WalkStep `json:"steps"`
	Stats WalkStats  `json:"stats"`
}

// NewWalkCommand creates the walk command.
func NewWalkCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WalkOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "walk <input> <type>",
		Short: "Trace a depth-first walk from a type",
		Long: `Trace the depth-first traversal the analysis performs from a type.

Every step shows the type reached and the edge that led to it: the
pointee of a pointer, a named member, a parameter and so on.

Modes:
  walk   skip edges back onto the current path and revisit shared types
  edges  offer every edge once, marking back and cross edges without
         descending into them

Examples:
  typegraph walk list.cue a.c:Node
  typegraph walk list.cue Node --mode edges --format json
  typegraph walk ./build/app 0x2d --max-depth 3`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWalk(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Mode, "mode", "walk", "traversal mode (walk|edges)")
	cmd.Flags().IntVar(&opts.MaxDepth, "max-depth", 0, "stop listing steps deeper than this (0 = unlimited)")
	cmd.Flags().IntVar(&opts.Jobs, "jobs", 0, "binaries decoded in parallel (default from analysis.jobs)")

	return cmd
}

func parseMode(s string) (engine.Mode, bool) {
	for _, m := range []engine.Mode{engine.ModeWalk, engine.ModeEdges} {
		if m.String() == s {
			return m, true
		}
	}
	return 0, false
}

func runWalk(opts *WalkOptions, input, ref string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	mode, ok := parseMode(opts.Mode)
	if !ok {
		msg := fmt.Sprintf("invalid mode %q: must be walk or edges", opts.Mode)
		_ = formatter.Error(ErrCodeGeneric, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	lr, err := opts.load(cmd, formatter, []string{input}, opts.Jobs)
	if err != nil {
		return err
	}
	ids, err := resolve(formatter, lr, ref)
	if err != nil {
		return err
	}

	e := engine.New(lr.Graph, engine.WithLogger(opts.logger()))
	result := WalkResult{
		Start: NodeRef{ID: ids[0], Label: lr.Label(ids[0])},
		Mode:  mode.String(),
		Steps: []WalkStep{},
	}
	for st := range e.Walk(ids[0], mode).All() {
		if opts.MaxDepth > 0 && st.Depth > opts.MaxDepth {
			continue
		}
		result.Steps = append(result.Steps, WalkStep{
			Depth:  st.Depth,
			Node:   NodeRef{ID: st.Node, Label: lr.Label(st.Node)},
			Reason: st.Reason.String(),
			Class:  st.Class.String(),
		})
		result.Stats.Steps++
		switch st.Class {
		case engine.EdgeTree:
			result.Stats.Tree++
		case engine.EdgeBack:
			result.Stats.Back++
		case engine.EdgeCross:
			result.Stats.Cross++
		}
	}

	return outputWalkResult(formatter, result)
}

func outputWalkResult(formatter *OutputFormatter, result WalkResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Walk from %s (mode %s)\n", result.Start.Label, result.Mode)
	for _, st := range result.Steps {
		indent := strings.Repeat("  ", st.Depth+1)
		switch st.Class {
		case engine.EdgeBack.String(), engine.EdgeCross.String():
			fmt.Fprintf(w, "%s%s %s %s\n", indent, st.Node.Label, Dim("("+st.Reason+")"), Warn(st.Class))
		default:
			fmt.Fprintf(w, "%s%s %s\n", indent, st.Node.Label, Dim("("+st.Reason+")"))
		}
	}
	fmt.Fprintf(w, "%d step(s): %d tree, %d back, %d cross\n",
		result.Stats.Steps, result.Stats.Tree, result.Stats.Back, result.Stats.Cross)
	return nil
}
