package cli

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/typegraph/internal/engine"
	"github.com/roach88/typegraph/internal/ir"
)

// SCCOptions holds flags for the scc command.
type SCCOptions struct {
	*RootOptions
	Reachable bool
	Jobs      int
}

// NodeRef names a node in command output.
type NodeRef struct {
	ID    ir.NodeID `json:"id"`
	Label string    `json:"label"`
}

// EdgeInfo is one edge of a component.
type EdgeInfo struct {
	Source ir.NodeID `json:"source"`
	Target ir.NodeID `json:"target"`
	Reason string    `json:"reason"`
}

// SCCInfo describes one cyclic component.
type SCCInfo struct {
	Digest    string     `json:"digest"`
	ChainOnly bool       `json:"chain_only"`
	Members   []NodeRef  `json:"members"`
	Edges     []EdgeInfo `json:"edges"`
}

// ComponentEntry is one node reachable from a start node and the
// component it belongs to.
type ComponentEntry struct {
	NodeRef
	Component int  `json:"component"`
	Cyclic    bool `json:"cyclic"`
}

// SCCResult holds the scc command output.
type SCCResult struct {
	SCCs       []SCCInfo        `json:"sccs"`
	Components []ComponentEntry `json:"components,omitempty"`
}

// NewSCCCommand creates the scc command.
func NewSCCCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SCCOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scc <input> [type]",
		Short: "Show the cyclic components of a type graph",
		Long: `Show the strongly-connected components of a type graph that contain
at least one edge, i.e. the groups of mutually recursive types.

Without a type, every component of the graph is listed. With a type, only
the component containing it is shown; --reachable also lists every type
reachable from it with its component number.

Examples:
  typegraph scc list.cue
  typegraph scc list.cue a.c:Node --reachable
  typegraph scc ./build/app 0x2d --format json`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var ref string
			if len(args) == 2 {
				ref = args[1]
			}
			return runSCC(opts, args[0], ref, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Reachable, "reachable", false, "list every type reachable from the given type")
	cmd.Flags().IntVar(&opts.Jobs, "jobs", 0, "binaries decoded in parallel (default from analysis.jobs)")

	return cmd
}

func runSCC(opts *SCCOptions, input, ref string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if opts.Reachable && ref == "" {
		_ = formatter.Error(ErrCodeGeneric, "--reachable requires a type", nil)
		return NewExitError(ExitCommandError, "--reachable requires a type")
	}

	lr, err := opts.load(cmd, formatter, []string{input}, opts.Jobs)
	if err != nil {
		return err
	}
	e := engine.New(lr.Graph, engine.WithLogger(opts.logger()))

	result := SCCResult{SCCs: []SCCInfo{}}
	if ref == "" {
		seen := make(map[*engine.TypeSCC]bool)
		for _, id := range lr.Graph.IDs() {
			if scc := e.SCCOf(id); scc != nil && !seen[scc] {
				seen[scc] = true
				result.SCCs = append(result.SCCs, sccInfo(lr, scc))
			}
		}
		return outputSCCResult(formatter, result)
	}

	ids, err := resolve(formatter, lr, ref)
	if err != nil {
		return err
	}
	if scc := e.SCCOf(ids[0]); scc != nil {
		result.SCCs = append(result.SCCs, sccInfo(lr, scc))
	}
	if opts.Reachable {
		comps := e.Components(ids[0])
		for _, id := range slices.Sorted(maps.Keys(comps)) {
			result.Components = append(result.Components, ComponentEntry{
				NodeRef:   NodeRef{ID: id, Label: lr.Label(id)},
				Component: comps[id],
				Cyclic:    e.SCCOf(id) != nil,
			})
		}
		slices.SortStableFunc(result.Components, func(a, b ComponentEntry) int {
			return cmp.Compare(a.Component, b.Component)
		})
	}
	return outputSCCResult(formatter, result)
}

func sccInfo(lr *LoadResult, scc *engine.TypeSCC) SCCInfo {
	info := SCCInfo{
		Digest:    fmt.Sprintf("%08x", scc.Digest),
		ChainOnly: scc.ChainOnly,
	}
	for _, id := range scc.Members {
		info.Members = append(info.Members, NodeRef{ID: id, Label: lr.Label(id)})
	}
	for _, edge := range scc.Edges {
		info.Edges = append(info.Edges, EdgeInfo{Source: edge.Source, Target: edge.Target, Reason: edge.Label.String()})
	}
	return info
}

func outputSCCResult(formatter *OutputFormatter, result SCCResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	if len(result.SCCs) == 0 {
		fmt.Fprintln(w, "No cyclic components")
	}
	for i, scc := range result.SCCs {
		fmt.Fprintf(w, "scc %d digest=%s chain_only=%t (%d member(s), %d edge(s))\n",
			i, scc.Digest, scc.ChainOnly, len(scc.Members), len(scc.Edges))
		for _, m := range scc.Members {
			fmt.Fprintf(w, "  %s %s\n", m.Label, Dim(m.ID.String()))
		}
		for _, edge := range scc.Edges {
			fmt.Fprintf(w, "  %s -> %s %s\n", edge.Source, edge.Target, Dim("("+edge.Reason+")"))
		}
	}
	if len(result.Components) > 0 {
		fmt.Fprintln(w, "reachable:")
		for _, c := range result.Components {
			marker := ""
			if c.Cyclic {
				marker = " " + Warn("cyclic")
			}
			fmt.Fprintf(w, "  [%d] %s%s\n", c.Component, c.Label, marker)
		}
	}
	return nil
}
