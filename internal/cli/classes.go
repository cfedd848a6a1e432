package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/typegraph/internal/engine"
)

// ClassesOptions holds flags for the classes command.
type ClassesOptions struct {
	*RootOptions
	MinSize int
	Jobs    int
}

// ClassInfo describes one equivalence class.
type ClassInfo struct {
	ID             engine.ClassID `json:"id"`
	Code           *uint32        `json:"code"` // null when the members are incomplete
	Representative NodeRef        `json:"representative"`
	Aliases        []NodeRef      `json:"aliases"`
}

// ClassesResult holds the deduplication report.
type ClassesResult struct {
	Nodes      int         `json:"nodes"`
	Classes    int         `json:"classes"`
	Duplicates int         `json:"duplicates"`
	Shown      []ClassInfo `json:"shown"`
	Stats      StatsOutput `json:"stats"`
}

// NewClassesCommand creates the classes command.
func NewClassesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClassesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "classes <input>...",
		Short: "Group structurally equal types",
		Long: `Partition every type of a graph into classes of structurally equal
types and report the classes with at least --min-size members.

Each class is shown with its representative, the member with the lowest
node ID, followed by the other members. Duplicates are the types a
deduplicating writer could replace by their representative.

Examples:
  typegraph classes lib1.so lib2.so
  typegraph classes list.cue --min-size 1 --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClasses(opts, args, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.MinSize, "min-size", 2, "only show classes with at least this many members")
	cmd.Flags().IntVar(&opts.Jobs, "jobs", 0, "binaries decoded in parallel (default from analysis.jobs)")

	return cmd
}

func runClasses(opts *ClassesOptions, inputs []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	lr, err := opts.load(cmd, formatter, inputs, opts.Jobs)
	if err != nil {
		return err
	}

	e := engine.New(lr.Graph, engine.WithLogger(opts.logger()))
	e.Classify(lr.Graph.IDs())
	classes := e.Classes()

	result := ClassesResult{
		Nodes:   lr.Graph.Len(),
		Classes: len(classes),
		Shown:   []ClassInfo{},
		Stats:   newStatsOutput(e.Stats()),
	}
	for _, c := range classes {
		result.Duplicates += len(c.Members) - 1
		if len(c.Members) < opts.MinSize {
			continue
		}
		info := ClassInfo{
			ID:             c.ID,
			Representative: NodeRef{ID: c.Representative(), Label: lr.Label(c.Representative())},
			Aliases:        []NodeRef{},
		}
		if c.Complete {
			code := c.Code
			info.Code = &code
		}
		for _, id := range c.Members[1:] {
			info.Aliases = append(info.Aliases, NodeRef{ID: id, Label: lr.Label(id)})
		}
		result.Shown = append(result.Shown, info)
	}

	return outputClassesResult(formatter, result)
}

func outputClassesResult(formatter *OutputFormatter, result ClassesResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "%d node(s) in %d class(es), %d duplicate(s)\n", result.Nodes, result.Classes, result.Duplicates)
	for _, c := range result.Shown {
		fmt.Fprintf(w, "\nclass %d code=%s (%d member(s))\n", c.ID, formatCode(c.Code), len(c.Aliases)+1)
		fmt.Fprintf(w, "  %s %s\n", c.Representative.Label, Dim(c.Representative.ID.String()))
		for _, a := range c.Aliases {
			fmt.Fprintf(w, "  = %s %s\n", a.Label, Dim(a.ID.String()))
		}
	}
	formatter.VerboseLog("compared %d step(s), %d cache hit(s)", result.Stats.Comparisons, result.Stats.CacheHits)
	return nil
}
