package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/typegraph/internal/compiler"
	"github.com/roach88/typegraph/internal/engine"
	"github.com/roach88/typegraph/internal/ir"
	"github.com/roach88/typegraph/internal/store"
)

// AnalyzeOptions holds flags for the analyze command.
type AnalyzeOptions struct {
	*RootOptions
	NoStore bool
	Strict  bool
	Jobs    int
}

// AnalyzeResult summarises one analysis run.
type AnalyzeResult struct {
	RunID      string                  `json:"run_id,omitempty"`
	Seq        int64                   `json:"seq,omitempty"`
	GraphHash  string                  `json:"graph_hash"`
	Source     string                  `json:"source"`
	Nodes      int                     `json:"nodes"`
	Units      int                     `json:"units"`
	Classes    int                     `json:"classes"`
	Duplicates int                     `json:"duplicates"` // nodes equal to a lower-numbered node
	SCCs       int                     `json:"sccs"`
	Incomplete int                     `json:"incomplete"`
	Warnings   []compiler.CycleWarning `json:"warnings,omitempty"`
	Stats      StatsOutput             `json:"stats"`
}

// StatsOutput is the JSON form of engine.Stats.
type StatsOutput struct {
	Comparisons    int `json:"comparisons"`
	CacheHits      int `json:"cache_hits"`
	CacheMisses    int `json:"cache_misses"`
	MaxAssumptions int `json:"max_assumptions"`
}

func newStatsOutput(s engine.Stats) StatsOutput {
	return StatsOutput{
		Comparisons:    s.Comparisons,
		CacheHits:      s.CacheHits,
		CacheMisses:    s.CacheMisses,
		MaxAssumptions: s.MaxAssumptions,
	}
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnalyzeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "analyze <input>...",
		Short: "Analyse a type graph and store the results",
		Long: `Analyse every type of a graph and store the results as a new run.

Inputs are CUE type-graph descriptions (one file, several files or a
directory) or ELF / Mach-O binaries with DWARF debug info. The graph is
validated first. Every node then gets its summary code, abstract name,
cyclic component and equivalence class, and the run is written to the
SQLite database for later "query" and "runs" commands.

Examples:
  typegraph analyze ./build/app
  typegraph analyze lib1.so lib2.so --db ./types.db
  typegraph analyze types.cue --no-store --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.NoStore, "no-store", false, "analyse without writing a run to the database")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "fail on pointer-loop warnings (default from analysis.strict)")
	cmd.Flags().IntVar(&opts.Jobs, "jobs", 0, "binaries decoded in parallel (default from analysis.jobs)")

	return cmd
}

func runAnalyze(opts *AnalyzeOptions, inputs []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger()

	lr, err := opts.load(cmd, formatter, inputs, opts.Jobs)
	if err != nil {
		return err
	}

	check := checkGraph(lr.Graph, opts.Strict || opts.config().Analysis.Strict)
	if !check.Valid {
		return outputValidationFailure(formatter, lr, check)
	}

	e := engine.New(lr.Graph, engine.WithLogger(logger))
	snap, err := capture(lr, e)
	if err != nil {
		_ = formatter.Error(ErrCodeInvariant, err.Error(), nil)
		return WrapExitError(ExitCommandError, "analysis failed", err)
	}

	result := AnalyzeResult{
		GraphHash: snap.GraphHash,
		Source:    snap.Source,
		Nodes:     snap.NodeCount,
		Units:     len(lr.Graph.Units()),
		Classes:   len(snap.Classes),
		SCCs:      len(snap.SCCs),
		Warnings:  check.Cycles,
		Stats:     newStatsOutput(snap.Stats),
	}
	for _, c := range snap.Classes {
		result.Duplicates += len(c.Members) - 1
	}
	for _, n := range snap.Nodes {
		if !n.Complete {
			result.Incomplete++
		}
	}

	if !opts.NoStore {
		run, err := writeRun(cmd.Context(), opts.storePath(), snap)
		if err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to store run", err)
		}
		result.RunID, result.Seq = run.ID, run.Seq
		logger.Info("run stored", "run", run.ID, "seq", run.Seq, "db", opts.storePath())
	}

	return outputAnalyzeResult(formatter, lr, result)
}

// capture runs the full analysis. An engine invariant violation is
// returned as an error.
func capture(lr *LoadResult, e *engine.Engine) (snap store.Snapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			ie, ok := engine.AsInvariantError(r)
			if !ok {
				panic(r)
			}
			err = ie
		}
	}()
	return store.Capture(lr.Graph, e, lr.Source)
}

func writeRun(ctx context.Context, path string, snap store.Snapshot) (store.Run, error) {
	st, err := store.Open(path)
	if err != nil {
		return store.Run{}, err
	}
	defer st.Close()
	return st.WriteRun(ctx, snap)
}

func outputAnalyzeResult(formatter *OutputFormatter, lr *LoadResult, result AnalyzeResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "%s Analysed %d node(s) in %d unit(s)\n", Good("✓"), result.Nodes, result.Units)
	fmt.Fprintf(w, "  graph:      %s\n", result.GraphHash)
	fmt.Fprintf(w, "  classes:    %d (%d duplicate node(s))\n", result.Classes, result.Duplicates)
	fmt.Fprintf(w, "  sccs:       %d\n", result.SCCs)
	fmt.Fprintf(w, "  incomplete: %d\n", result.Incomplete)
	fmt.Fprintf(w, "  compared:   %d step(s), %d cache hit(s), %d miss(es)\n",
		result.Stats.Comparisons, result.Stats.CacheHits, result.Stats.CacheMisses)
	if result.RunID != "" {
		fmt.Fprintf(w, "  run:        %s (#%d)\n", result.RunID, result.Seq)
	}
	for _, c := range result.Warnings {
		fmt.Fprintf(w, "  %s %s: %s\n", Warn("warning"), lr.Label(firstNode(c.Nodes)), c.Message)
	}
	return nil
}

func firstNode(ids []ir.NodeID) ir.NodeID {
	if len(ids) == 0 {
		return ir.NoNode
	}
	return ids[0]
}
