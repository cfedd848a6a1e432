package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/typegraph/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	GraphHash string // optional - runs of one graph only
	Show      string // run ID to describe
	Delete    string // run ID to delete
}

// RunInfo is one stored analysis run.
type RunInfo struct {
	ID            string      `json:"id"`
	Seq           int64       `json:"seq"`
	GraphHash     string      `json:"graph_hash"`
	Source        string      `json:"source"`
	NodeCount     int         `json:"node_count"`
	EngineVersion string      `json:"engine_version"`
	IRVersion     string      `json:"ir_version"`
	Stats         StatsOutput `json:"stats"`
}

// RunDetail describes one run together with what it stored.
type RunDetail struct {
	RunInfo
	Classes    int `json:"classes"`
	Duplicates int `json:"duplicates"`
	SCCs       int `json:"sccs"`
	Incomplete int `json:"incomplete"`
}

// RunsResult holds the runs listing.
type RunsResult struct {
	Runs  []RunInfo `json:"runs"`
	Total int       `json:"total"`
}

func newRunInfo(r store.Run) RunInfo {
	return RunInfo{
		ID:            r.ID,
		Seq:           r.Seq,
		GraphHash:     r.GraphHash,
		Source:        r.Source,
		NodeCount:     r.NodeCount,
		EngineVersion: r.EngineVersion,
		IRVersion:     r.IRVersion,
		Stats: StatsOutput{
			Comparisons:    r.Comparisons,
			CacheHits:      r.CacheHits,
			CacheMisses:    r.CacheMisses,
			MaxAssumptions: r.MaxAssumptions,
		},
	}
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored analysis runs",
		Long: `List the analysis runs stored in the database, oldest first.

Runs of the same graph share a graph hash; --hash lists only those.
--show describes one run and --delete removes one with everything it
stored.

Exit codes:
  0 - Success
  2 - Command error (database not found, unknown run, etc.)

Examples:
  typegraph runs --db ./types.db
  typegraph runs --hash 5f0c... --format json
  typegraph runs --show 0193a5c2-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.GraphHash, "hash", "", "list only runs of this graph hash")
	cmd.Flags().StringVar(&opts.Show, "show", "", "describe one run")
	cmd.Flags().StringVar(&opts.Delete, "delete", "", "delete one run")
	cmd.MarkFlagsMutuallyExclusive("hash", "show", "delete")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := opts.formatter(cmd)

	st, err := openExistingStore(formatter, opts.storePath())
	if err != nil {
		return err
	}
	defer st.Close()

	switch {
	case opts.Show != "":
		detail, err := describeRun(ctx, st, opts.Show)
		if err != nil {
			return outputStoreError(formatter, err)
		}
		return outputRunDetail(formatter, detail)

	case opts.Delete != "":
		if _, err := st.ReadRun(ctx, opts.Delete); err != nil {
			return outputStoreError(formatter, err)
		}
		if err := st.DeleteRun(ctx, opts.Delete); err != nil {
			return outputStoreError(formatter, err)
		}
		if formatter.Format == "json" {
			return formatter.Success(map[string]string{"deleted": opts.Delete})
		}
		fmt.Fprintf(formatter.Writer, "%s Deleted run %s\n", Good("✓"), opts.Delete)
		return nil
	}

	var runs []store.Run
	if opts.GraphHash != "" {
		runs, err = st.FindRunsByGraphHash(ctx, opts.GraphHash)
	} else {
		runs, err = st.ListRuns(ctx)
	}
	if err != nil {
		return outputStoreError(formatter, err)
	}

	result := RunsResult{Runs: make([]RunInfo, 0, len(runs)), Total: len(runs)}
	for _, r := range runs {
		result.Runs = append(result.Runs, newRunInfo(r))
	}
	return outputRunsResult(formatter, result)
}

func describeRun(ctx context.Context, st *store.Store, id string) (RunDetail, error) {
	run, err := st.ReadRun(ctx, id)
	if err != nil {
		return RunDetail{}, err
	}
	detail := RunDetail{RunInfo: newRunInfo(run)}

	classes, err := st.ReadClasses(ctx, id)
	if err != nil {
		return RunDetail{}, err
	}
	detail.Classes = len(classes)
	for _, c := range classes {
		detail.Duplicates += len(c.Members) - 1
	}

	sccs, err := st.ReadSCCs(ctx, id)
	if err != nil {
		return RunDetail{}, err
	}
	detail.SCCs = len(sccs)

	nodes, err := st.ReadSummaries(ctx, id)
	if err != nil {
		return RunDetail{}, err
	}
	for _, n := range nodes {
		if !n.Complete {
			detail.Incomplete++
		}
	}
	return detail, nil
}

// openExistingStore opens the database at path, refusing to create one.
func openExistingStore(formatter *OutputFormatter, path string) (*store.Store, error) {
	if path != ":memory:" {
		if _, err := os.Stat(path); err != nil {
			msg := fmt.Sprintf("database not found: %s", path)
			_ = formatter.Error(ErrCodeNotFound, msg, nil)
			return nil, NewExitError(ExitCommandError, msg)
		}
	}
	st, err := store.Open(path)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// outputStoreError reports a store failure. An unknown run gets its own
// error code.
func outputStoreError(formatter *OutputFormatter, err error) error {
	code := ErrCodeStore
	if errors.Is(err, store.ErrRunNotFound) {
		code = ErrCodeRunNotFound
	}
	_ = formatter.Error(code, err.Error(), nil)
	return WrapExitError(ExitCommandError, code, err)
}

func outputRunsResult(formatter *OutputFormatter, result RunsResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	if result.Total == 0 {
		fmt.Fprintln(w, "No runs stored")
		return nil
	}
	fmt.Fprintf(w, "%d run(s)\n\n", result.Total)
	for _, r := range result.Runs {
		fmt.Fprintf(w, "  #%d %s %s\n", r.Seq, r.ID, Dim(shortHash(r.GraphHash)))
		fmt.Fprintf(w, "     %s, %d node(s)\n", r.Source, r.NodeCount)
	}
	return nil
}

func outputRunDetail(formatter *OutputFormatter, d RunDetail) error {
	if formatter.Format == "json" {
		return formatter.Success(d)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Run #%d %s\n", d.Seq, d.ID)
	fmt.Fprintf(w, "  source:     %s\n", d.Source)
	fmt.Fprintf(w, "  graph:      %s\n", d.GraphHash)
	fmt.Fprintf(w, "  versions:   engine %s, ir %s\n", d.EngineVersion, d.IRVersion)
	fmt.Fprintf(w, "  nodes:      %d (%d incomplete)\n", d.NodeCount, d.Incomplete)
	fmt.Fprintf(w, "  classes:    %d (%d duplicate node(s))\n", d.Classes, d.Duplicates)
	fmt.Fprintf(w, "  sccs:       %d\n", d.SCCs)
	fmt.Fprintf(w, "  compared:   %d step(s), %d cache hit(s), %d miss(es), max %d assumption(s)\n",
		d.Stats.Comparisons, d.Stats.CacheHits, d.Stats.CacheMisses, d.Stats.MaxAssumptions)
	return nil
}

// shortHash truncates a graph hash for display.
func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
