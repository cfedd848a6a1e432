package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/typegraph/internal/queryir"
	"github.com/roach88/typegraph/internal/querysql"
	"github.com/roach88/typegraph/internal/store"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	RunID string // default: latest run
	Limit int
}

// SummaryRow is one stored type summary.
type SummaryRow struct {
	ID           string  `json:"id"`
	Kind         string  `json:"kind"`
	Name         string  `json:"name,omitempty"`
	Unit         string  `json:"unit"`
	AbstractName string  `json:"abstract_name"`
	Code         *uint32 `json:"code"`
	Class        *uint32 `json:"class"`
	SCC          *int    `json:"scc"`
}

// QueryResult holds the rows a filter selected.
type QueryResult struct {
	RunID string       `json:"run_id"`
	Rows  []SummaryRow `json:"rows"`
	Count int          `json:"count"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query [field=value]...",
		Short: "Query the type summaries of a stored run",
		Long: `Select the stored type summaries of an analysis run. All terms must hold.

Fields:
  kind, name, unit, abstract_name   text
  code, class_id, scc_index         integers, or "null"
  complete                          true or false
  node=<id>                         one node ("#0x2d", 0x2d or 45)
  same_class=<id>                   every member of a node's class

Without --run the latest run is queried.

Examples:
  typegraph query kind=struct complete=false
  typegraph query same_class=0x2d --run 0193a5c2-...
  typegraph query abstract_name=__PTR_Node --limit 10 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RunID, "run", "", "run to query (default: latest)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum rows (0 = unlimited)")

	return cmd
}

func runQuery(opts *QueryOptions, terms []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := opts.formatter(cmd)

	filter, err := queryir.ParseFilter(normalizeTerms(terms))
	if err != nil {
		return outputFilterError(formatter, err.Error())
	}
	q := queryir.Select{Filter: filter, Limit: opts.Limit}
	if res := queryir.Validate(q); !res.Valid {
		return outputFilterError(formatter, strings.Join(res.Errors, "; "))
	}

	st, err := openExistingStore(formatter, opts.storePath())
	if err != nil {
		return err
	}
	defer st.Close()

	var run store.Run
	if opts.RunID != "" {
		run, err = st.ReadRun(ctx, opts.RunID)
	} else {
		run, err = st.LatestRun(ctx)
	}
	if err != nil {
		return outputStoreError(formatter, err)
	}
	formatter.VerboseLog("Querying run #%d %s", run.Seq, run.ID)

	sql, params, err := querysql.NewSQLCompiler(run.ID).Compile(q)
	if err != nil {
		return outputFilterError(formatter, err.Error())
	}
	records, err := st.FindSummaries(ctx, sql, params...)
	if err != nil {
		return outputStoreError(formatter, err)
	}

	result := QueryResult{RunID: run.ID, Rows: make([]SummaryRow, 0, len(records)), Count: len(records)}
	for _, rec := range records {
		result.Rows = append(result.Rows, newSummaryRow(rec))
	}
	return outputQueryResult(formatter, result)
}

// normalizeTerms accepts node IDs in their printed "#0x..." form.
func normalizeTerms(terms []string) []string {
	out := make([]string, len(terms))
	for i, term := range terms {
		name, value, ok := strings.Cut(term, "=")
		if ok && (name == "node" || name == "same_class") {
			term = name + "=" + strings.TrimPrefix(value, "#")
		}
		out[i] = term
	}
	return out
}

func newSummaryRow(rec store.NodeRecord) SummaryRow {
	row := SummaryRow{
		ID:           rec.ID.String(),
		Kind:         rec.Kind.String(),
		Name:         rec.Name,
		Unit:         rec.Unit,
		AbstractName: rec.AbstractName,
		SCC:          rec.SCC,
	}
	if rec.Complete {
		code := rec.Code
		row.Code = &code
	}
	if rec.Class != nil {
		class := uint32(*rec.Class)
		row.Class = &class
	}
	return row
}

func outputFilterError(formatter *OutputFormatter, message string) error {
	_ = formatter.Error(ErrCodeBadFilter, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", ErrCodeBadFilter, message))
}

func outputQueryResult(formatter *OutputFormatter, result QueryResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	for _, r := range result.Rows {
		name := r.Name
		if name == "" {
			name = "<anonymous>"
		}
		scc := "-"
		if r.SCC != nil {
			scc = fmt.Sprint(*r.SCC)
		}
		class := "-"
		if r.Class != nil {
			class = fmt.Sprint(*r.Class)
		}
		fmt.Fprintf(w, "%s %s:%s %s abstract=%q code=%s class=%s scc=%s\n",
			Dim(r.ID), r.Unit, name, r.Kind, r.AbstractName, formatCode(r.Code), class, scc)
	}
	fmt.Fprintf(w, "%d row(s)\n", result.Count)
	return nil
}
