package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/abdul-hamid-achik/apicheck/packages/history"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded runs from a history database",
	Long: `Query the SQLite database written by "apicheck run --history".

Examples:
  apicheck history --db runs.db
  apicheck history --db runs.db --suite brewery --limit 5
  apicheck history --db runs.db --suite jsonplaceholder --case "get_post[id=1]"
  apicheck history --db runs.db --flaky 10
  apicheck history --db runs.db --prune 50`,
	Args: cobra.NoArgs,
	RunE: historyCommand,
}

var (
	historyDBFlag    string
	historySuiteFlag string
	historyCaseFlag  string
	historyLimitFlag int
	historyFlakyFlag int
	historyPruneFlag int
)

func init() {
	historyCmd.Flags().StringVar(&historyDBFlag, "db", getEnvString("APICHECK_HISTORY", ""), "History database path (env: APICHECK_HISTORY)")
	historyCmd.Flags().StringVar(&historySuiteFlag, "suite", "", "Only show runs of this suite")
	historyCmd.Flags().StringVar(&historyCaseFlag, "case", "", "Show the outcomes of one case id")
	historyCmd.Flags().IntVar(&historyLimitFlag, "limit", 20, "Maximum number of rows")
	historyCmd.Flags().IntVar(&historyFlakyFlag, "flaky", 0, "List cases that both passed and failed in the last N runs")
	historyCmd.Flags().IntVar(&historyPruneFlag, "prune", 0, "Delete all but the newest N runs of each suite")
}

func historyCommand(cmd *cobra.Command, args []string) error {
	path := historyDBFlag
	if path == "" {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		path = cfg.History
	}
	if path == "" {
		return withCode(ExitUsageError, fmt.Errorf("no history database (use --db or set history in the config file)"))
	}

	store, err := history.Open(path)
	if err != nil {
		return withCode(ExitConfigError, err)
	}
	defer store.Close()

	ctx := context.Background()
	out := cmd.OutOrStdout()

	switch {
	case historyPruneFlag > 0:
		removed, err := store.Prune(ctx, historyPruneFlag)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Removed %d run(s)\n", removed)
		return nil

	case historyFlakyFlag > 0:
		flakes, err := store.Flaky(ctx, historySuiteFlag, historyFlakyFlag)
		if err != nil {
			return err
		}
		if len(flakes) == 0 {
			fmt.Fprintln(out, "No flaky cases")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CASE\tPASSED\tFAILED")
		for _, f := range flakes {
			fmt.Fprintf(tw, "%s\t%d\t%d\n", f.CaseID, f.Passed, f.Failed)
		}
		return tw.Flush()

	case historyCaseFlag != "":
		runs, err := store.CaseHistory(ctx, historySuiteFlag, historyCaseFlag, historyLimitFlag)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN\tSTARTED\tSUITE\tOUTCOME\tSTATUS\tTIME\tMESSAGE")
		for _, r := range runs {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n",
				r.RunID, r.StartedAt.Local().Format(time.DateTime), r.Suite, r.Outcome,
				r.StatusCode, r.ResponseTime.Round(time.Millisecond), r.Message)
		}
		return tw.Flush()

	default:
		runs, err := store.Recent(ctx, historySuiteFlag, historyLimitFlag)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN\tSTARTED\tSUITE\tPASSED\tFAILED\tSKIPPED\tDURATION\tP95")
		for _, r := range runs {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
				r.ID, r.StartedAt.Local().Format(time.DateTime), r.Suite, r.Passed, r.Failed, r.Skipped,
				r.Duration.Round(time.Millisecond), r.P95.Round(time.Millisecond))
		}
		return tw.Flush()
	}
}
