package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yaroslav/nnctl/internal/namenode"
)

var (
	historyAction string
	historyLimit  int
	historyPrune  time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded lifecycle actions",
	Long: `List the actions recorded in the local history journal, newest first.

With --prune-older-than, entries older than the given age are deleted first.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyAction, "action", "", "Only show this action")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of entries")
	historyCmd.Flags().DurationVar(&historyPrune, "prune-older-than", 0,
		"Delete entries older than this age (e.g. 720h)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if a.journal == nil {
		return fmt.Errorf("%w: history.path is not configured", namenode.ErrConfiguration)
	}

	ctx := cmd.Context()
	if historyPrune > 0 {
		if _, err := a.journal.Prune(ctx, time.Now().Add(-historyPrune)); err != nil {
			return err
		}
	}

	entries, err := a.journal.List(ctx, historyAction, historyLimit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tACTION\tUPGRADE\tRESULT\tDURATION\tINVOCATION\tERROR")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.StartedAt.Local().Format(time.RFC3339), e.Action, e.UpgradeType, e.Result,
			e.Duration.Round(time.Millisecond), e.InvocationID, e.Error)
	}
	return w.Flush()
}
