package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	clierrors "github.com/ariel-frischer/orchestra/internal/errors"
	"github.com/ariel-frischer/orchestra/internal/history"
)

func newHistoryCmd(opts *Options) *cobra.Command {
	var (
		orchestrationFilter string
		limit               int
		clearAll            bool
	)

	cmd := &cobra.Command{
		Use:     "history",
		Short:   "View command execution history",
		Long:    `View a log of orchestra command executions with timestamp, command name, orchestration, run ID, exit code, and duration.`,
		GroupID: GroupConfiguration,
		Args:    exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 0 {
				return clierrors.NewArgumentError(fmt.Sprintf("limit must be positive, got %d", limit))
			}
			return runHistory(cmd, opts.cfg.StateDir, history.Filter{Orchestration: orchestrationFilter, Limit: limit}, clearAll)
		},
	}
	cmd.Flags().StringVarP(&orchestrationFilter, "orchestration", "o", "", "Filter by orchestration name")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Limit to last N entries (most recent)")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "Clear all history")
	return cmd
}

// runHistory lists or clears the history in stateDir.
func runHistory(cmd *cobra.Command, stateDir string, filter history.Filter, clearAll bool) error {
	out := cmd.OutOrStdout()

	if clearAll {
		if err := history.ClearHistory(stateDir); err != nil {
			return clierrors.WrapWithMessage(err, clierrors.Runtime, "clearing history")
		}
		fmt.Fprintln(out, "History cleared.")
		return nil
	}

	histFile, err := history.LoadHistory(stateDir)
	if err != nil {
		return clierrors.WrapWithMessage(err, clierrors.Runtime, "loading history")
	}

	entries := filter.Apply(histFile.Entries)
	if len(entries) == 0 {
		if filter.Orchestration != "" {
			fmt.Fprintf(out, "No matching entries for orchestration '%s'.\n", filter.Orchestration)
		} else {
			fmt.Fprintln(out, "No history available.")
		}
		return nil
	}

	displayEntries(cmd, entries)
	return nil
}

// displayEntries formats and displays history entries.
func displayEntries(cmd *cobra.Command, entries []history.HistoryEntry) {
	out := cmd.OutOrStdout()

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	for _, entry := range entries {
		timestamp := entry.Timestamp.Format("2006-01-02 15:04:05")

		exitCodeStr := fmt.Sprintf("%d", entry.ExitCode)
		if entry.ExitCode == 0 {
			exitCodeStr = green(exitCodeStr)
		} else {
			exitCodeStr = red(exitCodeStr)
		}

		orch := entry.Orchestration
		if orch == "" {
			orch = "-"
		}
		runID := entry.RunID
		if runID == "" {
			runID = "-"
		}

		fmt.Fprintf(out, "%s  %-10s  %-15s  %-36s  exit=%s  %s\n",
			cyan(timestamp),
			entry.Command,
			orch,
			runID,
			exitCodeStr,
			entry.Duration,
		)
	}
}
