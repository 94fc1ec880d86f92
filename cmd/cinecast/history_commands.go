package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"cinecast/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past generation runs",
	}
	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	return historyCmd
}

func (c *commandContext) openJournal() (*history.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return history.Open(cfg.HistoryDBPath())
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent generation runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			journal, err := ctx.openJournal()
			if err != nil {
				return err
			}
			defer journal.Close()

			runs, err := journal.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				finished := run.FinishedAt
				if finished == "" {
					finished = "(running)"
				}
				rows = append(rows, []string{
					shortRunID(run.ID),
					run.Mode,
					strconv.Itoa(run.Total),
					strconv.Itoa(run.Completed),
					strconv.Itoa(run.Failed),
					run.StartedAt,
					finished,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Run", "Mode", "Total", "Done", "Failed", "Started", "Finished"}, rows))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list")
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show every chunk outcome for a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			journal, err := ctx.openJournal()
			if err != nil {
				return err
			}
			defer journal.Close()

			runID, err := resolveRunID(cmd, journal, args[0])
			if err != nil {
				return err
			}
			events, err := journal.RunChunks(cmd.Context(), runID)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No chunk outcomes recorded for run %s\n", runID)
				return nil
			}

			rows := make([][]string, 0, len(events))
			for _, event := range events {
				rows = append(rows, []string{
					strconv.Itoa(event.ChunkID),
					event.Status,
					event.Detail,
					event.RecordedAt,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Chunk", "Status", "Detail", "Recorded"}, rows))
			return nil
		},
	}
}

// resolveRunID accepts either a full run id or a unique prefix.
func resolveRunID(cmd *cobra.Command, journal *history.Store, arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	runs, err := journal.Runs(cmd.Context(), 1000)
	if err != nil {
		return "", err
	}
	var matches []string
	for _, run := range runs {
		if run.ID == arg {
			return run.ID, nil
		}
		if strings.HasPrefix(run.ID, arg) {
			matches = append(matches, run.ID)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", fmt.Errorf("no run matches %q", arg)
	default:
		return "", fmt.Errorf("run id %q is ambiguous (%d matches)", arg, len(matches))
	}
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
