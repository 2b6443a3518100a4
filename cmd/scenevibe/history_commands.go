package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"scenevibe/internal/history"
	"scenevibe/internal/textutil"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded workflow runs",
	}

	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryPruneCommand(ctx))

	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var kind string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			store, err := ctx.openHistory(cmd)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			runs, err := store.List(cmd.Context(), history.ListOptions{
				Kind:  history.Kind(strings.TrimSpace(kind)),
				Limit: limit,
			})
			if err != nil {
				return err
			}
			if ctx.jsonMode(cmd) {
				if runs == nil {
					runs = []*history.Run{}
				}
				return writeJSON(cmd, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.ID,
					string(run.Kind),
					textutil.Truncate(run.Subject, 32),
					string(run.Status),
					strconv.Itoa(run.Items),
					strconv.Itoa(run.FellBack),
					run.Duration().Round(time.Millisecond).String(),
					formatTimestamp(run.StartedAt),
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Kind", "Subject", "Status", "Items", "Fallback", "Took", "Started"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
				0,
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Only show runs of this kind (analyze, image_prompts, video_prompt, vibe_extraction)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to show")
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			store, err := ctx.openHistory(cmd)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			run, err := store.Get(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			if ctx.jsonMode(cmd) {
				return writeJSON(cmd, run)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:        %s\n", run.ID)
			fmt.Fprintf(out, "Kind:      %s\n", run.Kind)
			fmt.Fprintf(out, "Status:    %s\n", run.Status)
			if run.Subject != "" {
				fmt.Fprintf(out, "Subject:   %s\n", run.Subject)
			}
			if run.RequestID != "" {
				fmt.Fprintf(out, "Request:   %s\n", run.RequestID)
			}
			fmt.Fprintf(out, "Items:     %d (%d fallback, %d circuit rejections)\n", run.Items, run.FellBack, run.CircuitRejections)
			fmt.Fprintf(out, "Started:   %s\n", formatTimestamp(run.StartedAt))
			fmt.Fprintf(out, "Took:      %s\n", run.Duration().Round(time.Millisecond))
			if run.ErrorMessage != "" {
				fmt.Fprintf(out, "Error:     %s\n", run.ErrorMessage)
			}
			return nil
		},
	}
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			if olderThan <= 0 {
				return errors.New("--older-than must be positive")
			}
			store, err := ctx.openHistory(cmd)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			removed, err := store.Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			if ctx.jsonMode(cmd) {
				return writeJSON(cmd, map[string]any{"removed": removed})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d runs\n", removed)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Remove runs that started before now minus this duration")
	return cmd
}
