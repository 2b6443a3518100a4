package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scenevibe/internal/deps"
	"scenevibe/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, external tools, and the inference API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			statuses := preflight.CheckSystemDeps(cfg)
			failed := len(preflight.Failed(results)) + len(deps.Missing(statuses))

			if ctx.jsonMode(cmd) {
				if err := writeJSON(cmd, map[string]any{
					"checks":       results,
					"dependencies": statuses,
				}); err != nil {
					return err
				}
			} else {
				printDoctor(cmd, results, statuses)
			}

			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
}

func printDoctor(cmd *cobra.Command, results []preflight.Result, statuses []deps.Status) {
	out := cmd.OutOrStdout()
	rows := make([][]string, 0, len(results))
	for _, result := range results {
		rows = append(rows, []string{result.Name, passLabel(result.Passed), result.Detail})
	}
	fmt.Fprint(out, renderTable([]string{"Check", "Result", "Detail"}, rows, nil, 80))

	rows = rows[:0]
	for _, status := range statuses {
		state := passLabel(status.Available)
		if !status.Available && status.Optional {
			state = "optional"
		}
		rows = append(rows, []string{status.Name, status.Command, state, status.Detail})
	}
	fmt.Fprintln(out)
	fmt.Fprint(out, renderTable([]string{"Tool", "Command", "Result", "Detail"}, rows, nil, 80))
}

func passLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "FAIL"
}
