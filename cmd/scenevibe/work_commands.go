package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"scenevibe/internal/staging"
)

func newWorkCommand(ctx *commandContext) *cobra.Command {
	workCmd := &cobra.Command{
		Use:   "work",
		Short: "Manage frame and upload directories in the work directory",
	}

	workCmd.AddCommand(newWorkListCommand(ctx))
	workCmd.AddCommand(newWorkCleanCommand(ctx))

	return workCmd
}

func newWorkListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List work directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dirs, err := staging.ListDirectories(cfg.Paths.WorkDir)
			if err != nil {
				return fmt.Errorf("list work directories: %w", err)
			}
			var totalSize int64
			for _, dir := range dirs {
				totalSize += dir.Size
			}

			if ctx.jsonMode(cmd) {
				if dirs == nil {
					dirs = []staging.DirInfo{}
				}
				return writeJSON(cmd, map[string]any{
					"work_dir":         cfg.Paths.WorkDir,
					"directories":      dirs,
					"total_size_bytes": totalSize,
				})
			}

			out := cmd.OutOrStdout()
			if len(dirs) == 0 {
				fmt.Fprintln(out, "No work directories found")
				return nil
			}
			fmt.Fprintf(out, "Work directory: %s\n\n", cfg.Paths.WorkDir)
			rows := make([][]string, 0, len(dirs))
			for _, dir := range dirs {
				rows = append(rows, []string{
					dir.Name,
					formatAge(time.Since(dir.ModTime)),
					strconv.Itoa(dir.Files),
					humanize.IBytes(uint64(dir.Size)),
				})
			}
			fmt.Fprint(out, renderTable(
				[]string{"Directory", "Age", "Files", "Size"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
				0,
			))
			fmt.Fprintf(out, "\nTotal: %d directories, %s\n", len(dirs), humanize.IBytes(uint64(totalSize)))
			return nil
		},
	}
}

func newWorkCleanCommand(ctx *commandContext) *cobra.Command {
	var maxAge time.Duration
	var cleanAll bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove stale work directories",
		Long: `Remove frame and upload directories older than --max-age (default: the
configured stale_work_hours). Use --all to remove every managed directory.
Directories not created by scenevibe are never touched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			age := maxAge
			if !cmd.Flags().Changed("max-age") {
				age = time.Duration(cfg.Paths.StaleWorkHours) * time.Hour
			}
			if cleanAll {
				age = 0
			}

			result := staging.CleanStale(cmd.Context(), cfg.Paths.WorkDir, age, nil)
			if ctx.jsonMode(cmd) {
				errs := make([]string, 0, len(result.Errors))
				for _, e := range result.Errors {
					errs = append(errs, fmt.Sprintf("%s: %v", e.Path, e.Error))
				}
				return writeJSON(cmd, map[string]any{
					"removed": len(result.Removed),
					"errors":  errs,
				})
			}

			out := cmd.OutOrStdout()
			switch {
			case len(result.Removed) == 0 && len(result.Errors) == 0:
				fmt.Fprintln(out, "No work directories to clean")
			case len(result.Errors) > 0:
				fmt.Fprintf(out, "Removed %d work directories, %d errors\n", len(result.Removed), len(result.Errors))
				for _, e := range result.Errors {
					fmt.Fprintf(out, "  Error: %s: %v\n", e.Path, e.Error)
				}
			default:
				fmt.Fprintf(out, "Removed %d work directories\n", len(result.Removed))
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "Remove directories older than this")
	cmd.Flags().BoolVar(&cleanAll, "all", false, "Remove every managed work directory")
	return cmd
}
