package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"scenevibe/internal/timeline"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var threshold float64
	var name string
	var cleanup bool

	cmd := &cobra.Command{
		Use:   "analyze VIDEO",
		Short: "Detect scenes and print the edit manifest",
		Long: `Detect scene changes in VIDEO, extract one frame per scene, and print the
edit manifest. Extracted frames stay in the work directory so the manifest can
be passed to image-prompts; use --cleanup to remove them after printing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			application, err := ctx.ensureApp(cmd)
			if err != nil {
				return err
			}
			video := args[0]
			if _, err := os.Stat(video); err != nil {
				return fmt.Errorf("video %s: %w", video, err)
			}
			if !cmd.Flags().Changed("threshold") {
				threshold = application.Config().Scenes.Threshold
			}

			manifest, err := application.Analyze(cmd.Context(), video, name, threshold)
			if err != nil {
				return err
			}
			if cleanup {
				defer func() { _ = manifest.Cleanup() }()
			}

			if ctx.jsonMode(cmd) {
				return writeJSON(cmd, manifest)
			}
			printManifest(cmd, manifest, application.Config().Scenes.FPS)
			return nil
		},
	}

	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 0, "Scene detection sensitivity 0-100 (default from config)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Manifest name (default: video file name)")
	cmd.Flags().BoolVar(&cleanup, "cleanup", false, "Remove extracted frames after printing")
	return cmd
}

func printManifest(cmd *cobra.Command, manifest *timeline.Manifest, fps int) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Manifest: %s\n", manifest.Name)
	fmt.Fprintf(out, "Frames: %s\n\n", manifest.TempDir)

	rows := make([][]string, 0, len(manifest.Scenes))
	for i, scene := range manifest.Scenes {
		duration, seconds := "", ""
		if i < len(manifest.Clips) {
			duration = manifest.Clips[i].Duration.String()
			seconds = strconv.FormatFloat(manifest.Clips[i].Duration.Decode(fps), 'f', 2, 64)
		}
		rows = append(rows, []string{
			strconv.Itoa(scene.Index),
			duration,
			seconds,
			scene.FramePath,
		})
	}
	fmt.Fprint(out, renderTable(
		[]string{"Scene", "Duration", "Seconds", "Frame"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignLeft},
		0,
	))
	fmt.Fprintf(out, "\nFade in %s, fade out %s, music %s\n",
		manifest.FadeInDuration, manifest.FadeOutDuration, manifest.MusicFile)
}
