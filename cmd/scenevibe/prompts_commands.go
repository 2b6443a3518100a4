package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"scenevibe/internal/app"
	"scenevibe/internal/prompts"
)

func newImagePromptsCommand(ctx *commandContext) *cobra.Command {
	var apiKey string

	cmd := &cobra.Command{
		Use:   "image-prompts MANIFEST",
		Short: "Describe every scene frame of a manifest",
		Long: `Generate one image prompt per scene. MANIFEST is a JSON file holding either
the manifest printed by analyze or a bare array of scenes with frame_path or
frame_preview fields. Frames that cannot be described get a placeholder.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			frames, err := readFrames(args[0])
			if err != nil {
				return err
			}
			application, err := ctx.ensureApp(cmd)
			if err != nil {
				return err
			}
			out, report, err := application.ImagePrompts(cmd.Context(), apiKey, frames)
			if err != nil {
				return err
			}
			if report.FellBack > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %d of %d frames used placeholder prompts\n", report.FellBack, report.Total)
			}
			if ctx.jsonMode(cmd) {
				return writeJSON(cmd, map[string]any{
					"image_prompts": out,
					"fell_back":     report.FellBack,
				})
			}
			rows := make([][]string, 0, len(out))
			for i, prompt := range out {
				rows = append(rows, []string{strconv.Itoa(i + 1), prompt})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(
				[]string{"Scene", "Prompt"},
				rows,
				[]columnAlignment{alignRight, alignLeft},
				100,
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "Inference API key (default from config)")
	return cmd
}

func newVideoPromptCommand(ctx *commandContext) *cobra.Command {
	var apiKey string
	var fromFile string

	cmd := &cobra.Command{
		Use:   "video-prompt [IMAGE_PROMPT...]",
		Short: "Condense image prompts into one video prompt",
		Long: `Condense image prompts into a single video prompt. Prompts come from the
arguments or from --from, a JSON file holding the image-prompts output or a
bare array of strings. When the service is unavailable the prompts are joined
locally and a warning is printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			imagePrompts := args
			if strings.TrimSpace(fromFile) != "" {
				loaded, err := readImagePrompts(fromFile)
				if err != nil {
					return err
				}
				imagePrompts = append(loaded, args...)
			}
			application, err := ctx.ensureApp(cmd)
			if err != nil {
				return err
			}
			prompt, fallback, err := application.VideoPrompt(cmd.Context(), apiKey, imagePrompts)
			if err != nil {
				return err
			}
			if fallback {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", prompts.FallbackWarning)
			}
			if ctx.jsonMode(cmd) {
				resp := map[string]any{"video_prompt": prompt}
				if fallback {
					resp["warning"] = prompts.FallbackWarning
				}
				return writeJSON(cmd, resp)
			}
			fmt.Fprintln(cmd.OutOrStdout(), prompt)
			return nil
		},
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "Inference API key (default from config)")
	cmd.Flags().StringVar(&fromFile, "from", "", "JSON file with image prompts")
	return cmd
}

func newVibeCommand(ctx *commandContext) *cobra.Command {
	var apiKey string

	cmd := &cobra.Command{
		Use:   "vibe VIDEO",
		Short: "Extract the visual style of a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			video, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read video: %w", err)
			}
			application, err := ctx.ensureApp(cmd)
			if err != nil {
				return err
			}
			text, err := application.Vibe(cmd.Context(), apiKey, filepath.Base(args[0]), video, app.VideoMIME(args[0]))
			if err != nil {
				return err
			}
			if ctx.jsonMode(cmd) {
				return writeJSON(cmd, map[string]any{"vibe_extraction": text})
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "Inference API key (default from config)")
	return cmd
}

func readFrames(path string) ([]prompts.Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var frames []prompts.Frame
	if err := json.Unmarshal(data, &frames); err == nil {
		return frames, nil
	}
	var manifest struct {
		Scenes []prompts.Frame `json:"scenes"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if len(manifest.Scenes) == 0 {
		return nil, errors.New("manifest has no scenes")
	}
	return manifest.Scenes, nil
}

func readImagePrompts(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image prompts: %w", err)
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		ImagePrompts []string `json:"image_prompts"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("parse image prompts %s: %w", path, err)
	}
	return wrapped.ImagePrompts, nil
}
