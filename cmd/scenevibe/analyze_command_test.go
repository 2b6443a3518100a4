package main

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"

	"scenevibe/internal/timecode"
	"scenevibe/internal/timeline"
)

func TestPrintManifestShowsDecodedSeconds(t *testing.T) {
	manifest := &timeline.Manifest{
		Name:    "clip",
		TempDir: "/work/timeline-clip",
		Clips: []timeline.Clip{
			{Index: 1, Duration: timecode.Encode(5.5, 30)},
			{Index: 2, Duration: timecode.Encode(2, 30)},
		},
		Scenes: []timeline.Scene{
			{Index: 1, FramePath: "/work/timeline-clip/scene_001.png"},
			{Index: 2, FramePath: "/work/timeline-clip/scene_002.png"},
		},
		MusicFile: "music.mp3",
	}
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	printManifest(cmd, manifest, 30)

	got := out.String()
	requireContains(t, got, "Seconds")
	requireContains(t, got, "5.15")
	requireContains(t, got, "5.50")
	requireContains(t, got, "2.00")
	requireContains(t, got, "scene_002.png")
}
