package timeline

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"scenevibe/internal/timecode"
)

// Manifest is the edit timeline handed to the transport layer. Field order
// follows the JSON document consumers expect.
type Manifest struct {
	Name            string            `json:"name"`
	Clips           []Clip            `json:"clips"`
	Transitions     []Transition      `json:"transitions"`
	LogoOutro       bool              `json:"logo_outro"`
	MusicFile       string            `json:"music_file"`
	FadeInDuration  timecode.Notation `json:"fade_in_duration"`
	FadeOutDuration timecode.Notation `json:"fade_out_duration"`
	Scenes          []Scene           `json:"scenes"`
	TempDir         string            `json:"temp_dir"`
}

// Clip is one edit segment with its duration in frame notation.
type Clip struct {
	Index    int               `json:"index"`
	Duration timecode.Notation `json:"duration"`
	Required bool              `json:"required"`
}

// Transition joins two consecutive clips.
type Transition struct {
	Type         string  `json:"type"`
	Duration     float64 `json:"duration"`
	BetweenClips [2]int  `json:"between_clips"`
}

// Scene is a detected scene and its extracted frame. Start and End stay
// internal to the pipeline.
type Scene struct {
	Index        int     `json:"scene_index"`
	FramePreview string  `json:"frame_preview"`
	FramePath    string  `json:"frame_path"`
	Start        float64 `json:"-"`
	End          float64 `json:"-"`
}

// Duration returns the scene length in seconds.
func (s Scene) Duration() float64 { return s.End - s.Start }

// AttachPreviews fills FramePreview with the base64 encoded frame image of
// every scene.
func (m *Manifest) AttachPreviews() error {
	for i := range m.Scenes {
		data, err := os.ReadFile(m.Scenes[i].FramePath)
		if err != nil {
			return fmt.Errorf("encode preview for scene %d: %w", m.Scenes[i].Index, err)
		}
		m.Scenes[i].FramePreview = base64.StdEncoding.EncodeToString(data)
	}
	return nil
}

// Cleanup removes the manifest's temporary directory. The caller owns the
// directory once Build returns, and Cleanup is safe to call more than once.
func (m *Manifest) Cleanup() error {
	if m == nil || m.TempDir == "" {
		return nil
	}
	if err := os.RemoveAll(m.TempDir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove timeline temp dir: %w", err)
	}
	return nil
}
