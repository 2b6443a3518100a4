package timeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"scenevibe/internal/logging"
	"scenevibe/internal/media/scenes"
	"scenevibe/internal/staging"
	"scenevibe/internal/timecode"
)

const (
	// DefaultThreshold is the content change threshold used when none is given.
	DefaultThreshold = 15.0
	// DefaultMusicFile is the soundtrack referenced by new manifests.
	DefaultMusicFile = "audio/fade_story.mp3"
	// DefaultFadeOutSeconds is the closing fade length.
	DefaultFadeOutSeconds = 1.9

	transitionCut = "cut"
)

// Detector finds scene boundaries and reports video duration.
type Detector interface {
	Detect(ctx context.Context, video string, threshold float64) ([]scenes.Span, error)
	Duration(ctx context.Context, video string) (float64, error)
}

// Extractor writes the frame at a timestamp to a file.
type Extractor interface {
	ExtractFrame(ctx context.Context, video string, at float64, dest string) error
}

// Builder assembles manifests from a video.
type Builder struct {
	Detector       Detector
	Extractor      Extractor
	FPS            int
	WorkDir        string
	MusicFile      string
	FadeInSeconds  float64
	FadeOutSeconds float64
	Logger         *slog.Logger
}

// Build detects scenes in video, extracts one frame per scene into a new
// temporary directory under WorkDir, and returns the manifest. A threshold
// of zero or less uses DefaultThreshold.
//
// Build is all-or-nothing: on any failure the temporary directory is removed
// and a single error is returned without a manifest. On success the caller
// owns the directory and must call Manifest.Cleanup.
func (b *Builder) Build(ctx context.Context, video, name string, threshold float64) (*Manifest, error) {
	manifest, err := b.build(ctx, video, name, threshold)
	if err != nil {
		return nil, fmt.Errorf("timeline build: %w", err)
	}
	return manifest, nil
}

func (b *Builder) build(ctx context.Context, video, name string, threshold float64) (manifest *Manifest, err error) {
	if b.Detector == nil || b.Extractor == nil {
		return nil, errors.New("detector and extractor are required")
	}
	if strings.TrimSpace(video) == "" {
		return nil, errors.New("video path is required")
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	fps := b.FPS
	if fps == 0 {
		fps = timecode.DefaultFPS
	}
	logger := b.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	started := time.Now()
	spans, err := b.Detector.Detect(ctx, video, threshold)
	if err != nil {
		return nil, fmt.Errorf("detect scenes: %w", err)
	}
	if len(spans) == 0 {
		duration, err := b.Detector.Duration(ctx, video)
		if err != nil {
			return nil, fmt.Errorf("probe duration: %w", err)
		}
		spans = []scenes.Span{{Start: 0, End: duration}}
		logger.Debug("no scene cuts detected, using full video",
			logging.Float64("duration_seconds", duration),
		)
	}

	fadeIn, err := timecode.EncodeChecked(b.FadeInSeconds, fps)
	if err != nil {
		return nil, fmt.Errorf("fade in: %w", err)
	}
	fadeOut, err := timecode.EncodeChecked(b.fadeOut(), fps)
	if err != nil {
		return nil, fmt.Errorf("fade out: %w", err)
	}

	if b.WorkDir != "" {
		if err := os.MkdirAll(b.WorkDir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure work dir: %w", err)
		}
	}
	tempDir, err := os.MkdirTemp(b.WorkDir, staging.TimelinePrefix)
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if removeErr := os.RemoveAll(tempDir); removeErr != nil {
			err = errors.Join(err, fmt.Errorf("remove temp dir: %w", removeErr))
		}
	}()

	out := &Manifest{
		Name:            name,
		Clips:           make([]Clip, 0, len(spans)),
		Transitions:     make([]Transition, 0, max(len(spans)-1, 0)),
		MusicFile:       b.musicFile(),
		FadeInDuration:  fadeIn,
		FadeOutDuration: fadeOut,
		Scenes:          make([]Scene, 0, len(spans)),
		TempDir:         tempDir,
	}
	for i, span := range spans {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		index := i + 1
		duration, err := timecode.EncodeChecked(span.Duration(), fps)
		if err != nil {
			return nil, fmt.Errorf("scene %d duration: %w", index, err)
		}
		framePath := filepath.Join(tempDir, fmt.Sprintf("scene_%03d_frame.png", index))
		if err := b.Extractor.ExtractFrame(ctx, video, span.Start, framePath); err != nil {
			return nil, fmt.Errorf("scene %d frame: %w", index, err)
		}
		out.Clips = append(out.Clips, Clip{Index: index, Duration: duration, Required: true})
		if index < len(spans) {
			out.Transitions = append(out.Transitions, Transition{
				Type:         transitionCut,
				BetweenClips: [2]int{index, index + 1},
			})
		}
		out.Scenes = append(out.Scenes, Scene{
			Index:     index,
			FramePath: framePath,
			Start:     span.Start,
			End:       span.End,
		})
	}

	logger.Info("timeline built",
		logging.String("name", name),
		logging.Int("scenes", len(out.Scenes)),
		logging.Float64("threshold", threshold),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldEventType, "timeline_built"),
	)
	return out, nil
}

func (b *Builder) musicFile() string {
	if b.MusicFile != "" {
		return b.MusicFile
	}
	return DefaultMusicFile
}

func (b *Builder) fadeOut() float64 {
	if b.FadeOutSeconds > 0 {
		return b.FadeOutSeconds
	}
	return DefaultFadeOutSeconds
}
