package scenes

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"scenevibe/internal/media/ffprobe"
)

// Span is one detected scene in seconds from the start of the video.
type Span struct {
	Start float64
	End   float64
}

// Duration returns the span length in seconds.
func (s Span) Duration() float64 { return s.End - s.Start }

// FFmpeg detects scene cuts and extracts frames with the ffmpeg and ffprobe
// binaries. Empty binary names resolve from PATH.
type FFmpeg struct {
	FFmpegBinary  string
	FFprobeBinary string
}

var ptsTimePattern = regexp.MustCompile(`pts_time:\s*([0-9]+(?:\.[0-9]+)?)`)

// Detect returns the scenes of video split at every frame whose content
// change score exceeds threshold. Threshold uses the 0-100 content scale; it
// is mapped onto ffmpeg's 0-1 scene score. A video without cuts yields no
// spans so callers can fall back to the full duration.
func (f FFmpeg) Detect(ctx context.Context, video string, threshold float64) ([]Span, error) {
	if strings.TrimSpace(video) == "" {
		return nil, errors.New("scene detect: empty video path")
	}
	if threshold <= 0 || math.IsNaN(threshold) {
		return nil, fmt.Errorf("scene detect: invalid threshold %v", threshold)
	}
	filter := fmt.Sprintf("select='gt(scene,%s)',showinfo", strconv.FormatFloat(threshold/100, 'f', -1, 64))
	args := []string{
		"-hide_banner",
		"-nostats",
		"-i", video,
		"-filter:v", filter,
		"-an",
		"-f", "null",
		"-",
	}
	cmd := exec.CommandContext(ctx, f.ffmpeg(), args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("scene detect: %w: %s", err, lastLines(stderr.String(), 5))
	}
	cuts := parseCutTimes(&stderr)
	if len(cuts) == 0 {
		return nil, nil
	}
	duration, err := f.Duration(ctx, video)
	if err != nil {
		return nil, fmt.Errorf("scene detect: %w", err)
	}
	return spansFromCuts(cuts, duration), nil
}

// Duration reports the video's length in seconds via ffprobe.
func (f FFmpeg) Duration(ctx context.Context, video string) (float64, error) {
	result, err := ffprobe.Inspect(ctx, f.ffprobe(), video)
	if err != nil {
		return 0, err
	}
	duration := result.DurationSeconds()
	if math.IsNaN(duration) || duration < 0 {
		return 0, fmt.Errorf("ffprobe: invalid duration %q", result.Format.Duration)
	}
	return duration, nil
}

// ExtractFrame writes the frame at the given timestamp to dest as a PNG.
func (f FFmpeg) ExtractFrame(ctx context.Context, video string, at float64, dest string) error {
	if strings.TrimSpace(dest) == "" {
		return errors.New("extract frame: empty destination")
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", strconv.FormatFloat(max(at, 0), 'f', 3, 64),
		"-i", video,
		"-frames:v", "1",
		dest,
	}
	cmd := exec.CommandContext(ctx, f.ffmpeg(), args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("extract frame at %.3fs: %w: %s", at, err, strings.TrimSpace(string(output)))
	}
	info, err := os.Stat(dest)
	if err != nil {
		return fmt.Errorf("extract frame at %.3fs: %w", at, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("extract frame at %.3fs: %s is empty", at, filepath.Base(dest))
	}
	return nil
}

func (f FFmpeg) ffmpeg() string {
	if bin := strings.TrimSpace(f.FFmpegBinary); bin != "" {
		return bin
	}
	return "ffmpeg"
}

func (f FFmpeg) ffprobe() string {
	if bin := strings.TrimSpace(f.FFprobeBinary); bin != "" {
		return bin
	}
	return "ffprobe"
}

// parseCutTimes collects pts_time values from showinfo output, sorted and
// deduplicated.
func parseCutTimes(r io.Reader) []float64 {
	var cuts []float64
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, "showinfo") {
			continue
		}
		match := ptsTimePattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		value, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}
		cuts = append(cuts, value)
	}
	slices.Sort(cuts)
	return slices.Compact(cuts)
}

// spansFromCuts turns cut points into contiguous spans covering [0, duration].
// Cuts at or before zero and at or past the end are ignored.
func spansFromCuts(cuts []float64, duration float64) []Span {
	spans := make([]Span, 0, len(cuts)+1)
	start := 0.0
	for _, cut := range cuts {
		if cut <= start || (duration > 0 && cut >= duration) {
			continue
		}
		spans = append(spans, Span{Start: start, End: cut})
		start = cut
	}
	end := duration
	if end < start {
		end = start
	}
	return append(spans, Span{Start: start, End: end})
}

func lastLines(text string, n int) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
