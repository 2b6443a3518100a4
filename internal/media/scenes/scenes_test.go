package scenes

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const showinfoSample = `Input #0, mov,mp4,m4a,3gp,3g2,mj2, from 'clip.mp4':
[Parsed_showinfo_1 @ 0x55d0c8] config in time_base: 1/15360, frame_rate: 30/1
[Parsed_showinfo_1 @ 0x55d0c8] n:   0 pts:  63488 pts_time:4.13333 duration:    512 fmt:yuv420p
[Parsed_showinfo_1 @ 0x55d0c8] n:   1 pts: 130560 pts_time:8.5     duration:    512 fmt:yuv420p
[Parsed_showinfo_1 @ 0x55d0c8] n:   2 pts: 130560 pts_time:8.5     duration:    512 fmt:yuv420p
frame=    2 fps=0.0 q=-0.0 Lsize=N/A time=00:00:12.50 bitrate=N/A
`

func TestParseCutTimes(t *testing.T) {
	cuts := parseCutTimes(strings.NewReader(showinfoSample))
	if len(cuts) != 2 || cuts[0] != 4.13333 || cuts[1] != 8.5 {
		t.Fatalf("unexpected cuts %v", cuts)
	}
}

func TestSpansFromCuts(t *testing.T) {
	spans := spansFromCuts([]float64{0, 4, 8.5, 12.5, 20}, 12.5)
	want := []Span{{0, 4}, {4, 8.5}, {8.5, 12.5}}
	if len(spans) != len(want) {
		t.Fatalf("expected %d spans, got %v", len(want), spans)
	}
	for i := range want {
		if spans[i] != want[i] {
			t.Fatalf("span %d: expected %v, got %v", i, want[i], spans[i])
		}
	}
	if spans[1].Duration() != 4.5 {
		t.Fatalf("unexpected duration %v", spans[1].Duration())
	}
}

func writeStub(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return path
}

func TestDetectWithStubBinaries(t *testing.T) {
	dir := t.TempDir()
	sample := filepath.Join(dir, "showinfo.txt")
	if err := os.WriteFile(sample, []byte(showinfoSample), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	argsFile := filepath.Join(dir, "args.txt")
	ffmpeg := writeStub(t, dir, "ffmpeg", "echo \"$@\" > "+argsFile+"\ncat "+sample+" >&2\n")
	ffprobe := writeStub(t, dir, "ffprobe", "echo '{\"streams\":[],\"format\":{\"duration\":\"12.5\"}}'\n")

	detector := FFmpeg{FFmpegBinary: ffmpeg, FFprobeBinary: ffprobe}
	spans, err := detector.Detect(context.Background(), "clip.mp4", 15)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if len(spans) != 3 || spans[2] != (Span{Start: 8.5, End: 12.5}) {
		t.Fatalf("unexpected spans %v", spans)
	}
	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	if !strings.Contains(string(args), "select='gt(scene,0.15)',showinfo") {
		t.Fatalf("unexpected ffmpeg args %q", args)
	}
}

func TestDetectWithoutCutsReturnsNoSpans(t *testing.T) {
	dir := t.TempDir()
	ffmpeg := writeStub(t, dir, "ffmpeg", "echo 'frame=0 fps=0.0' >&2\n")
	spans, err := FFmpeg{FFmpegBinary: ffmpeg}.Detect(context.Background(), "clip.mp4", 15)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if len(spans) != 0 {
		t.Fatalf("expected no spans, got %v", spans)
	}
}

func TestDetectRejectsBadInput(t *testing.T) {
	if _, err := (FFmpeg{}).Detect(context.Background(), "", 15); err == nil {
		t.Fatal("expected error for empty path")
	}
	if _, err := (FFmpeg{}).Detect(context.Background(), "clip.mp4", 0); err == nil {
		t.Fatal("expected error for zero threshold")
	}
}

func TestDetectReportsFFmpegFailure(t *testing.T) {
	dir := t.TempDir()
	ffmpeg := writeStub(t, dir, "ffmpeg", "echo 'clip.mp4: Invalid data found' >&2\nexit 1\n")
	_, err := FFmpeg{FFmpegBinary: ffmpeg}.Detect(context.Background(), "clip.mp4", 15)
	if err == nil || !strings.Contains(err.Error(), "Invalid data found") {
		t.Fatalf("expected ffmpeg stderr in error, got %v", err)
	}
}

func TestExtractFrame(t *testing.T) {
	dir := t.TempDir()
	ffmpeg := writeStub(t, dir, "ffmpeg", "for last; do :; done\nprintf 'png' > \"$last\"\n")
	dest := filepath.Join(dir, "scene_001_frame.png")
	if err := (FFmpeg{FFmpegBinary: ffmpeg}).ExtractFrame(context.Background(), "clip.mp4", 1.5, dest); err != nil {
		t.Fatalf("ExtractFrame returned error: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "png" {
		t.Fatalf("unexpected frame contents %q (%v)", data, err)
	}
}

func TestExtractFrameRejectsEmptyOutput(t *testing.T) {
	dir := t.TempDir()
	ffmpeg := writeStub(t, dir, "ffmpeg", "for last; do :; done\n: > \"$last\"\n")
	dest := filepath.Join(dir, "frame.png")
	if err := (FFmpeg{FFmpegBinary: ffmpeg}).ExtractFrame(context.Background(), "clip.mp4", 0, dest); err == nil {
		t.Fatal("expected error for empty frame")
	}
}
