package ffprobe

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "audio"},
			{CodecType: "video", AvgFrameRate: "30000/1001", RFrameRate: "30/1", Duration: "9.5"},
		},
		Format: Format{
			Duration: "123.45",
			Size:     "1000",
		},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
	if got := result.FrameRate(); math.Abs(got-29.97) > 0.01 {
		t.Fatalf("unexpected frame rate: %v", got)
	}
}

func TestResultFallsBackToStreamValues(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "video", AvgFrameRate: "0/0", RFrameRate: "25/1", Duration: "12.5"}},
	}
	if result.DurationSeconds() != 12.5 {
		t.Fatalf("expected stream duration, got %v", result.DurationSeconds())
	}
	if result.FrameRate() != 25 {
		t.Fatalf("expected r_frame_rate fallback, got %v", result.FrameRate())
	}
	if (Result{}).FrameRate() != 0 {
		t.Fatal("expected zero frame rate without video")
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "bad",
			Size:     "-1",
		},
	}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
}

func TestInspectParsesStubOutput(t *testing.T) {
	dir := t.TempDir()
	stub := filepath.Join(dir, "ffprobe")
	script := "#!/bin/sh\ncat <<'JSON'\n{\"streams\":[{\"index\":0,\"codec_type\":\"video\",\"avg_frame_rate\":\"30/1\"}],\"format\":{\"duration\":\"12.500000\"}}\nJSON\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	result, err := Inspect(context.Background(), stub, "/tmp/video.mp4")
	if err != nil {
		t.Fatalf("Inspect returned error: %v", err)
	}
	if result.DurationSeconds() != 12.5 || result.FrameRate() != 30 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestInspectReportsFailure(t *testing.T) {
	dir := t.TempDir()
	stub := filepath.Join(dir, "ffprobe")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\necho 'moov atom not found' >&2\nexit 1\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	if _, err := Inspect(context.Background(), stub, "/tmp/video.mp4"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := Inspect(context.Background(), stub, " "); err == nil {
		t.Fatal("expected empty path error")
	}
}
