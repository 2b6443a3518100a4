package timecode

import (
	"errors"
	"math"
	"testing"
)

func TestEncodeKnownValues(t *testing.T) {
	tests := []struct {
		name    string
		seconds float64
		fps     int
		want    Notation
	}{
		{name: "zero", seconds: 0, fps: 30, want: 0},
		{name: "one second", seconds: 1.0, fps: 30, want: 1.00},
		{name: "last frame rolls over", seconds: 0.999, fps: 30, want: 1.00},
		{name: "half second", seconds: 0.5, fps: 30, want: 0.15},
		{name: "fade out", seconds: 1.9, fps: 30, want: 1.27},
		{name: "frame 29", seconds: 29.0 / 30.0, fps: 30, want: 0.29},
		{name: "whole video", seconds: 12.5, fps: 30, want: 12.15},
		{name: "half frame rounds away from zero", seconds: 0.25, fps: 2, want: 0.01},
		{name: "negative clamps", seconds: -3, fps: 30, want: 0},
		{name: "default fps", seconds: 2, fps: 0, want: 2.00},
		{name: "24fps", seconds: 5.5, fps: 24, want: 5.12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Encode(tt.seconds, tt.fps)
			if got != tt.want {
				t.Fatalf("Encode(%v, %d) = %v, want %v", tt.seconds, tt.fps, got, tt.want)
			}
		})
	}
}

func TestEncodeFrameAlwaysBelowFPS(t *testing.T) {
	for fps := 1; fps <= MaxFPS; fps++ {
		for i := 0; i < 2000; i++ {
			seconds := float64(i) * 0.0137
			n := Encode(seconds, fps)
			frame := n.Frame()
			if frame < 0 || frame >= fps {
				t.Fatalf("Encode(%v, %d) = %v has frame %d outside [0,%d)", seconds, fps, n, frame, fps)
			}
			fraction := math.Round((float64(n) - math.Floor(float64(n))) * 100)
			if int(fraction) != frame {
				t.Fatalf("Encode(%v, %d) = %v fractional digits %v disagree with frame %d", seconds, fps, n, fraction, frame)
			}
		}
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	first := Encode(7.123456, 30)
	for i := 0; i < 100; i++ {
		if got := Encode(7.123456, 30); got != first {
			t.Fatalf("Encode not reproducible: %v vs %v", got, first)
		}
	}
}

func TestEncodeChecked(t *testing.T) {
	if _, err := EncodeChecked(1, 0); !errors.Is(err, ErrInvalidFPS) {
		t.Fatalf("expected ErrInvalidFPS, got %v", err)
	}
	if _, err := EncodeChecked(math.NaN(), 30); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
	value, err := EncodeChecked(1.5, 120)
	if !errors.Is(err, ErrAmbiguousFPS) {
		t.Fatalf("expected ErrAmbiguousFPS, got %v", err)
	}
	if value != 1.60 {
		t.Fatalf("expected computed value 1.60 alongside error, got %v", value)
	}
	value, err = EncodeChecked(1.5, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != 1.15 {
		t.Fatalf("expected 1.15, got %v", value)
	}
}

func TestNotationComponents(t *testing.T) {
	n := Encode(5.5, 30)
	if n.Seconds() != 5 || n.Frame() != 15 {
		t.Fatalf("unexpected components for %v: %d s, %d f", n, n.Seconds(), n.Frame())
	}
	if got := n.Decode(30); got != 5.5 {
		t.Fatalf("Decode = %v, want 5.5", got)
	}
	if n.String() != "5.15" {
		t.Fatalf("String = %q", n.String())
	}
	if Notation(1).String() != "1.00" {
		t.Fatalf("expected two decimals, got %q", Notation(1).String())
	}
}
