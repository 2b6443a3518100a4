package timecode

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

const (
	// DefaultFPS is the frame rate used by the edit manifest.
	DefaultFPS = 30
	// MaxFPS is the highest frame rate encoded without ambiguity. The frame
	// index occupies the first two decimal digits, so anything above this
	// starts to collide with the next second.
	MaxFPS = 99
)

var (
	ErrInvalidFPS      = errors.New("timecode: fps must be positive")
	ErrAmbiguousFPS    = errors.New("timecode: fps exceeds two-digit frame notation")
	ErrInvalidDuration = errors.New("timecode: duration is not a finite number")
)

// Notation is a SECONDS.FRAMES value: the integer part holds whole seconds and
// the first two decimals hold the frame index within that second. At 30fps,
// 1.15 means one second plus fifteen frames, and 0.29 is followed by 1.00.
type Notation float64

// Encode converts a duration in seconds into frame notation at fps.
//
// Frames are rounded half away from zero (math.Round) before being split
// into seconds and frame index, so a frame count equal to fps rolls over into
// the next second. Negative and non-finite durations encode as 0. A
// non-positive fps falls back to DefaultFPS; use EncodeChecked to surface
// invalid or ambiguous frame rates.
func Encode(totalSeconds float64, fps int) Notation {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return encode(totalSeconds, fps)
}

// EncodeChecked is Encode with validation. For fps above MaxFPS the value is
// still computed and returned together with ErrAmbiguousFPS.
func EncodeChecked(totalSeconds float64, fps int) (Notation, error) {
	if fps <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidFPS, fps)
	}
	if math.IsNaN(totalSeconds) || math.IsInf(totalSeconds, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidDuration, totalSeconds)
	}
	value := encode(totalSeconds, fps)
	if fps > MaxFPS {
		return value, fmt.Errorf("%w: %d", ErrAmbiguousFPS, fps)
	}
	return value, nil
}

func encode(totalSeconds float64, fps int) Notation {
	if math.IsNaN(totalSeconds) || math.IsInf(totalSeconds, 0) || totalSeconds < 0 {
		totalSeconds = 0
	}
	totalFrames := int64(math.Round(totalSeconds * float64(fps)))
	seconds := totalFrames / int64(fps)
	frame := totalFrames % int64(fps)
	return Notation(round2(float64(seconds) + float64(frame)/100))
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

// Seconds returns the whole-second component.
func (n Notation) Seconds() int {
	return int(hundredths(n) / 100)
}

// Frame returns the frame index component.
func (n Notation) Frame() int {
	return int(hundredths(n) % 100)
}

// Decode converts the notation back to seconds at fps.
func (n Notation) Decode(fps int) float64 {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return float64(n.Seconds()) + float64(n.Frame())/float64(fps)
}

// String renders the notation with exactly two decimals.
func (n Notation) String() string {
	return strconv.FormatFloat(float64(n), 'f', 2, 64)
}

func hundredths(n Notation) int64 {
	if n < 0 {
		return 0
	}
	return int64(math.Round(float64(n) * 100))
}
