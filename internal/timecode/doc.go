// Package timecode converts continuous scene durations into the SECONDS.FRAMES
// notation used by edit manifests.
//
// The conversion is pure and reproducible: the same (seconds, fps) pair always
// yields the same Notation. Rounding is half away from zero at the frame
// level, followed by a two-decimal round of the combined value.
package timecode
