// Package scenes adapts ffmpeg and ffprobe into the scene detector and frame
// extractor used when building edit timelines.
//
// Detection runs ffmpeg's scene score filter and reads the timestamps that
// showinfo prints for every selected frame; each one starts a new scene.
package scenes
