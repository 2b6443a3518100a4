// Package timeline turns a video into an edit manifest: ordered clips with
// durations in SECONDS.FRAMES notation, cut transitions between them, and one
// extracted frame per scene.
//
// Frames live in a private temporary directory created per Build call. The
// directory is removed on any failure; on success ownership passes to the
// caller through Manifest.Cleanup.
package timeline
