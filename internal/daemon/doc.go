// Package daemon coordinates the long-running scenevibe server process.
//
// It wires the assembled app into the HTTP router, holds a flock-based lock
// so only one instance serves from a state directory, reclaims stale upload
// and timeline directories at startup and hourly, and logs missing external
// binaries before the first request arrives.
//
// Keep orchestration logic here: workflow behavior lives in the app and its
// packages while the daemon focuses on startup, shutdown, and status.
package daemon
