// Package api is the HTTP surface of scenevibe. NewRouter mounts the JSON
// endpoints on a chi router; listener lifecycle lives in the daemon package.
//
// # Endpoints
//
// GET /api/health: liveness probe.
// POST /api/analyze: multipart video upload, returns the scene manifest.
// POST /api/edit: echoes json_data; prompt-driven editing is reserved.
// POST /api/gemini/vibe-extraction: multipart or base64 video, always 200.
// POST /api/gemini/image-prompts: one prompt per scene frame.
// POST /api/gemini/video-prompt: one prompt for the whole edit.
// GET /api/status: breaker, limiter, and recent warnings.
// GET /api/runs, GET /api/runs/{id}: workflow history.
//
// # Design Notes
//
// Field names use snake_case to stay compatible with existing front ends.
// Errors are {"error": "..."} with a status derived from the service error
// markers, except vibe extraction which reports failure in the body so
// clients can degrade gracefully. An api_key in a request overrides the
// configured key for that request only; pacing and circuit state are shared
// by every key. When a token is configured, every endpoint except health
// requires it as a bearer token.
package api
