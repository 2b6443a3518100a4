// Command scenevibe analyzes videos into scene manifests and generates image,
// video, and vibe prompts from the command line.
//
// Commands run the same workflows as the HTTP server, with the same retry,
// circuit breaker, and rate limit settings from the configuration file, and
// record each run in the shared history database. Output is a table on a
// terminal and JSON otherwise; --format overrides the choice.
//
// Use `scenevibe serve` (or the scenevibed binary) to run the HTTP API.
package main
