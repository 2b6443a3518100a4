// Package prompts implements the inference workflows run against extracted
// scenes: one image prompt per frame, one video prompt condensed from those,
// and a brand vibe for a whole clip.
//
// All remote calls go through resilience.Caller values derived from one root
// Caller, so the circuit breaker and rate limiter gate the inference service
// as a whole. Per-frame work runs through batch.Process and never fails as a
// whole; a frame that cannot be described gets a positional placeholder.
package prompts
