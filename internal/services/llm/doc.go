// Package llm provides an OpenAI-compatible chat client (OpenRouter by
// default) for multimodal generation.
//
// This package is used by the prompt workflows to describe extracted scene
// frames, condense frame descriptions into one video prompt, and extract a
// brand vibe from a whole clip.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Generate: send an instruction plus optional image or video bytes.
// Client.WithAPIKey: derive a client that authenticates with another key.
// Client.HealthCheck: verify API key and model availability.
//
// # Failure Reporting
//
// The client never retries. HTTP failures surface as *StatusError whose
// message names the condition (rate limit exceeded, service unavailable,
// server error) so the resilience classifier can decide whether to retry.
// Network failures are reported as connection errors or timeouts. A response
// without text surfaces as *ContentRejectedError and is never worth retrying.
// Text cut off at the token limit is returned with Response.Truncated set.
package llm
