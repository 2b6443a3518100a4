// Package resilience protects calls to an unreliable remote service.
//
// A Retrier re-runs operations whose failures classify as retryable, with
// capped exponential backoff and optional jitter. A Breaker fails fast after
// repeated failures and probes recovery with one trial call at a time. A
// RateLimiter spaces call starts across goroutines. Caller composes the three
// so that each attempt passes through the breaker and then waits for a rate
// slot before the remote call is made.
package resilience
