// Package app is the composition root shared by the CLI and the HTTP server.
//
// New builds exactly one retry/breaker/limiter stack per process and hands a
// Caller derived from it to every prompt workflow, so concurrent requests
// (including requests carrying their own API key) are paced and protected
// together. The workflow methods record each run in the optional history
// store and never fail a request because history could not be written.
package app
