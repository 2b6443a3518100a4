// Package logging assembles structured slog loggers and formatting helpers used
// across scenevibe.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so workflow code can tag log
// lines with operation names, batch item indexes, and correlation IDs. The
// package also provides a no-op logger for tests and a bounded buffer of recent
// warnings for the status endpoint.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits records with the same shape and routing.
package logging
