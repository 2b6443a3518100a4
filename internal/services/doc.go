// Package services defines shared utilities consumed by the analysis and
// prompt workflows and the remote integrations behind them.
//
// Key responsibilities:
//   - Context helpers that stamp batch item indexes, operation names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent HTTP statuses.
//
// Use these helpers when wiring new workflow logic so error handling and
// observability stay uniform across the service.
package services
