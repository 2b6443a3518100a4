// Package history records workflow runs (timeline builds and prompt
// generations) in a SQLite database so operators can see how often the
// inference service forced fallbacks or circuit rejections.
//
// The schema is embedded and versioned; a version mismatch returns
// ErrSchemaMismatch rather than migrating in place.
package history
