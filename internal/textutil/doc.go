// Package textutil provides filename and text helpers for uploaded videos
// and generated prompts.
//
// SecureFileName folds an uploaded filename to a safe ASCII path segment,
// StemName derives a manifest name from it, and Truncate shortens prompt text
// for logs and tables.
package textutil
