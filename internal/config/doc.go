// Package config loads, normalizes, and validates scenevibe configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for the
// inference API key (SCENEVIBE_API_KEY, OPENROUTER_API_KEY, GEMINI_API_KEY).
// The Config type centralizes every knob the server and CLI need, from retry
// policies and breaker thresholds to upload limits.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
