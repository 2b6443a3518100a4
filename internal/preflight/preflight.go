package preflight

import (
	"context"

	"scenevibe/internal/config"
	"scenevibe/internal/services/llm"
)

// minFreeMultiplier is how many maximum-size uploads the work directory must
// be able to hold.
const minFreeMultiplier = 2

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the readiness checks for the given config. The LLM check
// only runs when an API key is configured, since requests may carry their own.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckFreeSpace("Work directory space", cfg.Paths.WorkDir, uint64(cfg.Uploads.MaxBytes())*minFreeMultiplier),
	}

	if cfg.LLM.APIKey == "" {
		results = append(results, Result{
			Name:   "Inference API",
			Passed: true,
			Detail: "No API key configured (requests must supply api_key)",
		})
		return results
	}
	results = append(results, CheckLLM(ctx, "Inference API", llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	}))
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	return failed
}
