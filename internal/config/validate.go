package config

import (
	"errors"
	"fmt"
)

// maxFPS is the largest frame rate whose frame index fits in two decimal digits.
const maxFPS = 99

// Validate ensures the configuration is usable. A missing API key is not an
// error because HTTP callers may supply one per request.
func (c *Config) Validate() error {
	if err := c.validateRetry("retry", c.Retry); err != nil {
		return err
	}
	if err := c.validateRetry("retry_image_prompts", c.RetryImagePrompts); err != nil {
		return err
	}
	if err := c.validateRetry("retry_video_prompt", c.RetryVideoPrompt); err != nil {
		return err
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		return errors.New("rate_limit.requests_per_second must be >= 0")
	}
	if err := ensurePositiveMap(map[string]int{
		"circuit.failure_threshold":        c.Circuit.FailureThreshold,
		"circuit.recovery_timeout_seconds": c.Circuit.RecoveryTimeoutSeconds,
		"circuit.success_threshold":        c.Circuit.SuccessThreshold,
		"batch.workers":                    c.Batch.Workers,
		"uploads.max_mib":                  c.Uploads.MaxMiB,
		"paths.stale_work_hours":           c.Paths.StaleWorkHours,
	}); err != nil {
		return err
	}
	if err := c.validateScenes(); err != nil {
		return err
	}
	if len(c.Uploads.AllowedExtensions) == 0 {
		return errors.New("uploads.allowed_extensions must include at least one extension")
	}
	return c.validateLogging()
}

func (c *Config) validateRetry(section string, r Retry) error {
	if r.MaxRetries < 0 {
		return fmt.Errorf("%s.max_retries must be >= 0", section)
	}
	if r.InitialDelaySeconds < 0 {
		return fmt.Errorf("%s.initial_delay_seconds must be >= 0", section)
	}
	if r.MaxDelaySeconds <= 0 {
		return fmt.Errorf("%s.max_delay_seconds must be positive", section)
	}
	if r.MaxDelaySeconds < r.InitialDelaySeconds {
		return fmt.Errorf("%s.max_delay_seconds must be >= %s.initial_delay_seconds", section, section)
	}
	if r.Multiplier < 1 {
		return fmt.Errorf("%s.multiplier must be >= 1", section)
	}
	return nil
}

func (c *Config) validateScenes() error {
	if c.Scenes.Threshold < 0 || c.Scenes.Threshold > 100 {
		return errors.New("scenes.threshold must be between 0 and 100")
	}
	if c.Scenes.FPS <= 0 || c.Scenes.FPS > maxFPS {
		return fmt.Errorf("scenes.fps must be between 1 and %d", maxFPS)
	}
	if c.Scenes.FadeInSeconds < 0 || c.Scenes.FadeOutSeconds < 0 {
		return errors.New("scenes fade durations must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
