package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	WorkDir        string `toml:"work_dir"`
	LogDir         string `toml:"log_dir"`
	StateDir       string `toml:"state_dir"`
	APIBind        string `toml:"api_bind"`
	APIToken       string `toml:"api_token"`
	StaleWorkHours int    `toml:"stale_work_hours"`
}

// LLM contains the inference service connection settings.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Retry describes one backoff policy. Delays are in seconds and may be
// fractional.
type Retry struct {
	MaxRetries          int     `toml:"max_retries"`
	InitialDelaySeconds float64 `toml:"initial_delay_seconds"`
	MaxDelaySeconds     float64 `toml:"max_delay_seconds"`
	Multiplier          float64 `toml:"multiplier"`
	Jitter              bool    `toml:"jitter"`
}

// InitialDelay returns the first backoff delay as a duration.
func (r Retry) InitialDelay() time.Duration { return secondsToDuration(r.InitialDelaySeconds) }

// MaxDelay returns the backoff ceiling as a duration.
func (r Retry) MaxDelay() time.Duration { return secondsToDuration(r.MaxDelaySeconds) }

// RateLimit contains the shared inference call pacing.
type RateLimit struct {
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Circuit contains circuit breaker thresholds.
type Circuit struct {
	FailureThreshold       int `toml:"failure_threshold"`
	RecoveryTimeoutSeconds int `toml:"recovery_timeout_seconds"`
	SuccessThreshold       int `toml:"success_threshold"`
}

// RecoveryTimeout returns the open-state cooldown as a duration.
func (c Circuit) RecoveryTimeout() time.Duration {
	return time.Duration(c.RecoveryTimeoutSeconds) * time.Second
}

// Batch contains concurrency settings for per-scene work.
type Batch struct {
	Workers int `toml:"workers"`
}

// Scenes contains scene detection and manifest settings.
type Scenes struct {
	Threshold      float64 `toml:"threshold"`
	FPS            int     `toml:"fps"`
	FadeInSeconds  float64 `toml:"fade_in_seconds"`
	FadeOutSeconds float64 `toml:"fade_out_seconds"`
	MusicFile      string  `toml:"music_file"`
}

// Uploads contains limits for videos received over HTTP.
type Uploads struct {
	MaxMiB            int      `toml:"max_mib"`
	AllowedExtensions []string `toml:"allowed_extensions"`
}

// MaxBytes returns the upload size limit in bytes.
func (u Uploads) MaxBytes() int64 { return int64(u.MaxMiB) << 20 }

// Allows reports whether filename carries an accepted extension.
func (u Uploads) Allows(filename string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		return false
	}
	for _, allowed := range u.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for scenevibe.
//
// Configuration sections by subsystem:
//   - Paths: work/log/state directories and API bind address
//   - LLM: inference service connection settings
//   - Retry, RetryImagePrompts, RetryVideoPrompt: backoff policies
//   - RateLimit: shared inference call pacing
//   - Circuit: breaker thresholds
//   - Batch: per-scene worker pool size
//   - Scenes: detection threshold and manifest timing
//   - Uploads: accepted video uploads
//   - Logging: log format and level
type Config struct {
	Paths             Paths     `toml:"paths"`
	LLM               LLM       `toml:"llm"`
	Retry             Retry     `toml:"retry"`
	RetryImagePrompts Retry     `toml:"retry_image_prompts"`
	RetryVideoPrompt  Retry     `toml:"retry_video_prompt"`
	RateLimit         RateLimit `toml:"rate_limit"`
	Circuit           Circuit   `toml:"circuit"`
	Batch             Batch     `toml:"batch"`
	Scenes            Scenes    `toml:"scenes"`
	Uploads           Uploads   `toml:"uploads"`
	Logging           Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scenevibe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the server and CLI write into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.LogDir, c.Paths.StateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HistoryPath returns the run history database location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// LockPath returns the single-instance lock file used by the server.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "scenevibed.lock")
}

// FFmpegBinary returns the ffmpeg executable name used for scene detection and frame extraction.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for duration probing.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders cfg as TOML. The API key and token are redacted unless
// includeSecrets is set.
func Encode(cfg *Config, includeSecrets bool) ([]byte, error) {
	clone := *cfg
	if !includeSecrets {
		if clone.LLM.APIKey != "" {
			clone.LLM.APIKey = "<redacted>"
		}
		if clone.Paths.APIToken != "" {
			clone.Paths.APIToken = "<redacted>"
		}
	}
	data, err := toml.Marshal(clone)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

func secondsToDuration(seconds float64) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
