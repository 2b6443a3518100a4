package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"scenevibe/internal/config"
)

func clearKeyEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"SCENEVIBE_API_KEY", "OPENROUTER_API_KEY", "GEMINI_API_KEY", "SCENEVIBE_API_TOKEN"} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearKeyEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantWork := filepath.Join(tempHome, ".local", "share", "scenevibe", "work")
	if cfg.Paths.WorkDir != wantWork {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, wantWork)
	}
	if cfg.Paths.APIBind != "127.0.0.1:5000" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.LLM.APIKey != "" {
		t.Fatalf("expected empty api key, got %q", cfg.LLM.APIKey)
	}
	if cfg.RateLimit.RequestsPerSecond != 5 {
		t.Fatalf("unexpected rate limit: %v", cfg.RateLimit.RequestsPerSecond)
	}
	if cfg.Circuit.FailureThreshold != 10 || cfg.Circuit.RecoveryTimeout() != 120*time.Second || cfg.Circuit.SuccessThreshold != 3 {
		t.Fatalf("unexpected circuit defaults: %+v", cfg.Circuit)
	}
	if cfg.RetryImagePrompts.MaxDelay() != 30*time.Second {
		t.Fatalf("unexpected image prompt max delay: %v", cfg.RetryImagePrompts.MaxDelay())
	}
	if cfg.RetryVideoPrompt.InitialDelay() != 2*time.Second {
		t.Fatalf("unexpected video prompt initial delay: %v", cfg.RetryVideoPrompt.InitialDelay())
	}
	if cfg.Scenes.Threshold != 15 || cfg.Scenes.FPS != 30 {
		t.Fatalf("unexpected scene defaults: %+v", cfg.Scenes)
	}
	if cfg.Uploads.MaxBytes() != 500<<20 {
		t.Fatalf("unexpected upload limit: %d", cfg.Uploads.MaxBytes())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.WorkDir, cfg.Paths.LogDir, cfg.Paths.StateDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadAPIKeyFromEnvironmentOrder(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("OPENROUTER_API_KEY", "router-key")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "router-key" {
		t.Fatalf("expected OPENROUTER_API_KEY to win over GEMINI_API_KEY, got %q", cfg.LLM.APIKey)
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearKeyEnv(t)
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "scenevibe.toml")

	type payload struct {
		LLM struct {
			APIKey string `toml:"api_key"`
			Model  string `toml:"model"`
		} `toml:"llm"`
		Scenes struct {
			Threshold float64 `toml:"threshold"`
			FPS       int     `toml:"fps"`
		} `toml:"scenes"`
		Uploads struct {
			AllowedExtensions []string `toml:"allowed_extensions"`
		} `toml:"uploads"`
		Paths struct {
			WorkDir string `toml:"work_dir"`
		} `toml:"paths"`
	}
	custom := payload{}
	custom.LLM.APIKey = " abc123 "
	custom.LLM.Model = "google/gemini-2.0-flash"
	custom.Scenes.Threshold = 30
	custom.Scenes.FPS = 24
	custom.Uploads.AllowedExtensions = []string{".MP4", "mov", "mov", " "}
	custom.Paths.WorkDir = filepath.Join(tempDir, "work")

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if cfg.LLM.APIKey != "abc123" {
		t.Fatalf("expected trimmed api key, got %q", cfg.LLM.APIKey)
	}
	if cfg.Scenes.Threshold != 30 || cfg.Scenes.FPS != 24 {
		t.Fatalf("unexpected scenes: %+v", cfg.Scenes)
	}
	if got := strings.Join(cfg.Uploads.AllowedExtensions, ","); got != "mp4,mov" {
		t.Fatalf("unexpected normalized extensions: %q", got)
	}
	if !cfg.Uploads.Allows("clip.MOV") || cfg.Uploads.Allows("clip.avi") || cfg.Uploads.Allows("noext") {
		t.Fatalf("unexpected extension matching for %v", cfg.Uploads.AllowedExtensions)
	}
	if cfg.Retry.MaxRetries != config.Default().Retry.MaxRetries {
		t.Fatalf("expected untouched sections to keep defaults, got %+v", cfg.Retry)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "scenevibe.toml")
	if err := os.WriteFile(configPath, []byte("[scenes]\nthresh = 3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected unknown key to fail parsing")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"fps too high", func(c *config.Config) { c.Scenes.FPS = 120 }, "scenes.fps"},
		{"fps zero", func(c *config.Config) { c.Scenes.FPS = 0 }, "scenes.fps"},
		{"threshold", func(c *config.Config) { c.Scenes.Threshold = 150 }, "scenes.threshold"},
		{"multiplier", func(c *config.Config) { c.Retry.Multiplier = 0.5 }, "retry.multiplier"},
		{"delay order", func(c *config.Config) { c.RetryVideoPrompt.MaxDelaySeconds = 1 }, "retry_video_prompt.max_delay_seconds"},
		{"workers", func(c *config.Config) { c.Batch.Workers = 0 }, "batch.workers"},
		{"rate", func(c *config.Config) { c.RateLimit.RequestsPerSecond = -1 }, "rate_limit"},
		{"format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in error, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleLoadsCleanly(t *testing.T) {
	clearKeyEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Batch.Workers != 3 {
		t.Fatalf("unexpected workers from sample: %d", cfg.Batch.Workers)
	}
}

func TestEncodeRedactsAPIKey(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.APIKey = "secret-value"
	cfg.Paths.APIToken = "token-value"
	data, err := config.Encode(&cfg, false)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if strings.Contains(string(data), "secret-value") || strings.Contains(string(data), "token-value") {
		t.Fatalf("expected secrets to be redacted: %s", data)
	}
	data, err = config.Encode(&cfg, true)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(data), "secret-value") {
		t.Fatalf("expected api key with includeSecrets: %s", data)
	}
}

func TestLoadAPITokenFromEnv(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("SCENEVIBE_API_TOKEN", " env-token ")
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[paths]\nwork_dir = \"/tmp/sv-work\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Paths.APIToken != "env-token" {
		t.Fatalf("expected token from env, got %q", cfg.Paths.APIToken)
	}
}
