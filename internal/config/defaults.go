package config

const (
	defaultConfigPath           = "~/.config/scenevibe/config.toml"
	defaultWorkDir              = "~/.local/share/scenevibe/work"
	defaultLogDir               = "~/.local/share/scenevibe/logs"
	defaultStateDir             = "~/.local/share/scenevibe"
	defaultAPIBind              = "127.0.0.1:5000"
	defaultStaleWorkHours       = 24
	defaultLLMBaseURL           = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel             = "google/gemini-2.5-flash"
	defaultLLMReferer           = "https://github.com/scenevibe/scenevibe"
	defaultLLMTitle             = "scenevibe"
	defaultLLMTimeoutSeconds    = 120
	defaultRequestsPerSecond    = 5
	defaultFailureThreshold     = 10
	defaultRecoveryTimeout      = 120
	defaultSuccessThreshold     = 3
	defaultBatchWorkers         = 3
	defaultSceneThreshold       = 15.0
	defaultFPS                  = 30
	defaultFadeOutSeconds       = 1.9
	defaultMusicFile            = "audio/fade_story.mp3"
	defaultUploadMaxMiB         = 500
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultRetryMultiplier      = 2.0
	defaultRetryMaxRetries      = 5
	defaultRetryInitialSeconds  = 1.0
	defaultRetryMaxSeconds      = 60.0
	defaultImageRetryMaxSeconds = 30.0
	defaultVideoRetryInitial    = 2.0
)

var defaultAllowedExtensions = []string{"mp4", "avi", "mov", "mkv", "webm", "flv", "wmv", "mpeg", "mpg"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:        defaultWorkDir,
			LogDir:         defaultLogDir,
			StateDir:       defaultStateDir,
			APIBind:        defaultAPIBind,
			StaleWorkHours: defaultStaleWorkHours,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Retry: Retry{
			MaxRetries:          defaultRetryMaxRetries,
			InitialDelaySeconds: defaultRetryInitialSeconds,
			MaxDelaySeconds:     defaultRetryMaxSeconds,
			Multiplier:          defaultRetryMultiplier,
			Jitter:              true,
		},
		RetryImagePrompts: Retry{
			MaxRetries:          defaultRetryMaxRetries,
			InitialDelaySeconds: defaultRetryInitialSeconds,
			MaxDelaySeconds:     defaultImageRetryMaxSeconds,
			Multiplier:          defaultRetryMultiplier,
			Jitter:              true,
		},
		RetryVideoPrompt: Retry{
			MaxRetries:          defaultRetryMaxRetries,
			InitialDelaySeconds: defaultVideoRetryInitial,
			MaxDelaySeconds:     defaultRetryMaxSeconds,
			Multiplier:          defaultRetryMultiplier,
			Jitter:              true,
		},
		RateLimit: RateLimit{
			RequestsPerSecond: defaultRequestsPerSecond,
		},
		Circuit: Circuit{
			FailureThreshold:       defaultFailureThreshold,
			RecoveryTimeoutSeconds: defaultRecoveryTimeout,
			SuccessThreshold:       defaultSuccessThreshold,
		},
		Batch: Batch{
			Workers: defaultBatchWorkers,
		},
		Scenes: Scenes{
			Threshold:      defaultSceneThreshold,
			FPS:            defaultFPS,
			FadeOutSeconds: defaultFadeOutSeconds,
			MusicFile:      defaultMusicFile,
		},
		Uploads: Uploads{
			MaxMiB:            defaultUploadMaxMiB,
			AllowedExtensions: append([]string(nil), defaultAllowedExtensions...),
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
