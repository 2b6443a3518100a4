package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"scenevibe/internal/batch"
	"scenevibe/internal/config"
	"scenevibe/internal/history"
	"scenevibe/internal/logging"
	"scenevibe/internal/media/scenes"
	"scenevibe/internal/prompts"
	"scenevibe/internal/resilience"
	"scenevibe/internal/services"
	"scenevibe/internal/services/llm"
	"scenevibe/internal/timecode"
	"scenevibe/internal/timeline"
)

const recentEventCapacity = 50

// App owns the process-wide resilience gates and exposes the workflows shared
// by the CLI and the HTTP server. One App is built per process so every
// request observes the same breaker and rate limiter.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	recent *logging.RecentBuffer

	breaker *resilience.Breaker
	limiter *resilience.RateLimiter
	caller  *resilience.Caller

	client   *llm.Client
	prompts  *prompts.Service
	timeline *timeline.Builder
	history  *history.Store

	started time.Time
}

// Option customizes App construction.
type Option func(*options)

type options struct {
	httpClient *http.Client
	history    *history.Store
	detector   timeline.Detector
	extractor  timeline.Extractor
	sleeper    func(time.Duration)
}

// WithHTTPClient overrides the client used for inference requests.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithHistory records every workflow run in store. The caller keeps ownership
// of the store.
func WithHistory(store *history.Store) Option {
	return func(o *options) { o.history = store }
}

// WithSceneTools replaces the ffmpeg-backed detector and frame extractor.
func WithSceneTools(detector timeline.Detector, extractor timeline.Extractor) Option {
	return func(o *options) {
		o.detector = detector
		o.extractor = extractor
	}
}

// WithRetrySleeper overrides how retry backoff waits, primarily for tests.
func WithRetrySleeper(sleeper func(time.Duration)) Option {
	return func(o *options) { o.sleeper = sleeper }
}

// New wires the resilience stack, inference client, prompt workflows, and
// timeline builder from cfg.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app requires a config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	recent := logging.NewRecentBuffer(recentEventCapacity, slog.LevelWarn)
	logger = logging.TeeLogger(logger, recent.Handler())

	classifier := resilience.DefaultClassifier()
	retryOpts := []resilience.RetryOption{
		resilience.WithClassifier(classifier),
		resilience.WithRetryLogger(logging.NewComponentLogger(logger, "retry")),
	}
	if o.sleeper != nil {
		retryOpts = append(retryOpts, resilience.WithSleeper(o.sleeper))
	}
	retrier := resilience.NewRetrier(retryPolicy(cfg.Retry), retryOpts...)
	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		FailureThreshold: cfg.Circuit.FailureThreshold,
		RecoveryTimeout:  cfg.Circuit.RecoveryTimeout(),
		SuccessThreshold: cfg.Circuit.SuccessThreshold,
		CountsAsFailure:  resilience.HealthFilter(classifier),
	}, resilience.WithBreakerLogger(logging.NewComponentLogger(logger, "circuit")))
	limiter := resilience.NewRateLimiter(cfg.RateLimit.RequestsPerSecond)
	caller := resilience.NewCaller(retrier, breaker, limiter, logger)

	var clientOpts []llm.Option
	if o.httpClient != nil {
		clientOpts = append(clientOpts, llm.WithHTTPClient(o.httpClient))
	}
	client := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	}, clientOpts...)

	policies := prompts.Policies{
		Image: retryPolicy(cfg.RetryImagePrompts),
		Video: retryPolicy(cfg.RetryVideoPrompt),
		Vibe:  retryPolicy(cfg.Retry),
	}
	promptSvc := prompts.NewService(client, caller, policies, cfg.Batch.Workers, logging.NewComponentLogger(logger, "prompts"),
		prompts.WithFrameRoot(cfg.Paths.WorkDir))

	ffmpeg := scenes.FFmpeg{FFmpegBinary: cfg.FFmpegBinary(), FFprobeBinary: cfg.FFprobeBinary()}
	builder := &timeline.Builder{
		Detector:       ffmpeg,
		Extractor:      ffmpeg,
		FPS:            cfg.Scenes.FPS,
		WorkDir:        cfg.Paths.WorkDir,
		MusicFile:      cfg.Scenes.MusicFile,
		FadeInSeconds:  cfg.Scenes.FadeInSeconds,
		FadeOutSeconds: cfg.Scenes.FadeOutSeconds,
		Logger:         logging.NewComponentLogger(logger, "timeline"),
	}
	if o.detector != nil {
		builder.Detector = o.detector
	}
	if o.extractor != nil {
		builder.Extractor = o.extractor
	}

	return &App{
		cfg:      cfg,
		logger:   logger,
		recent:   recent,
		breaker:  breaker,
		limiter:  limiter,
		caller:   caller,
		client:   client,
		prompts:  promptSvc,
		timeline: builder,
		history:  o.history,
		started:  time.Now(),
	}, nil
}

// Config returns the configuration the app was built from.
func (a *App) Config() *config.Config { return a.cfg }

// Logger returns the app logger, which also feeds the recent event buffer.
func (a *App) Logger() *slog.Logger { return a.logger }

// Breaker exposes the shared circuit breaker.
func (a *App) Breaker() *resilience.Breaker { return a.breaker }

// Analyze detects scenes in the video at path and returns a manifest with
// inline frame previews. The manifest's frame directory stays on disk so
// frame paths can be passed to ImagePrompts; the caller may Cleanup it.
func (a *App) Analyze(ctx context.Context, path, name string, threshold float64) (*timeline.Manifest, error) {
	run := a.startRun(ctx, history.KindAnalyze, name)
	if strings.TrimSpace(name) == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		run.Subject = name
	}

	manifest, err := a.timeline.Build(ctx, path, name, threshold)
	if err == nil {
		if err = manifest.AttachPreviews(); err != nil {
			_ = manifest.Cleanup()
			manifest = nil
			err = services.Wrap(services.ErrExternalTool, "analyze", "attach previews", "read extracted frames", err)
		}
	} else {
		err = classifyBuildError(err)
	}
	if manifest != nil {
		run.Items = len(manifest.Scenes)
	}
	a.finishRun(ctx, run, err)
	if err != nil {
		return nil, err
	}
	return manifest, nil
}

// ImagePrompts describes each frame. apiKey overrides the configured key when
// set. The batch report is returned alongside the prompts so callers can
// surface how many frames fell back.
func (a *App) ImagePrompts(ctx context.Context, apiKey string, frames []prompts.Frame) ([]string, batch.Report, error) {
	if len(frames) == 0 {
		return nil, batch.Report{}, services.Wrap(services.ErrValidation, "image_prompts", "validate request", "at least one scene is required", nil)
	}
	if err := a.requireKey(apiKey); err != nil {
		return nil, batch.Report{}, err
	}
	run := a.startRun(ctx, history.KindImagePrompts, fmt.Sprintf("%d frames", len(frames)))
	out, report := a.prompts.ImagePrompts(ctx, apiKey, frames)
	run.Items = report.Total
	run.FellBack = report.FellBack
	run.CircuitRejections = report.CircuitHit
	a.finishRun(ctx, run, nil)
	return out, report, nil
}

// VideoPrompt condenses image prompts into one video prompt. fallback reports
// whether the prompt was assembled locally after the remote call failed.
func (a *App) VideoPrompt(ctx context.Context, apiKey string, imagePrompts []string) (string, bool, error) {
	if len(imagePrompts) == 0 {
		return "", false, services.Wrap(services.ErrValidation, "video_prompt", "validate request", "at least one image prompt is required", nil)
	}
	if err := a.requireKey(apiKey); err != nil {
		return "", false, err
	}
	run := a.startRun(ctx, history.KindVideoPrompt, fmt.Sprintf("%d prompts", len(imagePrompts)))
	prompt, fallback := a.prompts.VideoPrompt(ctx, apiKey, imagePrompts)
	run.Items = 1
	if fallback {
		run.FellBack = 1
	}
	a.finishRun(ctx, run, nil)
	return prompt, fallback, nil
}

// Vibe extracts a one-paragraph style description from the whole video.
func (a *App) Vibe(ctx context.Context, apiKey, subject string, video []byte, mime string) (string, error) {
	if err := a.requireKey(apiKey); err != nil {
		return "", err
	}
	run := a.startRun(ctx, history.KindVibe, subject)
	run.Items = 1
	text, err := a.prompts.Vibe(ctx, apiKey, video, mime)
	a.finishRun(ctx, run, err)
	return text, err
}

// Runs lists recorded runs, newest first. Without a history store the list
// is empty.
func (a *App) Runs(ctx context.Context, opts history.ListOptions) ([]*history.Run, error) {
	if a.history == nil {
		return nil, nil
	}
	return a.history.List(ctx, opts)
}

// Run fetches one recorded run.
func (a *App) Run(ctx context.Context, id string) (*history.Run, error) {
	if a.history == nil {
		return nil, services.Wrap(services.ErrNotFound, "history", "get run", "run history is disabled", nil)
	}
	return a.history.Get(ctx, id)
}

func (a *App) requireKey(apiKey string) error {
	if strings.TrimSpace(apiKey) != "" || a.client.HasAPIKey() {
		return nil
	}
	return services.Wrap(services.ErrValidation, "llm", "resolve api key", "api_key is required when no key is configured", nil)
}

func (a *App) startRun(ctx context.Context, kind history.Kind, subject string) *history.Run {
	run := &history.Run{Kind: kind, Subject: subject, StartedAt: time.Now().UTC()}
	if id, ok := services.RequestIDFromContext(ctx); ok {
		run.RequestID = id
	}
	return run
}

func (a *App) finishRun(ctx context.Context, run *history.Run, err error) {
	run.FinishedAt = time.Now().UTC()
	run.Status = history.StatusFor(err, run.FellBack)
	if err != nil {
		run.ErrorMessage = err.Error()
	}
	logger := logging.WithContext(ctx, a.logger)
	logger.Info("workflow finished",
		logging.String("kind", string(run.Kind)),
		logging.String("status", string(run.Status)),
		logging.Int("items", run.Items),
		logging.Int("fell_back", run.FellBack),
		logging.Duration("elapsed", run.Duration()),
		logging.String(logging.FieldEventType, "workflow_finished"),
	)
	if a.history == nil {
		return
	}
	// History is best effort; a full disk must not fail the request.
	if recErr := a.history.Record(context.WithoutCancel(ctx), run); recErr != nil {
		logging.WarnWithContext(logger, "failed to record run history", "history_record_failed",
			logging.Error(recErr),
			logging.String(logging.FieldErrorHint, "check state_dir permissions and free space"),
			logging.String(logging.FieldImpact, "run missing from history"),
		)
	}
}

func classifyBuildError(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, services.ErrValidation):
		return err
	case errors.Is(err, timecode.ErrInvalidFPS), errors.Is(err, timecode.ErrAmbiguousFPS):
		return services.Wrap(services.ErrConfiguration, "analyze", "build timeline", "scenes.fps is not usable for frame notation", err)
	default:
		return services.Wrap(services.ErrExternalTool, "analyze", "build timeline", "scene detection failed", err)
	}
}
