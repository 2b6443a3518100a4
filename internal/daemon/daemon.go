package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"scenevibe/internal/api"
	"scenevibe/internal/app"
	"scenevibe/internal/config"
	"scenevibe/internal/deps"
	"scenevibe/internal/logging"
	"scenevibe/internal/preflight"
	"scenevibe/internal/staging"
)

// cleanupInterval is how often stale work directories are swept while running.
const cleanupInterval = time.Hour

// Daemon runs the HTTP server and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	app    *app.App

	lockPath string
	lock     *flock.Flock

	api *apiServer

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started time.Time
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Uptime       time.Duration
	APIAddress   string
	LockFilePath string
	HistoryPath  string
	Dependencies []deps.Status
}

// New constructs a daemon around an assembled app.
func New(cfg *config.Config, application *app.App, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || application == nil {
		return nil, errors.New("daemon requires config and app")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	router := api.NewRouter(api.RouterConfig{
		Service:          application,
		Uploads:          cfg.Uploads,
		DefaultThreshold: cfg.Scenes.Threshold,
		Logger:           logging.NewComponentLogger(logger, "api"),
		WorkDir:          cfg.Paths.WorkDir,
		Token:            cfg.Paths.APIToken,
	})

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		app:      application,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		api:      newAPIServer(cfg.Paths.APIBind, router, logging.NewComponentLogger(logger, "api-server")),
	}, nil
}

// Start acquires the instance lock, reclaims stale work directories, and
// begins serving HTTP.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another scenevibe daemon instance is already running")
	}

	d.logStartupChecks()
	d.cleanStale(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.cancel = cancel
	d.done = make(chan struct{})
	d.started = time.Now()
	go d.cleanupLoop(runCtx, d.done)

	d.running.Store(true)
	d.logger.Info("scenevibe daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.api.address()),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop stops serving and releases the instance lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	if d.done != nil {
		<-d.done
		d.done = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_lock_release_failed"),
			logging.String(logging.FieldErrorHint, "remove the lock file if no daemon is running"),
			logging.String(logging.FieldImpact, "next start may report another instance"),
		)
	}
	d.running.Store(false)
	d.logger.Info("scenevibe daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// APIAddress returns the bound listener address, or "" when not serving.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		APIAddress:   d.api.address(),
		LockFilePath: d.lockPath,
		HistoryPath:  d.cfg.HistoryPath(),
		Dependencies: preflight.CheckSystemDeps(d.cfg),
	}
	if status.Running {
		status.Uptime = time.Since(d.started)
	}
	return status
}

func (d *Daemon) logStartupChecks() {
	for _, result := range []preflight.Result{
		preflight.CheckDirectoryAccess("Work directory", d.cfg.Paths.WorkDir),
		preflight.CheckDirectoryAccess("State directory", d.cfg.Paths.StateDir),
	} {
		if !result.Passed {
			logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
				logging.String(logging.FieldErrorHint, "fix directory permissions in config [paths]"),
				logging.String(logging.FieldImpact, "analyze requests will fail"),
			)
		}
	}
	for _, dep := range deps.Missing(preflight.CheckSystemDeps(d.cfg)) {
		logging.WarnWithContext(d.logger, "required binary missing", "dependency_missing",
			logging.String("dependency", dep.Name),
			logging.String("command", dep.Command),
			logging.String("detail", dep.Detail),
			logging.String(logging.FieldErrorHint, "install ffmpeg and ensure it is on PATH"),
			logging.String(logging.FieldImpact, "scene analysis unavailable"),
		)
	}
}

func (d *Daemon) cleanStale(ctx context.Context) {
	maxAge := time.Duration(d.cfg.Paths.StaleWorkHours) * time.Hour
	result := staging.CleanStale(ctx, d.cfg.Paths.WorkDir, maxAge, d.logger)
	if len(result.Removed) > 0 || len(result.Errors) > 0 {
		d.logger.Info("work directory cleanup finished",
			logging.Int("removed", len(result.Removed)),
			logging.Int("errors", len(result.Errors)),
			logging.String(logging.FieldEventType, "work_cleanup_summary"),
		)
	}
}

func (d *Daemon) cleanupLoop(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.cleanStale(ctx)
		}
	}
}
