package app

import (
	"context"
	"time"

	"scenevibe/internal/history"
	"scenevibe/internal/logging"
)

// CircuitStatus describes the shared breaker.
type CircuitStatus struct {
	State                  string     `json:"state"`
	Failures               int        `json:"failures"`
	Successes              int        `json:"successes"`
	FailureThreshold       int        `json:"failure_threshold"`
	SuccessThreshold       int        `json:"success_threshold"`
	RecoveryTimeoutSeconds float64    `json:"recovery_timeout_seconds"`
	RetryInSeconds         float64    `json:"retry_in_seconds,omitempty"`
	LastFailure            *time.Time `json:"last_failure,omitempty"`
}

// RateLimitStatus describes the shared limiter.
type RateLimitStatus struct {
	RequestsPerSecond float64 `json:"requests_per_second"`
	IntervalMillis    int64   `json:"interval_ms"`
}

// Status is a point-in-time view of the process.
type Status struct {
	Model            string                 `json:"model"`
	APIKeyConfigured bool                   `json:"api_key_configured"`
	UptimeSeconds    int64                  `json:"uptime_seconds"`
	Circuit          CircuitStatus          `json:"circuit"`
	RateLimit        RateLimitStatus        `json:"rate_limit"`
	Runs             map[history.Status]int `json:"runs,omitempty"`
	RecentEvents     []logging.LogEvent     `json:"recent_events"`
}

// Status snapshots the breaker, limiter, run counts, and recent warnings.
func (a *App) Status(ctx context.Context) Status {
	snap := a.breaker.Snapshot()
	circuit := CircuitStatus{
		State:                  snap.State.String(),
		Failures:               snap.Failures,
		Successes:              snap.Successes,
		FailureThreshold:       snap.FailureThreshold,
		SuccessThreshold:       snap.SuccessThreshold,
		RecoveryTimeoutSeconds: snap.RecoveryTimeout.Seconds(),
		RetryInSeconds:         snap.Remaining.Seconds(),
	}
	if !snap.LastFailure.IsZero() {
		last := snap.LastFailure.UTC()
		circuit.LastFailure = &last
	}

	status := Status{
		Model:            a.client.Model(),
		APIKeyConfigured: a.client.HasAPIKey(),
		UptimeSeconds:    int64(time.Since(a.started).Seconds()),
		Circuit:          circuit,
		RateLimit: RateLimitStatus{
			RequestsPerSecond: a.cfg.RateLimit.RequestsPerSecond,
			IntervalMillis:    a.limiter.Interval().Milliseconds(),
		},
		RecentEvents: a.recent.Events(),
	}
	if status.RecentEvents == nil {
		status.RecentEvents = []logging.LogEvent{}
	}
	if a.history != nil {
		counts, err := a.history.Stats(ctx)
		if err != nil {
			a.logger.Debug("history stats unavailable", logging.Error(err))
		} else {
			status.Runs = counts
		}
	}
	return status
}
