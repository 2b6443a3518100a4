package history

import "time"

// Kind identifies the workflow a run executed.
type Kind string

const (
	KindAnalyze      Kind = "analyze"
	KindImagePrompts Kind = "image_prompts"
	KindVideoPrompt  Kind = "video_prompt"
	KindVibe         Kind = "vibe_extraction"
)

// Status is the outcome of a run.
type Status string

const (
	// StatusSucceeded means every item came from the remote service or the
	// local pipeline without substitution.
	StatusSucceeded Status = "succeeded"
	// StatusDegraded means the run finished but some output is fallback text.
	StatusDegraded Status = "degraded"
	StatusFailed   Status = "failed"
)

// Run is one recorded workflow execution.
type Run struct {
	ID                string    `json:"id"`
	Kind              Kind      `json:"kind"`
	Status            Status    `json:"status"`
	Subject           string    `json:"subject,omitempty"`
	RequestID         string    `json:"request_id,omitempty"`
	Items             int       `json:"items"`
	FellBack          int       `json:"fell_back"`
	CircuitRejections int       `json:"circuit_rejections"`
	ErrorMessage      string    `json:"error,omitempty"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
}

// Duration returns the wall time of the run.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// StatusFor derives a status from batch counters and a terminal error.
func StatusFor(err error, fellBack int) Status {
	switch {
	case err != nil:
		return StatusFailed
	case fellBack > 0:
		return StatusDegraded
	default:
		return StatusSucceeded
	}
}
