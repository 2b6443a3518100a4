package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"scenevibe/internal/app"
	"scenevibe/internal/batch"
	"scenevibe/internal/config"
	"scenevibe/internal/history"
	"scenevibe/internal/logging"
	"scenevibe/internal/prompts"
	"scenevibe/internal/timeline"
)

// Service is the workflow surface the handlers depend on. *app.App
// implements it.
type Service interface {
	Analyze(ctx context.Context, path, name string, threshold float64) (*timeline.Manifest, error)
	ImagePrompts(ctx context.Context, apiKey string, frames []prompts.Frame) ([]string, batch.Report, error)
	VideoPrompt(ctx context.Context, apiKey string, imagePrompts []string) (string, bool, error)
	Vibe(ctx context.Context, apiKey, subject string, video []byte, mime string) (string, error)
	Status(ctx context.Context) app.Status
	Runs(ctx context.Context, opts history.ListOptions) ([]*history.Run, error)
	Run(ctx context.Context, id string) (*history.Run, error)
}

var _ Service = (*app.App)(nil)

// RouterConfig wires the handlers.
type RouterConfig struct {
	Service          Service
	Uploads          config.Uploads
	DefaultThreshold float64
	Logger           *slog.Logger

	// WorkDir receives uploaded videos while they are processed.
	WorkDir string

	// Token, when set, is required as a bearer token on every endpoint
	// except health.
	Token string
}

// NewRouter mounts every endpoint behind request id, recovery, access
// logging, and CORS middleware.
func NewRouter(cfg RouterConfig) *chi.Mux {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSMiddleware())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler())

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(cfg.Token))

			r.Post("/analyze", analyzeHandler(cfg))
			r.Post("/edit", editHandler())
			r.Get("/status", statusHandler(cfg))
			r.Get("/runs", listRunsHandler(cfg))
			r.Get("/runs/{id}", getRunHandler(cfg))

			r.Route("/gemini", func(r chi.Router) {
				r.Post("/vibe-extraction", vibeHandler(cfg))
				r.Post("/image-prompts", imagePromptsHandler(cfg))
				r.Post("/video-prompt", videoPromptHandler(cfg))
			})
		})
	})

	return r
}

func healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Message: "Backend server is running"})
	}
}
