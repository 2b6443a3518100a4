package prompts

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"scenevibe/internal/batch"
	"scenevibe/internal/logging"
	"scenevibe/internal/resilience"
	"scenevibe/internal/services"
	"scenevibe/internal/services/llm"
	"scenevibe/internal/staging"
)

const (
	imageInstruction = "Create a detailed image generation prompt describing this frame for AI systems."
	videoInstruction = "Create a video generation prompt from these image prompts:\n\n"
	videoClosing     = "Generate a comprehensive video prompt with transitions."
	vibeInstruction  = "Analyze this video's visual style and brand identity in one paragraph."

	// BlackFramePrompt is returned for the final frame, which closes every
	// edit on black.
	BlackFramePrompt = "A completely solid black frame with no elements, text, logos, or features. Pure pitch-black image from edge to edge, suitable for video ending."

	// FallbackWarning accompanies a video prompt assembled locally.
	FallbackWarning = "Generated using fallback due to API error"

	fallbackExcerptRunes = 100
)

// Generation settings shared by every prompt call.
const (
	temperature = 0.7
	topP        = 0.95
	topK        = 40

	vibeMaxTokens  = 1024
	imageMaxTokens = 450
	videoMaxTokens = 750
)

// Policies selects the retry policy per workflow. The breaker and limiter are
// shared across all of them.
type Policies struct {
	Image resilience.RetryPolicy
	Video resilience.RetryPolicy
	Vibe  resilience.RetryPolicy
}

// DefaultPolicies returns the policies used when none are configured.
func DefaultPolicies() Policies {
	image := resilience.DefaultRetryPolicy()
	image.MaxDelay = 30 * time.Second
	video := resilience.DefaultRetryPolicy()
	video.InitialDelay = 2 * time.Second
	return Policies{Image: image, Video: video, Vibe: resilience.DefaultRetryPolicy()}
}

// Frame identifies a scene frame by file path, inline base64 preview, or both.
// The file wins when it exists inside a timeline directory of the frame root.
type Frame struct {
	Path    string `json:"frame_path,omitempty"`
	Preview string `json:"frame_preview,omitempty"`
}

// Service runs the prompt workflows against the inference service.
type Service struct {
	client  *llm.Client
	image   *resilience.Caller
	video   *resilience.Caller
	vibe    *resilience.Caller
	workers int
	logger  *slog.Logger

	frameRoot string
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithFrameRoot allows frame paths inside timeline-* directories of dir.
// Without it, frames are only read from their inline previews.
func WithFrameRoot(dir string) ServiceOption {
	return func(s *Service) {
		s.frameRoot = strings.TrimSpace(dir)
	}
}

// NewService builds a Service. Every workflow derives its Caller from caller
// so they share one breaker and one limiter.
func NewService(client *llm.Client, caller *resilience.Caller, policies Policies, workers int, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	if workers <= 0 {
		workers = batch.DefaultWorkers
	}
	s := &Service{
		client:  client,
		image:   caller.WithPolicy(policies.Image),
		video:   caller.WithPolicy(policies.Video),
		vibe:    caller.WithPolicy(policies.Vibe),
		workers: workers,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FramePlaceholder is the prompt used for a frame whose description failed.
func FramePlaceholder(index int) string {
	return fmt.Sprintf("Frame %d: Professional video frame with cinematic composition and lighting.", index+1)
}

// ImagePrompts describes every frame, in order. The last frame always gets
// BlackFramePrompt without a remote call. Failed frames, including blocked
// responses and frames that cannot be read, get FramePlaceholder.
func (s *Service) ImagePrompts(ctx context.Context, apiKey string, frames []Frame) ([]string, batch.Report) {
	client := s.client.WithAPIKey(apiKey)
	last := len(frames) - 1
	describe := func(ctx context.Context, index int, frame Frame) (string, error) {
		if index == last {
			return BlackFramePrompt, nil
		}
		data, err := s.loadFrame(frame)
		if err != nil {
			return "", err
		}
		resp, err := resilience.Call(ctx, s.image, func(ctx context.Context) (llm.Response, error) {
			return client.Generate(ctx, llm.Request{
				Instruction: imageInstruction,
				Image:       data,
				ImageMIME:   imageMIME(data),
				MaxTokens:   imageMaxTokens,
				Temperature: temperature,
				TopP:        topP,
				TopK:        topK,
			})
		})
		if err != nil {
			return "", err
		}
		s.warnTruncated(ctx, "image_prompts", resp)
		return resp.Text, nil
	}
	fallback := func(index int, _ Frame, _ error) string {
		return FramePlaceholder(index)
	}
	results, report := batch.Process(ctx, frames, describe, fallback,
		batch.WithWorkers(s.workers),
		batch.WithLogger(s.logger),
		batch.WithOperation("image_prompts"),
	)
	s.logger.Info("image prompts generated",
		logging.Int("frames", report.Total),
		logging.Int("succeeded", report.Succeeded),
		logging.Int("fell_back", report.FellBack),
		logging.Int("circuit_rejections", report.CircuitHit),
		logging.Duration("elapsed", report.Elapsed),
		logging.String(logging.FieldEventType, "image_prompts_complete"),
	)
	return results, report
}

// VideoPrompt condenses the frame prompts into one video generation prompt.
// When the remote call fails the prompt is assembled locally and fallback is
// true.
func (s *Service) VideoPrompt(ctx context.Context, apiKey string, imagePrompts []string) (prompt string, fallback bool) {
	client := s.client.WithAPIKey(apiKey)
	ctx = services.WithOperation(ctx, "video_prompt")
	resp, err := resilience.Call(ctx, s.video, func(ctx context.Context) (llm.Response, error) {
		return client.Generate(ctx, llm.Request{
			Instruction: videoPromptInstruction(imagePrompts),
			MaxTokens:   videoMaxTokens,
			Temperature: temperature,
			TopP:        topP,
			TopK:        topK,
		})
	})
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "video prompt generation failed, using fallback", "video_prompt_fallback",
			logging.Error(err),
			logging.Int("image_prompts", len(imagePrompts)),
			logging.String(logging.FieldErrorHint, "check inference service status and api key"),
			logging.String(logging.FieldImpact, "video prompt assembled from frame prompts"),
		)
		return FallbackVideoPrompt(imagePrompts), true
	}
	s.warnTruncated(ctx, "video_prompt", resp)
	return resp.Text, false
}

// Vibe describes the visual style of a whole clip. Failures are returned to
// the caller.
func (s *Service) Vibe(ctx context.Context, apiKey string, video []byte, mime string) (string, error) {
	if len(video) == 0 {
		return "", services.Wrap(services.ErrValidation, "vibe", "read video", "video is empty", nil)
	}
	client := s.client.WithAPIKey(apiKey)
	ctx = services.WithOperation(ctx, "vibe_extraction")
	resp, err := resilience.Call(ctx, s.vibe, func(ctx context.Context) (llm.Response, error) {
		return client.Generate(ctx, llm.Request{
			Instruction: vibeInstruction,
			Video:       video,
			VideoMIME:   mime,
			MaxTokens:   vibeMaxTokens,
			Temperature: temperature,
			TopP:        topP,
			TopK:        topK,
		})
	})
	if err != nil {
		return "", services.Wrap(services.ErrRemote, "vibe", "generate", "vibe extraction failed", err)
	}
	s.warnTruncated(ctx, "vibe_extraction", resp)
	return resp.Text, nil
}

// FallbackVideoPrompt joins excerpts of the frame prompts into a sequence
// description.
func FallbackVideoPrompt(imagePrompts []string) string {
	var b strings.Builder
	b.WriteString("Video sequence: ")
	for i, prompt := range imagePrompts {
		fmt.Fprintf(&b, "Frame %d: %s... ", i+1, excerpt(prompt, fallbackExcerptRunes))
		if i < len(imagePrompts)-1 {
			b.WriteString("Smooth transition. ")
		}
	}
	return b.String()
}

func videoPromptInstruction(imagePrompts []string) string {
	var b strings.Builder
	b.WriteString(videoInstruction)
	for i, prompt := range imagePrompts {
		fmt.Fprintf(&b, "Frame %d: %s\n\n", i+1, prompt)
	}
	b.WriteString(videoClosing)
	return b.String()
}

func (s *Service) warnTruncated(ctx context.Context, operation string, resp llm.Response) {
	if !resp.Truncated {
		return
	}
	logging.WithContext(ctx, s.logger).Warn("response truncated at token limit but usable",
		logging.String(logging.FieldOperation, operation),
		logging.String("finish_reason", resp.FinishReason),
		logging.String(logging.FieldEventType, "response_truncated"),
	)
}

// ErrFrameOutsideWorkDir reports a frame path that is not inside a timeline
// directory of the frame root.
var ErrFrameOutsideWorkDir = errors.New("frame path is outside the work directory")

func (s *Service) loadFrame(frame Frame) ([]byte, error) {
	if path := strings.TrimSpace(frame.Path); path != "" {
		data, err := s.readFramePath(path)
		if err == nil {
			return data, nil
		}
		if frame.Preview == "" || !(errors.Is(err, os.ErrNotExist) || errors.Is(err, ErrFrameOutsideWorkDir)) {
			return nil, fmt.Errorf("read frame: %w", err)
		}
	}
	preview := strings.TrimSpace(frame.Preview)
	if preview == "" {
		return nil, errors.New("frame has neither a readable path nor a preview")
	}
	if _, payload, ok := strings.Cut(preview, ","); ok {
		preview = payload
	}
	data, err := base64.StdEncoding.DecodeString(preview)
	if err != nil {
		return nil, fmt.Errorf("decode frame preview: %w", err)
	}
	return data, nil
}

// readFramePath reads path only when it resolves to a file inside a
// timeline-* directory directly under the frame root.
func (s *Service) readFramePath(path string) ([]byte, error) {
	if s.frameRoot == "" {
		return nil, ErrFrameOutsideWorkDir
	}
	root, err := resolvePath(s.frameRoot)
	if err != nil {
		return nil, err
	}
	target, err := resolvePath(path)
	if err != nil {
		return nil, err
	}
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return nil, ErrFrameOutsideWorkDir
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) < 2 || !strings.HasPrefix(parts[0], staging.TimelinePrefix) {
		return nil, ErrFrameOutsideWorkDir
	}
	return os.ReadFile(target)
}

// resolvePath cleans path to an absolute form and follows symlinks when the
// path exists.
func resolvePath(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return abs, nil
		}
		return "", err
	}
	return resolved, nil
}

func imageMIME(data []byte) string {
	if detected := http.DetectContentType(data); strings.HasPrefix(detected, "image/") {
		return detected
	}
	return "image/png"
}

func excerpt(text string, limit int) string {
	runes := []rune(text)
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return text
}
