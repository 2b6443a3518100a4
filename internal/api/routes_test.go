package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scenevibe/internal/app"
	"scenevibe/internal/batch"
	"scenevibe/internal/config"
	"scenevibe/internal/history"
	"scenevibe/internal/prompts"
	"scenevibe/internal/services"
	"scenevibe/internal/timeline"
)

type fakeService struct {
	analyzePath      string
	analyzeName      string
	analyzeThreshold float64
	analyzeErr       error
	uploadSeen       []byte

	imageKey    string
	imageFrames []prompts.Frame

	videoFallback bool
	vibeErr       error
	vibeMIME      string
	vibeVideo     []byte

	runs []*history.Run
}

func (f *fakeService) Analyze(_ context.Context, path, name string, threshold float64) (*timeline.Manifest, error) {
	f.analyzePath = path
	f.analyzeName = name
	f.analyzeThreshold = threshold
	f.uploadSeen, _ = os.ReadFile(path)
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	return &timeline.Manifest{Name: name, Scenes: []timeline.Scene{{Index: 0, FramePreview: "cHJldmlldw=="}}}, nil
}

func (f *fakeService) ImagePrompts(_ context.Context, apiKey string, frames []prompts.Frame) ([]string, batch.Report, error) {
	f.imageKey = apiKey
	f.imageFrames = frames
	out := make([]string, len(frames))
	for i := range frames {
		out[i] = prompts.FramePlaceholder(i)
	}
	return out, batch.Report{Total: len(frames), FellBack: 1}, nil
}

func (f *fakeService) VideoPrompt(_ context.Context, _ string, imagePrompts []string) (string, bool, error) {
	if f.videoFallback {
		return prompts.FallbackVideoPrompt(imagePrompts), true, nil
	}
	return "a generated video prompt", false, nil
}

func (f *fakeService) Vibe(_ context.Context, _ string, _ string, video []byte, mime string) (string, error) {
	f.vibeVideo = video
	f.vibeMIME = mime
	if f.vibeErr != nil {
		return "", f.vibeErr
	}
	return "warm and playful", nil
}

func (f *fakeService) Status(context.Context) app.Status {
	return app.Status{Model: "demo", Circuit: app.CircuitStatus{State: "closed"}}
}

func (f *fakeService) Runs(context.Context, history.ListOptions) ([]*history.Run, error) {
	return f.runs, nil
}

func (f *fakeService) Run(_ context.Context, id string) (*history.Run, error) {
	for _, run := range f.runs {
		if run.ID == id {
			return run, nil
		}
	}
	return nil, services.Wrap(services.ErrNotFound, "history", "get run", id, nil)
}

func newTestRouter(t *testing.T, svc Service) (http.Handler, string) {
	t.Helper()
	workDir := t.TempDir()
	uploads := config.Default().Uploads
	uploads.MaxMiB = 1
	return NewRouter(RouterConfig{
		Service:          svc,
		Uploads:          uploads,
		WorkDir:          workDir,
		DefaultThreshold: 15,
	}), workDir
}

func multipartBody(t *testing.T, fields map[string]string, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if filename != "" || content != nil {
		part, err := writer.CreateFormFile("video", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return body
}

func serve(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t, &fakeService{})
	rr := serve(router, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["status"] != "healthy" {
		t.Fatalf("unexpected body %v", body)
	}
	if rr.Header().Get(RequestIDHeader) == "" {
		t.Fatal("expected request id header")
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("expected CORS header")
	}
}

func TestCORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t, &fakeService{})
	rr := serve(router, httptest.NewRequest(http.MethodOptions, "/api/analyze", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
}

func TestAnalyzeSavesSanitizedUploadAndCleansUp(t *testing.T) {
	svc := &fakeService{}
	router, workDir := newTestRouter(t, svc)

	body, contentType := multipartBody(t, map[string]string{"threshold": "22.5"}, "../My Clip!.mp4", []byte("video-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rr := serve(router, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if svc.analyzeThreshold != 22.5 {
		t.Fatalf("threshold = %v", svc.analyzeThreshold)
	}
	if svc.analyzeName != "My_Clip" {
		t.Fatalf("name = %q", svc.analyzeName)
	}
	if filepath.Base(svc.analyzePath) != "My_Clip.mp4" {
		t.Fatalf("path = %q", svc.analyzePath)
	}
	if string(svc.uploadSeen) != "video-bytes" {
		t.Fatalf("upload content = %q", svc.uploadSeen)
	}
	entries, err := os.ReadDir(workDir)
	if err != nil {
		t.Fatalf("read work dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected upload dir removed, found %d entries", len(entries))
	}
	manifest := decodeJSONBody(t, rr)
	if manifest["name"] != "My_Clip" {
		t.Fatalf("unexpected manifest %v", manifest)
	}
}

func TestAnalyzeDefaultsThreshold(t *testing.T) {
	svc := &fakeService{}
	router, _ := newTestRouter(t, svc)
	body, contentType := multipartBody(t, nil, "clip.mov", []byte("v"))
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
	req.Header.Set("Content-Type", contentType)
	if rr := serve(router, req); rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if svc.analyzeThreshold != 15 {
		t.Fatalf("threshold = %v, want 15", svc.analyzeThreshold)
	}
}

func TestAnalyzeRejections(t *testing.T) {
	cases := []struct {
		name     string
		fields   map[string]string
		filename string
		content  []byte
		want     int
		contains string
	}{
		{name: "missing file", want: http.StatusBadRequest, contains: "No video file provided"},
		{name: "bad extension", filename: "notes.txt", content: []byte("x"), want: http.StatusBadRequest, contains: "Invalid file type"},
		{name: "bad threshold", fields: map[string]string{"threshold": "abc"}, filename: "a.mp4", content: []byte("x"), want: http.StatusBadRequest, contains: "invalid threshold"},
		{name: "too large", filename: "a.mp4", content: bytes.Repeat([]byte("x"), 2<<20), want: http.StatusRequestEntityTooLarge, contains: "limit"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router, _ := newTestRouter(t, &fakeService{})
			body, contentType := multipartBody(t, tc.fields, tc.filename, tc.content)
			req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
			req.Header.Set("Content-Type", contentType)
			rr := serve(router, req)
			if rr.Code != tc.want {
				t.Fatalf("status = %d, want %d (body %s)", rr.Code, tc.want, rr.Body.String())
			}
			if !strings.Contains(rr.Body.String(), tc.contains) {
				t.Fatalf("body %q missing %q", rr.Body.String(), tc.contains)
			}
		})
	}
}

func TestAnalyzeMapsServiceErrors(t *testing.T) {
	svc := &fakeService{analyzeErr: services.Wrap(services.ErrExternalTool, "analyze", "build timeline", "scene detection failed", errors.New("ffmpeg exited 1"))}
	router, _ := newTestRouter(t, svc)
	body, contentType := multipartBody(t, nil, "a.mp4", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rr := serve(router, req)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(decodeJSONBody(t, rr)["error"].(string), "scene detection failed") {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}

func TestEditEchoesJSONData(t *testing.T) {
	router, _ := newTestRouter(t, &fakeService{})
	req := httptest.NewRequest(http.MethodPost, "/api/edit", strings.NewReader(`{"json_data":{"name":"x","clips":[]},"prompt":"shorter"}`))
	rr := serve(router, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if body := decodeJSONBody(t, rr); body["name"] != "x" {
		t.Fatalf("unexpected body %v", body)
	}

	rr = serve(router, httptest.NewRequest(http.MethodPost, "/api/edit", strings.NewReader(`{"prompt":"shorter"}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing json_data status = %d", rr.Code)
	}
}

func TestVibeMultipartSuccess(t *testing.T) {
	svc := &fakeService{}
	router, _ := newTestRouter(t, svc)
	body, contentType := multipartBody(t, map[string]string{"api_key": "k"}, "brand.mov", []byte("movie"))
	req := httptest.NewRequest(http.MethodPost, "/api/gemini/vibe-extraction", body)
	req.Header.Set("Content-Type", contentType)
	rr := serve(router, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decodeJSONBody(t, rr)
	if resp["vibe_extraction"] != "warm and playful" || resp["failed"] != false {
		t.Fatalf("unexpected body %v", resp)
	}
	if svc.vibeMIME != "video/quicktime" || string(svc.vibeVideo) != "movie" {
		t.Fatalf("unexpected video handoff mime=%q video=%q", svc.vibeMIME, svc.vibeVideo)
	}
}

func TestVibeJSONFailureIsReportedInBody(t *testing.T) {
	svc := &fakeService{vibeErr: services.Wrap(services.ErrRemote, "vibe", "generate", "vibe extraction failed", errors.New("service unavailable"))}
	router, _ := newTestRouter(t, svc)
	payload := `{"api_key":"k","video_base64":"` + base64.StdEncoding.EncodeToString([]byte("clip")) + `"}`
	rr := serve(router, httptest.NewRequest(http.MethodPost, "/api/gemini/vibe-extraction", strings.NewReader(payload)))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decodeJSONBody(t, rr)
	if resp["failed"] != true || resp["vibe_extraction"] != nil {
		t.Fatalf("unexpected body %v", resp)
	}
	if string(svc.vibeVideo) != "clip" {
		t.Fatalf("decoded video = %q", svc.vibeVideo)
	}
}

func TestVibeRejectsMissingVideo(t *testing.T) {
	router, _ := newTestRouter(t, &fakeService{})
	rr := serve(router, httptest.NewRequest(http.MethodPost, "/api/gemini/vibe-extraction", strings.NewReader(`{"api_key":"k"}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestImagePrompts(t *testing.T) {
	svc := &fakeService{}
	router, _ := newTestRouter(t, svc)
	payload := `{"api_key":"req-key","scenes":[{"frame_path":"/tmp/a.png"},{"frame_preview":"eA=="}]}`
	rr := serve(router, httptest.NewRequest(http.MethodPost, "/api/gemini/image-prompts", strings.NewReader(payload)))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp ImagePromptsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.ImagePrompts) != 2 || resp.FellBack != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if svc.imageKey != "req-key" || svc.imageFrames[0].Path != "/tmp/a.png" || svc.imageFrames[1].Preview != "eA==" {
		t.Fatalf("unexpected handoff key=%q frames=%+v", svc.imageKey, svc.imageFrames)
	}

	rr = serve(router, httptest.NewRequest(http.MethodPost, "/api/gemini/image-prompts", strings.NewReader(`{"api_key":"k","scenes":[]}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("empty scenes status = %d", rr.Code)
	}
}

func TestVideoPromptWarningOnFallback(t *testing.T) {
	svc := &fakeService{videoFallback: true}
	router, _ := newTestRouter(t, svc)
	rr := serve(router, httptest.NewRequest(http.MethodPost, "/api/gemini/video-prompt", strings.NewReader(`{"api_key":"k","image_prompts":["a","b"]}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decodeJSONBody(t, rr)
	if resp["warning"] != prompts.FallbackWarning {
		t.Fatalf("expected fallback warning, got %v", resp)
	}

	svc.videoFallback = false
	rr = serve(router, httptest.NewRequest(http.MethodPost, "/api/gemini/video-prompt", strings.NewReader(`{"api_key":"k","image_prompts":["a"]}`)))
	if _, ok := decodeJSONBody(t, rr)["warning"]; ok {
		t.Fatal("warning should be omitted for remote prompts")
	}
}

func TestStatusAndRuns(t *testing.T) {
	svc := &fakeService{runs: []*history.Run{{ID: "run-1", Kind: history.KindAnalyze, Status: history.StatusSucceeded}}}
	router, _ := newTestRouter(t, svc)

	rr := serve(router, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	circuit, ok := decodeJSONBody(t, rr)["circuit"].(map[string]any)
	if !ok || circuit["state"] != "closed" {
		t.Fatalf("unexpected status body %s", rr.Body.String())
	}

	rr = serve(router, httptest.NewRequest(http.MethodGet, "/api/runs?limit=5", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "run-1") {
		t.Fatalf("runs: %d %s", rr.Code, rr.Body.String())
	}
	rr = serve(router, httptest.NewRequest(http.MethodGet, "/api/runs?limit=zero", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d", rr.Code)
	}
	rr = serve(router, httptest.NewRequest(http.MethodGet, "/api/runs/run-1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("run status = %d", rr.Code)
	}
	rr = serve(router, httptest.NewRequest(http.MethodGet, "/api/runs/missing", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing run status = %d", rr.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := serve(handler, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestAuthTokenGuardsEverythingButHealth(t *testing.T) {
	uploads := config.Default().Uploads
	router := NewRouter(RouterConfig{Service: &fakeService{}, Uploads: uploads, WorkDir: t.TempDir(), Token: "s3cret"})

	if rr := serve(router, httptest.NewRequest(http.MethodGet, "/api/health", nil)); rr.Code != http.StatusOK {
		t.Fatalf("health status = %d", rr.Code)
	}
	if rr := serve(router, httptest.NewRequest(http.MethodGet, "/api/status", nil)); rr.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", rr.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	if rr := serve(router, req); rr.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token status = %d", rr.Code)
	}
	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	if rr := serve(router, req); rr.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d", rr.Code)
	}
}
