package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"scenevibe/internal/app"
	"scenevibe/internal/history"
	"scenevibe/internal/logging"
	"scenevibe/internal/prompts"
	"scenevibe/internal/services"
	"scenevibe/internal/textutil"
)

const defaultRunLimit = 50

func analyzeHandler(cfg RouterConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := parseMultipart(w, r, cfg.Uploads.MaxBytes()); err != nil {
			writeUploadError(w, cfg, err)
			return
		}
		file, header, err := r.FormFile("video")
		if err != nil {
			WriteError(w, http.StatusBadRequest, "No video file provided")
			return
		}
		defer file.Close()
		if strings.TrimSpace(header.Filename) == "" {
			WriteError(w, http.StatusBadRequest, "No video file selected")
			return
		}
		if !cfg.Uploads.Allows(header.Filename) {
			WriteError(w, http.StatusBadRequest, "Invalid file type. Allowed types: "+strings.Join(cfg.Uploads.AllowedExtensions, ", "))
			return
		}

		threshold := cfg.DefaultThreshold
		if raw := strings.TrimSpace(r.FormValue("threshold")); raw != "" {
			parsed, err := strconv.ParseFloat(raw, 64)
			if err != nil || parsed <= 0 {
				WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid threshold %q", raw))
				return
			}
			threshold = parsed
		}

		filename := uploadName(header.Filename)
		dir, path, err := saveUpload(cfg.WorkDir, filename, file)
		if err != nil {
			writeServiceError(w, r, cfg, err)
			return
		}
		defer removeUpload(r, cfg, dir)

		manifest, err := cfg.Service.Analyze(r.Context(), path, textutil.StemName(filename), threshold)
		if err != nil {
			writeServiceError(w, r, cfg, err)
			return
		}
		WriteJSON(w, http.StatusOK, manifest)
	}
}

func editHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EditRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(req.JSONData) == 0 || string(req.JSONData) == "null" || strings.TrimSpace(req.Prompt) == "" {
			WriteError(w, http.StatusBadRequest, "Missing required fields: json_data and prompt")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(req.JSONData)
	}
}

func vibeHandler(cfg RouterConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			apiKey  string
			subject string
			video   []byte
			mime    string
		)
		if isMultipart(r) {
			if err := parseMultipart(w, r, cfg.Uploads.MaxBytes()); err != nil {
				writeUploadError(w, cfg, err)
				return
			}
			file, header, err := r.FormFile("video")
			if err != nil {
				WriteError(w, http.StatusBadRequest, "Missing required fields: api_key and video")
				return
			}
			defer file.Close()
			video, err = io.ReadAll(file)
			if err != nil {
				WriteError(w, http.StatusBadRequest, "could not read uploaded video")
				return
			}
			apiKey = r.FormValue("api_key")
			subject = uploadName(header.Filename)
			mime = app.VideoMIME(header.Filename)
		} else {
			var req VibeRequest
			body := r.Body
			if limit := base64Limit(cfg.Uploads.MaxBytes()); limit > 0 {
				body = http.MaxBytesReader(w, r.Body, limit)
			}
			if err := json.NewDecoder(body).Decode(&req); err != nil || strings.TrimSpace(req.VideoBase64) == "" {
				WriteError(w, http.StatusBadRequest, "Missing required fields: api_key and video")
				return
			}
			decoded, err := base64.StdEncoding.DecodeString(stripDataURL(req.VideoBase64))
			if err != nil {
				WriteError(w, http.StatusBadRequest, "video_base64 is not valid base64")
				return
			}
			apiKey = req.APIKey
			subject = "inline video"
			video = decoded
			mime = "video/mp4"
		}
		if len(video) == 0 {
			WriteError(w, http.StatusBadRequest, "Missing required fields: api_key and video")
			return
		}

		text, err := cfg.Service.Vibe(r.Context(), apiKey, subject, video, mime)
		if err != nil {
			if errors.Is(err, services.ErrValidation) {
				WriteError(w, http.StatusBadRequest, err.Error())
				return
			}
			logging.WarnWithContext(logging.WithContext(r.Context(), cfg.Logger), "vibe extraction failed", "vibe_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check inference service status and api key"),
				logging.String(logging.FieldImpact, "client receives failed=true"),
			)
			WriteJSON(w, http.StatusOK, VibeResponse{Error: err.Error(), Failed: true})
			return
		}
		WriteJSON(w, http.StatusOK, VibeResponse{VibeExtraction: &text})
	}
}

func imagePromptsHandler(cfg RouterConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ImagePromptsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Scenes) == 0 {
			WriteError(w, http.StatusBadRequest, "Missing required fields: api_key and scenes")
			return
		}
		out, report, err := cfg.Service.ImagePrompts(r.Context(), req.APIKey, req.Scenes)
		if err != nil {
			writeServiceError(w, r, cfg, err)
			return
		}
		WriteJSON(w, http.StatusOK, ImagePromptsResponse{ImagePrompts: out, FellBack: report.FellBack})
	}
}

func videoPromptHandler(cfg RouterConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VideoPromptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.ImagePrompts) == 0 {
			WriteError(w, http.StatusBadRequest, "Missing required fields: api_key and image_prompts")
			return
		}
		prompt, fallback, err := cfg.Service.VideoPrompt(r.Context(), req.APIKey, req.ImagePrompts)
		if err != nil {
			writeServiceError(w, r, cfg, err)
			return
		}
		resp := VideoPromptResponse{VideoPrompt: prompt}
		if fallback {
			resp.Warning = prompts.FallbackWarning
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func statusHandler(cfg RouterConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cfg.Service.Status(r.Context()))
	}
}

func listRunsHandler(cfg RouterConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		opts := history.ListOptions{Kind: history.Kind(strings.TrimSpace(query.Get("kind"))), Limit: defaultRunLimit}
		if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit <= 0 {
				WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", raw))
				return
			}
			opts.Limit = limit
		}
		runs, err := cfg.Service.Runs(r.Context(), opts)
		if err != nil {
			writeServiceError(w, r, cfg, err)
			return
		}
		if runs == nil {
			runs = []*history.Run{}
		}
		WriteJSON(w, http.StatusOK, RunsResponse{Runs: runs})
	}
}

func getRunHandler(cfg RouterConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if strings.TrimSpace(id) == "" {
			WriteError(w, http.StatusBadRequest, "run id required")
			return
		}
		run, err := cfg.Service.Run(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, cfg, err)
			return
		}
		WriteJSON(w, http.StatusOK, run)
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, cfg RouterConfig, err error) {
	status := services.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), cfg.Logger), "request failed", "http_request_failed",
			logging.Error(err),
			logging.String("path", r.URL.Path),
		)
	}
	WriteError(w, status, err.Error())
}

func writeUploadError(w http.ResponseWriter, cfg RouterConfig, err error) {
	if errors.Is(err, errUploadTooLarge) {
		WriteError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d MiB limit", cfg.Uploads.MaxMiB))
		return
	}
	WriteError(w, http.StatusBadRequest, err.Error())
}

func removeUpload(r *http.Request, cfg RouterConfig, dir string) {
	if err := os.RemoveAll(dir); err != nil {
		logging.WarnWithContext(logging.WithContext(r.Context(), cfg.Logger), "failed to remove upload", "upload_cleanup_failed",
			logging.String("path", dir),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "stale uploads are reclaimed at daemon start"),
			logging.String(logging.FieldImpact, "disk space held until next cleanup"),
		)
	}
}

// base64Limit is the JSON body size that can carry maxBytes of video.
func base64Limit(maxBytes int64) int64 {
	if maxBytes <= 0 {
		return 0
	}
	return maxBytes/3*4 + 4096
}

func stripDataURL(value string) string {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "data:") {
		if idx := strings.Index(value, ","); idx >= 0 {
			return value[idx+1:]
		}
	}
	return value
}
