package api

import (
	"encoding/json"
	"net/http"

	"scenevibe/internal/history"
	"scenevibe/internal/prompts"
)

// HealthResponse is returned by the liveness probe.
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// EditRequest carries a manifest and an edit instruction.
type EditRequest struct {
	JSONData json.RawMessage `json:"json_data"`
	Prompt   string          `json:"prompt"`
}

// VibeRequest is the JSON form of a vibe extraction request.
type VibeRequest struct {
	APIKey      string `json:"api_key"`
	VideoBase64 string `json:"video_base64"`
}

// VibeResponse reports the extracted vibe or the failure reason.
type VibeResponse struct {
	VibeExtraction *string `json:"vibe_extraction"`
	Error          string  `json:"error,omitempty"`
	Failed         bool    `json:"failed"`
}

// ImagePromptsRequest lists the frames to describe.
type ImagePromptsRequest struct {
	APIKey string          `json:"api_key"`
	Scenes []prompts.Frame `json:"scenes"`
}

// ImagePromptsResponse carries one prompt per requested frame.
type ImagePromptsResponse struct {
	ImagePrompts []string `json:"image_prompts"`
	FellBack     int      `json:"fell_back,omitempty"`
}

// VideoPromptRequest carries the frame prompts to condense.
type VideoPromptRequest struct {
	APIKey       string   `json:"api_key"`
	ImagePrompts []string `json:"image_prompts"`
}

// VideoPromptResponse carries the video prompt and, for locally assembled
// prompts, a warning.
type VideoPromptResponse struct {
	VideoPrompt string `json:"video_prompt"`
	Warning     string `json:"warning,omitempty"`
}

// RunsResponse lists workflow runs.
type RunsResponse struct {
	Runs []*history.Run `json:"runs"`
}

// WriteJSON encodes data with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes an ErrorResponse.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}
