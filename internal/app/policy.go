package app

import (
	"mime"
	"path/filepath"
	"strings"

	"scenevibe/internal/config"
	"scenevibe/internal/resilience"
)

func retryPolicy(r config.Retry) resilience.RetryPolicy {
	return resilience.RetryPolicy{
		MaxRetries:   r.MaxRetries,
		InitialDelay: r.InitialDelay(),
		MaxDelay:     r.MaxDelay(),
		Multiplier:   r.Multiplier,
		Jitter:       r.Jitter,
	}
}

var videoMIMETypes = map[string]string{
	".mp4":  "video/mp4",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".flv":  "video/x-flv",
	".wmv":  "video/x-ms-wmv",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
}

// VideoMIME guesses the content type of a video from its file name. Unknown
// extensions are reported as video/mp4, which inference services accept for
// most containers.
func VideoMIME(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if value, ok := videoMIMETypes[ext]; ok {
		return value
	}
	if value := mime.TypeByExtension(ext); strings.HasPrefix(value, "video/") {
		return value
	}
	return "video/mp4"
}
