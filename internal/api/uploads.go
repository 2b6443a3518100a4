package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"scenevibe/internal/staging"
	"scenevibe/internal/textutil"
)

// multipartMemory is how much of a multipart body is buffered in memory
// before spilling to temp files.
const multipartMemory = 32 << 20

var errUploadTooLarge = errors.New("upload exceeds size limit")

// parseMultipart bounds the body to maxBytes and parses the form.
func parseMultipart(w http.ResponseWriter, r *http.Request, maxBytes int64) error {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return errUploadTooLarge
		}
		return fmt.Errorf("parse multipart form: %w", err)
	}
	return nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data")
}

// saveUpload copies an uploaded file into a fresh upload directory under
// workDir. The caller removes the returned directory.
func saveUpload(workDir, filename string, src multipart.File) (dir, path string, err error) {
	if workDir != "" {
		if err := os.MkdirAll(workDir, 0o755); err != nil {
			return "", "", fmt.Errorf("ensure work dir: %w", err)
		}
	}
	dir, err = os.MkdirTemp(workDir, staging.UploadPrefix)
	if err != nil {
		return "", "", fmt.Errorf("create upload dir: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(dir)
		}
	}()

	path = filepath.Join(dir, filename)
	dst, err := os.Create(path)
	if err != nil {
		return "", "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err = io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return "", "", fmt.Errorf("write upload file: %w", err)
	}
	if err = dst.Close(); err != nil {
		return "", "", fmt.Errorf("close upload file: %w", err)
	}
	return dir, path, nil
}

// uploadName sanitizes a client file name, falling back to a generic name
// that keeps the original extension when nothing usable remains.
func uploadName(original string) string {
	if name := textutil.SecureFileName(original); name != "" && textutil.StemName(name) != "" {
		return name
	}
	ext := textutil.SecureFileName(filepath.Ext(original))
	if ext != "" {
		ext = "." + ext
	}
	return "upload" + ext
}
