package preflight

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scenevibe/internal/config"
	"scenevibe/internal/services/llm"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("space", dir, 1); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	result := CheckFreeSpace("space", dir, math.MaxUint64)
	if result.Passed || !strings.Contains(result.Detail, "need") {
		t.Fatalf("expected failure with requirement, got: %+v", result)
	}
	if result := CheckFreeSpace("space", filepath.Join(dir, "missing"), 1); result.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func llmServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": `{"ok":true}`}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckLLM(t *testing.T) {
	ok := llmServer(t, http.StatusOK)
	if result := CheckLLM(context.Background(), "llm", llm.Config{APIKey: "k", BaseURL: ok.URL}); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}

	denied := llmServer(t, http.StatusUnauthorized)
	result := CheckLLM(context.Background(), "llm", llm.Config{APIKey: "k", BaseURL: denied.URL})
	if result.Passed || !strings.Contains(result.Detail, "auth failed") {
		t.Fatalf("expected auth failure, got: %+v", result)
	}

	if result := CheckLLM(context.Background(), "llm", llm.Config{}); result.Passed || result.Detail != "API key missing" {
		t.Fatalf("expected missing key failure, got: %+v", result)
	}
}

func TestRunAll(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Uploads.MaxMiB = 1
	if err := os.MkdirAll(cfg.Paths.WorkDir, 0o755); err != nil {
		t.Fatal(err)
	}

	results := RunAll(context.Background(), &cfg)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "State directory" {
		t.Fatalf("expected only the missing state dir to fail, got %+v", failed)
	}

	srv := llmServer(t, http.StatusOK)
	cfg.LLM.APIKey = "k"
	cfg.LLM.BaseURL = srv.URL
	results = RunAll(context.Background(), &cfg)
	if last := results[len(results)-1]; !last.Passed || last.Detail != "API reachable" {
		t.Fatalf("expected LLM check to pass, got %+v", last)
	}

	if RunAll(context.Background(), nil) != nil {
		t.Fatal("expected nil results for nil config")
	}
}
