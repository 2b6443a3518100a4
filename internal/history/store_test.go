package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"scenevibe/internal/services"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "state", "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	run := &Run{
		Kind:              KindImagePrompts,
		Status:            StatusDegraded,
		Subject:           "promo",
		RequestID:         "req-1",
		Items:             6,
		FellBack:          2,
		CircuitRejections: 1,
		StartedAt:         started,
		FinishedAt:        started.Add(4 * time.Second),
	}
	if err := store.Record(ctx, run); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if run.ID == "" {
		t.Fatal("expected generated id")
	}

	got, err := store.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Kind != KindImagePrompts || got.Status != StatusDegraded || got.Subject != "promo" || got.RequestID != "req-1" {
		t.Fatalf("unexpected run %+v", got)
	}
	if got.Items != 6 || got.FellBack != 2 || got.CircuitRejections != 1 {
		t.Fatalf("unexpected counters %+v", got)
	}
	if !got.StartedAt.Equal(started) || got.Duration() != 4*time.Second {
		t.Fatalf("unexpected timing %v %v", got.StartedAt, got.Duration())
	}
}

func TestGetMissingIsNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Get(context.Background(), "nope")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordRequiresKind(t *testing.T) {
	store := openTestStore(t)
	if err := store.Record(context.Background(), &Run{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListOrdersNewestFirstAndFilters(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	kinds := []Kind{KindAnalyze, KindVibe, KindAnalyze, KindVideoPrompt}
	for i, kind := range kinds {
		run := &Run{Kind: kind, StartedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := store.Record(ctx, run); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	runs, err := store.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 4 || runs[0].Kind != KindVideoPrompt || runs[3].Kind != KindAnalyze {
		t.Fatalf("unexpected order %+v", runs)
	}

	analyze, err := store.List(ctx, ListOptions{Kind: KindAnalyze, Limit: 1})
	if err != nil {
		t.Fatalf("List analyze: %v", err)
	}
	if len(analyze) != 1 || !analyze[0].StartedAt.Equal(base.Add(2*time.Minute)) {
		t.Fatalf("unexpected filtered runs %+v", analyze)
	}
}

func TestStatsAndPrune(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)
	records := []*Run{
		{Kind: KindAnalyze, Status: StatusFailed, StartedAt: old},
		{Kind: KindVibe, Status: StatusSucceeded},
		{Kind: KindImagePrompts, Status: StatusSucceeded},
	}
	for _, run := range records {
		if err := store.Record(ctx, run); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[StatusSucceeded] != 2 || stats[StatusFailed] != 1 {
		t.Fatalf("unexpected stats %v", stats)
	}
	removed, err := store.Prune(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 pruned run, got %d", removed)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()
	store, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	run := &Run{Kind: KindVibe}
	if err := store.Record(ctx, run); err != nil {
		t.Fatalf("Record: %v", err)
	}
	_ = store.Close()

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.Get(ctx, run.ID); err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
}

func TestStatusFor(t *testing.T) {
	if StatusFor(errors.New("x"), 0) != StatusFailed {
		t.Fatal("expected failed")
	}
	if StatusFor(nil, 1) != StatusDegraded {
		t.Fatal("expected degraded")
	}
	if StatusFor(nil, 0) != StatusSucceeded {
		t.Fatal("expected succeeded")
	}
}
