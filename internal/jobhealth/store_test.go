package jobhealth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/1rokoko/stripe-deposit-sub000/internal/migration"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "health.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := migration.RunMigrations(context.Background(), db, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewStore(db)
}

func TestRecordRollsUp(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	first := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	if err := store.Record(ctx, Run{
		Job:      JobWebhookRetry,
		RanAt:    first,
		Duration: 1500 * time.Millisecond,
		Stats:    map[string]int{"processed": 2},
		Success:  true,
	}); err != nil {
		t.Fatalf("record success: %v", err)
	}
	if err := store.Record(ctx, Run{
		Job:     JobWebhookRetry,
		RanAt:   first.Add(time.Minute),
		Stats:   map[string]int{"failures": 1},
		Success: false,
		Err:     errors.New("drain failed"),
	}); err != nil {
		t.Fatalf("record failure: %v", err)
	}

	rec, err := store.Get(ctx, JobWebhookRetry)
	if err != nil || rec == nil {
		t.Fatalf("get: %v, %v", rec, err)
	}
	if rec.TotalRuns != 2 || rec.TotalFailures != 1 {
		t.Fatalf("unexpected counters: runs=%d failures=%d", rec.TotalRuns, rec.TotalFailures)
	}
	if rec.LastSuccess || rec.LastError != "drain failed" {
		t.Fatalf("unexpected last outcome: %+v", rec)
	}
	if rec.LastSuccessAt == nil || !rec.LastSuccessAt.Equal(first) {
		t.Fatalf("expected last success kept at %v, got %v", first, rec.LastSuccessAt)
	}
	if rec.LastRunAt == nil || !rec.LastRunAt.Equal(first.Add(time.Minute)) {
		t.Fatalf("unexpected last run: %v", rec.LastRunAt)
	}
	if string(rec.LastStats) != `{"failures":1}` {
		t.Fatalf("unexpected stats: %s", rec.LastStats)
	}

	all, err := store.List(ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("list: %v, %v", all, err)
	}
}
