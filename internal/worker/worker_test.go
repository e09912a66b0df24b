package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"expenso/internal/amqp"
	"expenso/internal/core"
	"expenso/internal/storage"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "worker.db"))
	if err != nil {
		t.Fatalf("repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func message(id string) *amqp.ActivityMessage {
	return amqp.NewActivityMessage(core.ActivityEvent{
		ID:         id,
		Kind:       core.ActivityDeleted,
		UserEmail:  "ana@example.com",
		OccurredAt: time.Now().UTC(),
		Transaction: core.Transaction{
			ID: "t1", Amount: core.Money{Cents: 1234}, Type: core.Expense,
			Category: "bills", Description: "Power", Date: core.NewDate(2024, 2, 29),
		},
	})
}

func TestHandleActivityIsIdempotent(t *testing.T) {
	repo := newRepo(t)
	w := NewActivityWorker(repo, quiet())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := w.HandleActivity(ctx, message("e1")); err != nil {
			t.Fatalf("HandleActivity #%d: %v", i, err)
		}
	}
	rows, err := repo.RecentActivity(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	ev := rows[0].Event()
	if ev.Kind != core.ActivityDeleted || ev.Transaction.Amount.Cents != 1234 || ev.Transaction.Date.String() != "2024-02-29" {
		t.Fatalf("stored event = %+v", ev)
	}
}

type failingRecorder struct{}

func (failingRecorder) RecordActivity(context.Context, storage.Activity) (bool, error) {
	return false, errors.New("database is locked")
}

func TestHandleActivityPropagatesStoreErrors(t *testing.T) {
	w := NewActivityWorker(failingRecorder{}, quiet())
	if err := w.HandleActivity(context.Background(), message("e1")); err == nil {
		t.Fatal("expected error so the message is requeued")
	}
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	s := NewScheduler(context.Background(), time.UTC, quiet())
	if _, err := s.Add("bad", "every tuesday", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := s.Add("ok", "@every 1h", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := s.Add("six-field", "0 30 3 * * *", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Add with seconds: %v", err)
	}
	if s.Entries() != 2 {
		t.Fatalf("entries = %d", s.Entries())
	}
}

func TestSchedulerRunsJobs(t *testing.T) {
	s := NewScheduler(context.Background(), time.UTC, quiet())
	var calls atomic.Int32
	if _, err := s.Add("tick", "@every 1s", func(context.Context) error {
		calls.Add(1)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	s.Start()
	deadline := time.Now().Add(3 * time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	s.Stop()
	if calls.Load() == 0 {
		t.Fatal("job never ran")
	}
}

func TestMaintenanceJobs(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	if err := repo.Save(ctx, "7f1d2c5e-8a7b-4c1e-9d1f-2b3c4d5e6f70", "theme", "dark"); err != nil {
		t.Fatal(err)
	}
	if err := NewActivityWorker(repo, quiet()).HandleActivity(ctx, message("e1")); err != nil {
		t.Fatal(err)
	}

	keep := MaintenanceConfig{SessionTTL: time.Hour, ActivityRetention: time.Hour, KeepUnsynced: true}
	if err := PurgeSessionsJob(repo, keep, quiet())(ctx); err != nil {
		t.Fatal(err)
	}
	if n, _ := repo.CountSessions(ctx); n != 1 {
		t.Fatalf("fresh session purged, count = %d", n)
	}

	// Negative windows put the cutoff in the future so everything is old.
	purgeAll := MaintenanceConfig{SessionTTL: -time.Hour, ActivityRetention: -time.Hour, KeepUnsynced: true}
	if err := PurgeActivityJob(repo, purgeAll, quiet())(ctx); err != nil {
		t.Fatal(err)
	}
	if rows, _ := repo.RecentActivity(ctx, 10); len(rows) != 1 {
		t.Fatal("unsynced activity must survive when KeepUnsynced is set")
	}
	purgeAll.KeepUnsynced = false
	if err := PurgeActivityJob(repo, purgeAll, quiet())(ctx); err != nil {
		t.Fatal(err)
	}
	if rows, _ := repo.RecentActivity(ctx, 10); len(rows) != 0 {
		t.Fatalf("activity left = %d", len(rows))
	}
	if err := PurgeSessionsJob(repo, purgeAll, quiet())(ctx); err != nil {
		t.Fatal(err)
	}
	if n, _ := repo.CountSessions(ctx); n != 0 {
		t.Fatalf("sessions left = %d", n)
	}
}
