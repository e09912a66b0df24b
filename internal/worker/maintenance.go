package worker

import (
	"context"
	"log/slog"
	"time"
)

// MaintenanceStore is the cleanup surface of the SQLite repository.
type MaintenanceStore interface {
	PurgeIdleSessions(ctx context.Context, maxIdle time.Duration) (int64, error)
	PurgeActivity(ctx context.Context, retention time.Duration, requireSynced bool) (int64, error)
}

type MaintenanceConfig struct {
	SessionTTL        time.Duration
	ActivityRetention time.Duration
	// KeepUnsynced protects rows not yet exported to the audit sheet.
	KeepUnsynced bool
}

// PurgeSessionsJob removes sessions idle longer than the TTL.
func PurgeSessionsJob(store MaintenanceStore, cfg MaintenanceConfig, logger *slog.Logger) Job {
	return func(ctx context.Context) error {
		n, err := store.PurgeIdleSessions(ctx, cfg.SessionTTL)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.InfoContext(ctx, "Purged idle sessions", "count", n, "max_idle", cfg.SessionTTL.String())
		}
		return nil
	}
}

// PurgeActivityJob trims the activity log to the retention window.
func PurgeActivityJob(store MaintenanceStore, cfg MaintenanceConfig, logger *slog.Logger) Job {
	return func(ctx context.Context) error {
		n, err := store.PurgeActivity(ctx, cfg.ActivityRetention, cfg.KeepUnsynced)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.InfoContext(ctx, "Purged activity log", "count", n, "retention", cfg.ActivityRetention.String())
		}
		return nil
	}
}
