// Package storage is the SQLite persistence behind sessions and the
// transaction activity log. Transactions themselves live in the backend.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"expenso/internal/log"
)

var ErrEmptySessionID = errors.New("empty session id")

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("SQLite repository ready", log.FieldComponent, log.ComponentStorage, "path", dbPath, "schema_version", version)

	return &SQLiteRepository{
		db:      db,
		queries: NewQueries(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping backs the readiness probe.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Load returns the persisted values of a session and marks it as seen.
// An unknown session yields an empty map.
func (r *SQLiteRepository) Load(ctx context.Context, sessionID string) (map[string]string, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}
	if err := r.queries.UpsertSession(ctx, sessionID, r.now().Unix()); err != nil {
		return nil, fmt.Errorf("touch session: %w", err)
	}
	values, err := r.queries.GetSessionValues(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session values: %w", err)
	}
	return values, nil
}

// Touch records activity on a live session without reading its values.
func (r *SQLiteRepository) Touch(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	if err := r.queries.UpsertSession(ctx, sessionID, r.now().Unix()); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// Save upserts one key for the session, creating the session row if needed.
func (r *SQLiteRepository) Save(ctx context.Context, sessionID, key, value string) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	return r.inTx(ctx, func(q *Queries) error {
		now := r.now().Unix()
		if err := q.UpsertSession(ctx, sessionID, now); err != nil {
			return fmt.Errorf("touch session: %w", err)
		}
		if err := q.SetSessionValue(ctx, SetSessionValueParams{
			SessionID: sessionID, Key: key, Value: value, UpdatedAt: now,
		}); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
		return nil
	})
}

func (r *SQLiteRepository) Remove(ctx context.Context, sessionID string, keys ...string) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	return r.inTx(ctx, func(q *Queries) error {
		for _, k := range keys {
			if err := q.DeleteSessionValue(ctx, sessionID, k); err != nil {
				return fmt.Errorf("remove %s: %w", k, err)
			}
		}
		return nil
	})
}

// PurgeIdleSessions drops sessions not seen for longer than maxIdle.
func (r *SQLiteRepository) PurgeIdleSessions(ctx context.Context, maxIdle time.Duration) (int64, error) {
	var n int64
	err := r.inTx(ctx, func(q *Queries) error {
		var err error
		n, err = q.DeleteIdleSessions(ctx, r.now().Add(-maxIdle).Unix())
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("purge idle sessions: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) CountSessions(ctx context.Context) (int64, error) {
	return r.queries.CountSessions(ctx)
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
