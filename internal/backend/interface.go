package backend

import (
	"context"
	"errors"

	"expenso/internal/amqp"
	"expenso/internal/core"
	"expenso/internal/state"
	"expenso/internal/storage"
)

// SessionStore is durable per-session storage that can report readiness.
type SessionStore interface {
	state.Persister
	Ping(ctx context.Context) error
}

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// BackendResult is everything the web process needs to build sessions.
type BackendResult struct {
	Sessions SessionStore
	// SQLite is set only for the sqlite store; the worker and the
	// cleanup job need its activity and purge queries.
	SQLite *storage.SQLiteRepository
	// Events is never nil. Without a broker it discards events.
	Events    state.ActivityPublisher
	Publisher *amqp.Client
	Cleanup   CleanupFunc
}

// Ready reports whether the session store is usable.
func (r *BackendResult) Ready(ctx context.Context) error {
	return r.Sessions.Ping(ctx)
}

// BrokerStatus is "disabled", "up" or "down". The broker never affects
// readiness because publishing is best effort.
func (r *BackendResult) BrokerStatus(ctx context.Context) string {
	if r.Publisher == nil {
		return "disabled"
	}
	if err := r.Publisher.Ping(ctx); err != nil {
		return "down"
	}
	return "up"
}

// Close runs Cleanup once; later calls are no-ops.
func (r *BackendResult) Close() error {
	if r.Cleanup == nil {
		return nil
	}
	fn := r.Cleanup
	r.Cleanup = nil
	return fn()
}

// Factory creates backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type Config struct {
	Type StoreType

	SQLiteDBPath string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// StoreType selects where session values live.
type StoreType string

const (
	SQLiteStore StoreType = "sqlite"
	MemoryStore StoreType = "memory"
)

var ErrSQLiteRequired = errors.New("sqlite session store required")

func (t StoreType) String() string {
	return string(t)
}

func (t StoreType) IsValid() bool {
	switch t {
	case SQLiteStore, MemoryStore:
		return true
	default:
		return false
	}
}

type discardEvents struct{}

func (discardEvents) PublishActivity(context.Context, core.ActivityEvent) error { return nil }
