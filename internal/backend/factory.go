package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"expenso/internal/amqp"
	"expenso/internal/log"
	"expenso/internal/storage"
	"expenso/internal/storage/memory"
)

type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend builds the session store and, if a broker URL is set, the
// activity publisher. A broker that cannot be reached is logged and skipped.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var res *BackendResult
	switch config.Type {
	case SQLiteStore:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		res = &BackendResult{Sessions: repo, SQLite: repo, Cleanup: repo.Close}
		f.logger.InfoContext(ctx, "Initialized SQLite session store", "db_path", config.SQLiteDBPath)
	case MemoryStore:
		res = &BackendResult{Sessions: memory.New()}
		f.logger.InfoContext(ctx, "Initialized memory session store")
	default:
		return nil, fmt.Errorf("unsupported session store: %s", config.Type)
	}

	res.Events = discardEvents{}
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without activity events", log.FieldError, err)
		} else {
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			res.Events = client
			res.Publisher = client
			storeCleanup := res.Cleanup
			res.Cleanup = func() error {
				err := client.Close()
				if storeCleanup != nil {
					err = errors.Join(err, storeCleanup())
				}
				return err
			}
		}
	}
	return res, nil
}

// RequireSQLite returns the repository or ErrSQLiteRequired; the worker and
// the maintenance commands cannot run on the memory store.
func (r *BackendResult) RequireSQLite() (*storage.SQLiteRepository, error) {
	if r.SQLite == nil {
		return nil, ErrSQLiteRequired
	}
	return r.SQLite, nil
}
