// Package ctl implements expensoctl, a terminal client that drives the same
// session operations as the web app.
package ctl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"expenso/internal/apiclient"
	"expenso/internal/catalog"
	"expenso/internal/state"
	"expenso/internal/storage"
	"expenso/internal/storage/memory"
)

// SessionID is the single session the CLI keeps in its store.
const SessionID = "expensoctl"

// MemoryStore as the store path keeps nothing between runs.
const MemoryStore = "memory"

var (
	ErrNotLoggedIn    = errors.New("not logged in: run `expensoctl login` first")
	ErrSessionExpired = errors.New("session expired: run `expensoctl login` again")
)

type Config struct {
	APIBaseURL  string
	Timeout     time.Duration
	StorePath   string
	CategoryTTL time.Duration
}

// App is an opened CLI session. Close releases the store.
type App struct {
	Session *state.Session
	close   func() error
}

func (a *App) Close() error {
	if a.close == nil {
		return nil
	}
	return a.close()
}

// Opener builds an App for one command run.
type Opener func(ctx context.Context, cfg Config, logger *slog.Logger) (*App, error)

// Open connects to the API and restores the persisted CLI session.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*App, error) {
	api, err := apiclient.New(cfg.APIBaseURL, apiclient.WithTimeout(cfg.Timeout), apiclient.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	var (
		persist state.Persister
		closeFn func() error
	)
	switch cfg.StorePath {
	case MemoryStore:
		persist = memory.New()
	default:
		path := cfg.StorePath
		if path == "" {
			if path, err = defaultStorePath(); err != nil {
				return nil, err
			}
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		repo, err := storage.NewSQLiteRepository(path)
		if err != nil {
			return nil, fmt.Errorf("open session store: %w", err)
		}
		persist, closeFn = repo, repo.Close
	}

	app, err := NewApp(ctx, api, persist, cfg.CategoryTTL, logger)
	if err != nil {
		if closeFn != nil {
			_ = closeFn()
		}
		return nil, err
	}
	app.close = closeFn
	return app, nil
}

// NewApp restores the CLI session from persist.
func NewApp(ctx context.Context, api *apiclient.Client, persist state.Persister, categoryTTL time.Duration, logger *slog.Logger) (*App, error) {
	if categoryTTL <= 0 {
		categoryTTL = 15 * time.Minute
	}
	mgr := state.NewManager(state.Deps{
		API:       api,
		Persister: persist,
		Catalog:   catalog.NewService(api.Categories, categoryTTL, logger),
		Logger:    logger,
	}, 1, time.Hour)
	sess, err := mgr.Get(ctx, SessionID)
	if err != nil {
		return nil, err
	}
	return &App{Session: sess}, nil
}

func defaultStorePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return filepath.Join(dir, "expenso", "cli.db"), nil
}

// explain turns session errors into instructions for the user.
func explain(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, state.ErrNotAuthenticated):
		return ErrNotLoggedIn
	case errors.Is(err, apiclient.ErrUnauthorized):
		return ErrSessionExpired
	}
	return errors.New(apiclient.UserMessage(err))
}
