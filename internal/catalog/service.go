package catalog

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"expenso/internal/cache"
	"expenso/internal/core"
	"expenso/internal/log"
)

// Fetcher loads the backend's category list.
type Fetcher func(ctx context.Context) ([]Category, error)

const remoteKey = "categories"

// Service serves the remote catalog through an LRU+TTL cache and falls back
// to the built-in catalog when the backend cannot be reached.
type Service struct {
	fetch    Fetcher
	cache    *cache.LRUCache[*Catalog]
	group    singleflight.Group
	fallback *Catalog
	logger   *slog.Logger
}

func NewService(fetch Fetcher, ttl time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		fetch:    fetch,
		cache:    cache.NewLRUCache[*Catalog](1, ttl),
		fallback: Default,
		logger:   logger,
	}
}

// Cache exposes the underlying cache for registration with a cache.Manager.
func (s *Service) Cache() cache.Cleaner {
	return s.cache
}

// Catalog returns the cached remote catalog, fetching once for concurrent misses.
func (s *Service) Catalog(ctx context.Context) *Catalog {
	if c, ok := s.cache.Get(remoteKey); ok {
		return c
	}
	v, _, _ := s.group.Do(remoteKey, func() (any, error) {
		cats, err := s.fetch(ctx)
		if err != nil || len(cats) == 0 {
			s.logger.WarnContext(ctx, "Using built-in category catalog",
				log.FieldComponent, log.ComponentCatalog, log.FieldError, err, "remote_count", len(cats))
			return s.fallback, nil
		}
		var income, expense []Category
		for _, c := range cats {
			if c.Icon == "" {
				c.Icon = s.fallback.Icon(c.ID)
			}
			if c.Name == "" {
				c.Name = s.fallback.Name(c.ID)
			}
			switch c.Type {
			case core.Income:
				income = append(income, c)
			case core.Expense:
				expense = append(expense, c)
			}
		}
		built := New(income, expense)
		s.cache.Set(remoteKey, built)
		return built, nil
	})
	return v.(*Catalog)
}

// Invalidate forces the next call to refetch.
func (s *Service) Invalidate() {
	s.cache.Delete(remoteKey)
}
