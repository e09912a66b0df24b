package state

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"expenso/internal/cache"
	"expenso/internal/log"
)

// TouchInterval throttles how often a live session is marked as seen.
const TouchInterval = 5 * time.Minute

// Toucher is implemented by persisters that track session activity.
type Toucher interface {
	Touch(ctx context.Context, sessionID string) error
}

// Manager keeps live sessions in memory and rebuilds evicted ones from the
// Persister, so an idle or restarted process behaves like a page reload.
type Manager struct {
	deps  Deps
	live  *cache.LRUCache[*Session]
	group singleflight.Group
}

func NewManager(deps Deps, size int, idle time.Duration) *Manager {
	return &Manager{
		deps: deps,
		live: cache.NewLRUCache[*Session](size, idle, cache.WithSlidingExpiry[*Session]()),
	}
}

// NewID returns a fresh, unguessable session id.
func (m *Manager) NewID() string {
	return uuid.NewString()
}

// ValidID rejects anything that is not a uuid so forged cookies never reach storage.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Get returns the live session for id, hydrating it on a miss.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if s, ok := m.live.Get(id); ok {
		return s, nil
	}
	v, err, _ := m.group.Do(id, func() (any, error) {
		if s, ok := m.live.Get(id); ok {
			return s, nil
		}
		s := NewSession(id, NewStore(Initial()), m.deps)
		if err := s.Restore(ctx); err != nil {
			return nil, err
		}
		m.live.Set(id, s)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// Rotate moves the session behind oldID to a fresh id and returns it. The
// persisted values follow the new id and the old id no longer resolves to
// them, so an id handed out before login cannot be used afterwards.
func (m *Manager) Rotate(ctx context.Context, oldID string) (*Session, error) {
	old, err := m.Get(ctx, oldID)
	if err != nil {
		return nil, err
	}
	values, err := m.deps.Persister.Load(ctx, oldID)
	if err != nil {
		return nil, fmt.Errorf("rotate session: %w", err)
	}

	newID := m.NewID()
	keys := []string{KeyTheme, KeyToken, KeyUser}
	for _, k := range keys {
		v, ok := values[k]
		if !ok {
			continue
		}
		if err := m.deps.Persister.Save(ctx, newID, k, v); err != nil {
			return nil, fmt.Errorf("rotate session: %w", err)
		}
	}
	if err := m.deps.Persister.Remove(ctx, oldID, keys...); err != nil {
		return nil, fmt.Errorf("rotate session: %w", err)
	}

	sess := NewSession(newID, NewStore(old.State()), m.deps)
	m.live.Delete(oldID)
	m.live.Set(newID, sess)
	return sess, nil
}

// Touch marks s as seen at most once per TouchInterval so idle purges and
// cookie lifetimes follow activity rather than the last cache miss. It
// reports whether the session was marked.
func (m *Manager) Touch(ctx context.Context, s *Session) bool {
	now := s.now()
	last := s.lastSeen.Load()
	if now.Sub(time.Unix(0, last)) < TouchInterval || !s.lastSeen.CompareAndSwap(last, now.UnixNano()) {
		return false
	}
	if t, ok := m.deps.Persister.(Toucher); ok {
		if err := t.Touch(ctx, s.ID); err != nil {
			s.logger.WarnContext(ctx, "Failed to mark session as seen",
				log.FieldComponent, log.ComponentSession, log.FieldSessionID, s.ID, log.FieldError, err)
		}
	}
	return true
}

// Forget drops the in-memory copy; persisted values are kept.
func (m *Manager) Forget(id string) {
	m.live.Delete(id)
}

func (m *Manager) Live() int {
	return m.live.Size()
}

// Cache exposes the live-session cache for a cache.Manager sweep.
func (m *Manager) Cache() cache.Cleaner {
	return m.live
}
