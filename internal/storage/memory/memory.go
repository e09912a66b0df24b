// Package memory is a process-local session store for development and tests.
// Nothing survives a restart.
package memory

import (
	"context"
	"errors"
	"sync"
)

var ErrEmptySessionID = errors.New("empty session id")

type Store struct {
	mu       sync.Mutex
	sessions map[string]map[string]string
}

func New() *Store {
	return &Store{sessions: map[string]map[string]string{}}
}

// Load returns a copy of the session's values.
func (s *Store) Load(_ context.Context, sessionID string) (map[string]string, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.sessions[sessionID]))
	for k, v := range s.sessions[sessionID] {
		out[k] = v
	}
	return out, nil
}

func (s *Store) Save(_ context.Context, sessionID, key, value string) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	values := s.sessions[sessionID]
	if values == nil {
		values = map[string]string{}
		s.sessions[sessionID] = values
	}
	values[key] = value
	return nil
}

func (s *Store) Remove(_ context.Context, sessionID string, keys ...string) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.sessions[sessionID], k)
	}
	return nil
}

// Ping always succeeds; it exists so the store can back the readiness probe.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
