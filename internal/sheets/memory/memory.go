// Package memory records audit rows in process, for tests and for running the
// worker without Google credentials.
package memory

import (
	"context"
	"fmt"
	"sync"

	"expenso/internal/core"
	"expenso/internal/sheets"
)

var _ sheets.AuditWriter = (*Store)(nil)

type Store struct {
	mu   sync.Mutex
	rows [][]any
	// Err, when set, is returned by every append.
	Err error
}

func New() *Store {
	return &Store{}
}

func (s *Store) AppendActivity(_ context.Context, events []core.ActivityEvent) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	if len(events) == 0 {
		return "", nil
	}
	first := len(s.rows) + 1
	for _, e := range events {
		s.rows = append(s.rows, sheets.AuditRow(e))
	}
	return fmt.Sprintf("mem!A%d:J%d", first, len(s.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (s *Store) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, len(s.rows))
	copy(out, s.rows)
	return out
}
