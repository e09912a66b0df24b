// Package state holds the per-session application state: one container with
// auth, transaction and UI slices, updated only through Dispatch.
package state

import (
	"sync"

	"expenso/internal/core"
)

type AuthState struct {
	User            core.User
	Token           string
	IsAuthenticated bool
	Loading         bool
	Error           string
}

// TransactionState keeps a loading flag but no error detail; failures are
// returned to the caller, which notifies the user.
type TransactionState struct {
	Items      []core.Transaction
	Pagination core.Pagination
	Filters    core.Filters
	Sort       core.Sort
	Dashboard  core.DashboardData
	Report     core.Report
	Loading    bool
}

type UIState struct {
	Theme       core.Theme
	SidebarOpen bool
	Loading     bool
}

type State struct {
	Auth         AuthState
	Transactions TransactionState
	UI           UIState
}

// Initial is the state of a brand new session.
func Initial() State {
	return State{
		Transactions: TransactionState{
			Items:      []core.Transaction{},
			Sort:       core.DefaultSort(),
			Pagination: core.Pagination{Page: core.DefaultPage, Limit: core.DefaultLimit},
			Dashboard:  core.DashboardData{}.Normalize(),
		},
		UI: UIState{Theme: core.ThemeLight},
	}
}

// clone copies every slice so callers cannot mutate the store through a snapshot.
func (s State) clone() State {
	s.Transactions.Items = append([]core.Transaction(nil), s.Transactions.Items...)
	d := &s.Transactions.Dashboard
	d.RecentTransactions = append([]core.Transaction(nil), d.RecentTransactions...)
	d.MonthlyData = append([]core.MonthlyPoint(nil), d.MonthlyData...)
	d.CategoryData = append([]core.CategoryAmount(nil), d.CategoryData...)
	r := &s.Transactions.Report
	r.Series = append([]core.MonthlyPoint(nil), r.Series...)
	r.CategoryData = append([]core.CategoryAmount(nil), r.CategoryData...)
	return s
}

// Listener observes every dispatch after the state has changed.
type Listener func(prev, next State, a Action)

// Store serializes all dispatches, so concurrent requests on one session
// observe a linear history.
type Store struct {
	mu        sync.Mutex
	state     State
	listeners []Listener
}

func NewStore(initial State) *Store {
	return &Store{state: initial}
}

// Dispatch routes a to every slice reducer and returns the resulting state.
func (s *Store) Dispatch(a Action) State {
	s.mu.Lock()
	prev := s.state
	next := State{
		Auth:         reduceAuth(prev.Auth, a),
		Transactions: reduceTransactions(prev.Transactions, a),
		UI:           reduceUI(prev.UI, a),
	}
	s.state = next
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(prev.clone(), next.clone(), a)
	}
	return next.clone()
}

func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}
