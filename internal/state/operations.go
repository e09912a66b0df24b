package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"expenso/internal/apiclient"
	"expenso/internal/catalog"
	"expenso/internal/core"
	"expenso/internal/log"
)

var ErrNotAuthenticated = errors.New("not authenticated")

// CatalogSource yields the category catalog used for validation.
// *catalog.Catalog and *catalog.Service both satisfy it.
type CatalogSource interface {
	Catalog(ctx context.Context) *catalog.Catalog
}

// Session binds one Store to its collaborators. Its methods are the async
// operations of the app: they call the backend and dispatch the outcome.
type Session struct {
	ID      string
	store   *Store
	api     *apiclient.Client
	persist Persister
	events  ActivityPublisher
	catalog CatalogSource
	logger  *slog.Logger
	now     func() time.Time
	skew    time.Duration

	// lastSeen is the unix nano time the session was last marked as seen.
	lastSeen atomic.Int64
}

type Deps struct {
	API         *apiclient.Client
	Persister   Persister
	Events      ActivityPublisher
	Catalog     CatalogSource
	Logger      *slog.Logger
	RefreshSkew time.Duration
	Now         func() time.Time
}

func NewSession(id string, store *Store, d Deps) *Session {
	s := &Session{
		ID:      id,
		store:   store,
		api:     d.API,
		persist: d.Persister,
		events:  d.Events,
		catalog: d.Catalog,
		logger:  d.Logger,
		now:     d.Now,
		skew:    d.RefreshSkew,
	}
	if s.events == nil {
		s.events = noopPublisher{}
	}
	if s.catalog == nil {
		s.catalog = catalog.Default
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.lastSeen.Store(s.now().UnixNano())
	return s
}

func (s *Session) State() State { return s.store.Snapshot() }
func (s *Session) Dispatch(a Action) State { return s.store.Dispatch(a) }
func (s *Session) Store() *Store { return s.store }

// Catalog returns the catalog forms should offer.
func (s *Session) Catalog(ctx context.Context) *catalog.Catalog {
	return s.catalog.Catalog(ctx)
}

// Restore hydrates the store from persisted values, like a page reload.
func (s *Session) Restore(ctx context.Context) error {
	values, err := s.persist.Load(ctx, s.ID)
	if err != nil {
		return fmt.Errorf("load session %s: %w", s.ID, err)
	}
	session, theme, err := restoredState(values)
	if err != nil {
		s.logger.WarnContext(ctx, "Ignoring unreadable persisted user", log.FieldComponent, log.ComponentSession, log.FieldError, err)
	}
	s.store.Dispatch(ThemeSet{Theme: theme})
	if session.Active() {
		s.store.Dispatch(SessionRestored{Session: session})
	}
	return nil
}

// --- auth ---

func (s *Session) Login(ctx context.Context, creds core.Credentials) error {
	s.store.Dispatch(AuthPending{})
	res, err := s.api.Login(ctx, creds)
	return s.finishAuth(ctx, "login", res, err)
}

func (s *Session) Register(ctx context.Context, reg core.Registration) error {
	s.store.Dispatch(AuthPending{})
	res, err := s.api.Register(ctx, reg)
	return s.finishAuth(ctx, "register", res, err)
}

func (s *Session) finishAuth(ctx context.Context, op string, res apiclient.AuthResponse, err error) error {
	if err != nil {
		s.store.Dispatch(AuthFailed{Message: apiclient.UserMessage(err)})
		s.logger.WarnContext(ctx, "Authentication failed", log.FieldComponent, log.ComponentAuth, log.FieldOperation, op, log.FieldError, err)
		return err
	}
	session := core.AuthSession{User: res.User, Token: res.Token}
	s.persistSession(ctx, session)
	s.store.Dispatch(AuthSucceeded{Session: session})
	s.logger.InfoContext(ctx, "User authenticated", log.FieldComponent, log.ComponentAuth, log.FieldOperation, op, log.FieldSessionID, s.ID)
	return nil
}

// persistSession failures are logged: the user is logged in for this process
// even if the session would not survive a restart.
func (s *Session) persistSession(ctx context.Context, session core.AuthSession) {
	if err := s.persist.Save(ctx, s.ID, KeyToken, session.Token); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist token", log.FieldComponent, log.ComponentSession, log.FieldError, err)
	}
	user, err := encodeUser(session.User)
	if err == nil {
		err = s.persist.Save(ctx, s.ID, KeyUser, user)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist user", log.FieldComponent, log.ComponentSession, log.FieldError, err)
	}
}

// Logout always clears local auth state; the backend call is best effort.
func (s *Session) Logout(ctx context.Context) {
	if token := s.store.Snapshot().Auth.Token; token != "" {
		if err := s.api.WithToken(token).Logout(ctx); err != nil {
			s.logger.InfoContext(ctx, "Backend logout failed, clearing session anyway", log.FieldComponent, log.ComponentAuth, log.FieldError, err)
		}
	}
	s.clearAuth(ctx)
}

func (s *Session) clearAuth(ctx context.Context) {
	if err := s.persist.Remove(ctx, s.ID, KeyToken, KeyUser); err != nil {
		s.logger.ErrorContext(ctx, "Failed to clear persisted session", log.FieldComponent, log.ComponentSession, log.FieldError, err)
	}
	s.store.Dispatch(LoggedOut{})
}

func (s *Session) ClearError() {
	s.store.Dispatch(ErrorCleared{})
}

// authed returns a client carrying the current token, refreshing it first
// when it is about to expire.
func (s *Session) authed(ctx context.Context) (*apiclient.Client, error) {
	token := s.store.Snapshot().Auth.Token
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	if s.skew > 0 && apiclient.TokenNeedsRefresh(token, s.now(), s.skew) {
		fresh, err := s.api.WithToken(token).RefreshToken(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "Token refresh failed", log.FieldComponent, log.ComponentAuth, log.FieldError, err)
		} else {
			if err := s.persist.Save(ctx, s.ID, KeyToken, fresh); err != nil {
				s.logger.ErrorContext(ctx, "Failed to persist refreshed token", log.FieldComponent, log.ComponentSession, log.FieldError, err)
			}
			s.store.Dispatch(TokenRefreshed{Token: fresh})
			token = fresh
		}
	}
	return s.api.WithToken(token), nil
}

// checkAuth logs the session out when the backend rejects the token.
func (s *Session) checkAuth(ctx context.Context, err error) error {
	if errors.Is(err, apiclient.ErrUnauthorized) {
		s.logger.InfoContext(ctx, "Backend rejected token, logging out", log.FieldComponent, log.ComponentAuth, log.FieldSessionID, s.ID)
		s.clearAuth(ctx)
	}
	return err
}

func (s *Session) UpdateProfile(ctx context.Context, p apiclient.ProfileUpdate) error {
	api, err := s.authed(ctx)
	if err != nil {
		return err
	}
	user, err := api.UpdateProfile(ctx, p)
	if err != nil {
		return s.checkAuth(ctx, err)
	}
	if encoded, err := encodeUser(user); err == nil {
		if err := s.persist.Save(ctx, s.ID, KeyUser, encoded); err != nil {
			s.logger.ErrorContext(ctx, "Failed to persist user", log.FieldComponent, log.ComponentSession, log.FieldError, err)
		}
	}
	s.store.Dispatch(ProfileUpdated{User: user})
	return nil
}

func (s *Session) ChangePassword(ctx context.Context, p apiclient.PasswordChange) (string, error) {
	api, err := s.authed(ctx)
	if err != nil {
		return "", err
	}
	msg, err := api.ChangePassword(ctx, p)
	if err != nil {
		return "", s.checkAuth(ctx, err)
	}
	return msg, nil
}

func (s *Session) ForgotPassword(ctx context.Context, email string) (string, error) {
	return s.api.ForgotPassword(ctx, email)
}

func (s *Session) ResetPassword(ctx context.Context, token, password string) (string, error) {
	return s.api.ResetPassword(ctx, token, password)
}

// --- transactions ---

// FetchTransactions loads a page using the filters and sort held in state and
// replaces the list and pagination.
func (s *Session) FetchTransactions(ctx context.Context, page, limit int) error {
	api, err := s.authed(ctx)
	if err != nil {
		return err
	}
	snap := s.store.Dispatch(TransactionsPending{})
	q := core.ListQuery{Page: page, Limit: limit, Filters: snap.Transactions.Filters, Sort: snap.Transactions.Sort}
	list, err := api.ListTransactions(ctx, q)
	if err != nil {
		s.store.Dispatch(TransactionsFailed{})
		return s.checkAuth(ctx, err)
	}
	s.store.Dispatch(TransactionsLoaded{Items: list.Items, Pagination: list.Pagination})
	return nil
}

// FetchTransaction loads one transaction for editing; the list is untouched.
func (s *Session) FetchTransaction(ctx context.Context, id string) (core.Transaction, error) {
	api, err := s.authed(ctx)
	if err != nil {
		return core.Transaction{}, err
	}
	tx, err := api.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, s.checkAuth(ctx, err)
	}
	return tx, nil
}

// CreateTransaction validates, creates and then refetches the dashboard.
// Validation problems come back as core.ValidationErrors.
func (s *Session) CreateTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	tx, err := in.Parse(s.catalog.Catalog(ctx))
	if err != nil {
		return core.Transaction{}, err
	}
	api, err := s.authed(ctx)
	if err != nil {
		return core.Transaction{}, err
	}
	s.store.Dispatch(TransactionsPending{})
	created, err := api.CreateTransaction(ctx, tx)
	if err != nil {
		s.store.Dispatch(TransactionsFailed{})
		return core.Transaction{}, s.checkAuth(ctx, err)
	}
	s.store.Dispatch(TransactionSaved{Transaction: created})
	s.publish(ctx, core.ActivityCreated, created)

	if err := s.FetchDashboardData(ctx); err != nil {
		s.logger.WarnContext(ctx, "Dashboard refresh after create failed", log.FieldComponent, log.ComponentTransactions, log.FieldError, err)
	}
	return created, nil
}

// UpdateTransaction does not patch the in-memory list; the next fetch shows the change.
func (s *Session) UpdateTransaction(ctx context.Context, id string, in core.TransactionInput) (core.Transaction, error) {
	tx, err := in.Parse(s.catalog.Catalog(ctx))
	if err != nil {
		return core.Transaction{}, err
	}
	api, err := s.authed(ctx)
	if err != nil {
		return core.Transaction{}, err
	}
	s.store.Dispatch(TransactionsPending{})
	updated, err := api.UpdateTransaction(ctx, id, tx)
	if err != nil {
		s.store.Dispatch(TransactionsFailed{})
		return core.Transaction{}, s.checkAuth(ctx, err)
	}
	s.store.Dispatch(TransactionSaved{Transaction: updated})
	s.publish(ctx, core.ActivityUpdated, updated)
	return updated, nil
}

// DeleteTransaction removes the entry locally only after the backend confirms.
func (s *Session) DeleteTransaction(ctx context.Context, id string) error {
	api, err := s.authed(ctx)
	if err != nil {
		return err
	}
	s.store.Dispatch(TransactionsPending{})
	if err := api.DeleteTransaction(ctx, id); err != nil {
		s.store.Dispatch(TransactionsFailed{})
		return s.checkAuth(ctx, err)
	}
	deleted := core.Transaction{ID: id}
	for _, t := range s.store.Snapshot().Transactions.Items {
		if t.ID == id {
			deleted = t
			break
		}
	}
	s.store.Dispatch(TransactionDeleted{ID: id})
	s.publish(ctx, core.ActivityDeleted, deleted)
	return nil
}

func (s *Session) FetchDashboardData(ctx context.Context) error {
	api, err := s.authed(ctx)
	if err != nil {
		return err
	}
	s.store.Dispatch(TransactionsPending{})
	data, err := api.Dashboard(ctx)
	if err != nil {
		s.store.Dispatch(TransactionsFailed{})
		return s.checkAuth(ctx, err)
	}
	s.store.Dispatch(DashboardLoaded{Data: data})
	return nil
}

func (s *Session) FetchReports(ctx context.Context, r catalog.DateRange) error {
	api, err := s.authed(ctx)
	if err != nil {
		return err
	}
	s.store.Dispatch(TransactionsPending{})
	rep, err := api.Reports(ctx, r, s.now())
	if err != nil {
		s.store.Dispatch(TransactionsFailed{})
		return s.checkAuth(ctx, err)
	}
	s.store.Dispatch(ReportLoaded{Report: rep})
	return nil
}

// Export streams the backend CSV for the current filters.
func (s *Session) Export(ctx context.Context) (*apiclient.Download, error) {
	api, err := s.authed(ctx)
	if err != nil {
		return nil, err
	}
	dl, err := api.Export(ctx, s.store.Snapshot().Transactions.Filters)
	if err != nil {
		return nil, s.checkAuth(ctx, err)
	}
	return dl, nil
}

// SetFilters and ClearFilters do not refetch; callers decide when to.
func (s *Session) SetFilters(partial core.Filters) { s.store.Dispatch(FiltersSet{Partial: partial}) }
func (s *Session) ClearFilters() { s.store.Dispatch(FiltersCleared{}) }
func (s *Session) ToggleSort(field string) { s.store.Dispatch(SortToggled{Field: field}) }

func (s *Session) publish(ctx context.Context, kind core.ActivityKind, tx core.Transaction) {
	ev := core.ActivityEvent{
		ID:          uuid.NewString(),
		Kind:        kind,
		UserEmail:   s.store.Snapshot().Auth.User.Email,
		Transaction: tx,
		OccurredAt:  s.now().UTC(),
	}
	if err := s.events.PublishActivity(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish activity event",
			log.FieldComponent, log.ComponentTransactions, log.FieldEventKind, kind, log.FieldTransactionID, tx.ID, log.FieldError, err)
	}
}

// --- ui ---

// ToggleTheme flips and persists the theme; it survives logout.
func (s *Session) ToggleTheme(ctx context.Context) core.Theme {
	theme := s.store.Dispatch(ThemeToggled{}).UI.Theme
	if err := s.persist.Save(ctx, s.ID, KeyTheme, string(theme)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist theme", log.FieldComponent, log.ComponentSession, log.FieldError, err)
	}
	return theme
}

func (s *Session) ToggleSidebar() { s.store.Dispatch(SidebarToggled{}) }
func (s *Session) CloseSidebar() { s.store.Dispatch(SidebarClosed{}) }
func (s *Session) SetLoading(loading bool) { s.store.Dispatch(LoadingSet{Loading: loading}) }
