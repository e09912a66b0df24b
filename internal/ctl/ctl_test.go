package ctl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenso/internal/apiclient"
	"expenso/internal/core"
	"expenso/internal/state"
	"expenso/internal/storage/memory"
)

const (
	txJSON   = `{"id":"t1","amount":25.5,"type":"EXPENSE","category":"food","description":"Lunch","date":"2024-03-05"}`
	dashJSON = `{"totalIncome":1000,"totalExpenses":250,"balance":0,"recentTransactions":[` + txJSON + `],"monthlyData":[],"categoryData":[{"name":"Food & Dining","value":200},{"name":"Transportation","value":50}]}`
	csvBody  = "date,description,amount\n2024-03-05,Lunch,-25.50\n"
)

type fakeAPI struct {
	mu           sync.Mutex
	calls        []string
	lastQuery    url.Values
	unauthorized atomic.Bool
}

func (f *fakeAPI) called(call string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == call {
			return true
		}
	}
	return false
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + strings.TrimPrefix(r.URL.Path, "/api")
	f.mu.Lock()
	f.calls = append(f.calls, key)
	if strings.HasPrefix(key, "GET /transactions") {
		f.lastQuery = r.URL.Query()
	}
	f.mu.Unlock()

	if f.unauthorized.Load() && key != "POST /auth/login" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch key {
	case "POST /auth/login":
		var creds struct{ Password string }
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "secret123" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"message":"Invalid credentials"}`)
			return
		}
		_, _ = io.WriteString(w, `{"user":{"id":"u1","name":"Ana Lima","email":"ana@example.com"},"token":"tok"}`)
	case "POST /auth/logout", "DELETE /transactions/t1":
		w.WriteHeader(http.StatusNoContent)
	case "GET /transactions":
		_, _ = io.WriteString(w, `{"items":[`+txJSON+`],"pagination":{"page":1,"limit":10,"total":1,"totalPages":1}}`)
	case "POST /transactions":
		_, _ = io.WriteString(w, txJSON)
	case "GET /dashboard":
		_, _ = io.WriteString(w, dashJSON)
	case "GET /transactions/export":
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, csvBody)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"Transaction not found"}`)
	}
}

type harness struct {
	t     *testing.T
	api   *fakeAPI
	url   string
	store state.Persister
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("EXPENSO_PASSWORD", "")
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return &harness{t: t, api: api, url: srv.URL + "/api", store: memory.New()}
}

// run executes one expensoctl invocation; the session store is shared
// between runs like the on-disk store would be.
func (h *harness) run(args ...string) (string, string, error) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	open := func(ctx context.Context, cfg Config, logger *slog.Logger) (*App, error) {
		api, err := apiclient.New(cfg.APIBaseURL, apiclient.WithTimeout(2*time.Second))
		if err != nil {
			return nil, err
		}
		return NewApp(ctx, api, h.store, time.Minute, logger)
	}
	cmd := NewRootCmd(Options{Out: &out, Err: &errOut, Viper: viper.New(), Open: open})
	cmd.SetArgs(append(args, "--api-url", h.url, "--log-level", "error"))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func (h *harness) login() {
	h.t.Helper()
	_, _, err := h.run("login", "--email", "Ana@Example.com", "--password", "secret123")
	require.NoError(h.t, err)
}

func TestLoginPersistsBetweenRuns(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.run("login", "--email", "Ana@Example.com", "--password", "secret123")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as Ana Lima <ana@example.com>")

	out, _, err = h.run("whoami")
	require.NoError(t, err)
	assert.Equal(t, "Ana Lima <ana@example.com>\n", out)

	out, _, err = h.run("logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out.")
	assert.True(t, h.api.called("POST /auth/logout"))

	_, _, err = h.run("whoami")
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestLoginFailures(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run("login", "--email", "ana@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email and password are required")
	assert.False(t, h.api.called("POST /auth/login"))

	_, _, err = h.run("login", "--email", "ana@example.com", "--password", "wrongpass")
	require.Error(t, err)
	assert.Equal(t, "login failed: Invalid credentials", err.Error())
}

func TestLoginPasswordFromEnvironment(t *testing.T) {
	h := newHarness(t)
	t.Setenv("EXPENSO_PASSWORD", "secret123")

	out, _, err := h.run("login", "--email", "ana@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as Ana Lima")
}

func TestCommandsRequireLogin(t *testing.T) {
	h := newHarness(t)
	for _, args := range [][]string{
		{"dashboard"},
		{"tx", "list"},
		{"tx", "delete", "t1"},
		{"export"},
		{"report"},
	} {
		_, _, err := h.run(args...)
		assert.ErrorIs(t, err, ErrNotLoggedIn, "args %v", args)
	}
	assert.Empty(t, h.api.calls)
}

func TestListSendsFiltersAndRendersRows(t *testing.T) {
	h := newHarness(t)
	h.login()

	out, _, err := h.run("tx", "list", "--type", "income", "--from", "2024-01-01", "--to", "2024-01-31", "--sort", "amount", "--asc")
	require.NoError(t, err)

	q := h.api.lastQuery
	assert.Equal(t, "INCOME", q.Get("type"))
	assert.Equal(t, "2024-01-01", q.Get("dateFrom"))
	assert.Equal(t, "2024-01-31", q.Get("dateTo"))
	assert.Equal(t, "amount", q.Get("sortBy"))
	assert.Equal(t, core.SortAsc, q.Get("sortOrder"))

	assert.Contains(t, out, "Lunch")
	assert.Contains(t, out, "-$25.50")
	assert.Contains(t, out, "Food & Dining")
	assert.Contains(t, out, "Page 1 of 1 · 1 transactions")
}

func TestListRejectsBadFilters(t *testing.T) {
	h := newHarness(t)
	h.login()

	_, _, err := h.run("tx", "list", "--type", "transfer")
	assert.ErrorIs(t, err, core.ErrInvalidType)

	_, _, err = h.run("tx", "list", "--from", "2024-02-30")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--from")
	assert.False(t, h.api.called("GET /transactions"))
}

func TestAddValidatesBeforeCallingBackend(t *testing.T) {
	h := newHarness(t)
	h.login()

	_, errOut, err := h.run("tx", "add", "--amount", "abc", "--category", "salary", "--description", "Lu", "--date", "2024-03-05")
	require.EqualError(t, err, "transaction not saved")
	assert.Contains(t, errOut, "amount: Enter a valid amount")
	assert.Contains(t, errOut, "category: Category does not match the transaction type")
	assert.Contains(t, errOut, "description: Description must be at least 3 characters")
	assert.False(t, h.api.called("POST /transactions"))
}

func TestAddCreatesTransaction(t *testing.T) {
	h := newHarness(t)
	h.login()

	out, _, err := h.run("tx", "add", "--amount", "25.50", "--category", "food", "--description", "Lunch", "--date", "2024-03-05")
	require.NoError(t, err)
	assert.Contains(t, out, "Added Expense $25.50 (t1)")
	assert.True(t, h.api.called("POST /transactions"))
	assert.True(t, h.api.called("GET /dashboard"), "create refreshes the dashboard")
}

func TestDelete(t *testing.T) {
	h := newHarness(t)
	h.login()

	out, _, err := h.run("tx", "delete", "t1")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted transaction t1")

	_, _, err = h.run("tx", "delete", "nope")
	require.Error(t, err)
	assert.Equal(t, "Transaction not found", err.Error())
}

func TestDashboard(t *testing.T) {
	h := newHarness(t)
	h.login()

	out, _, err := h.run("dashboard")
	require.NoError(t, err)
	for _, want := range []string{"$1,000.00", "$250.00", "$750.00", "75.0%", "Expenses by category", "80.0%", "Recent transactions", "Lunch"} {
		assert.Contains(t, out, want)
	}
	assert.Less(t, strings.Index(out, "Food & Dining"), strings.Index(out, "Transportation"), "largest category first")
}

func TestExportWritesFile(t *testing.T) {
	h := newHarness(t)
	h.login()
	path := filepath.Join(t.TempDir(), "out.csv")

	_, errOut, err := h.run("export", "--category", "food", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, errOut, "Wrote")
	assert.Equal(t, "food", h.api.lastQuery.Get("category"))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, csvBody, string(b))

	out, _, err := h.run("export")
	require.NoError(t, err)
	assert.Equal(t, csvBody, out)
}

func TestExpiredSessionIsCleared(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.api.unauthorized.Store(true)

	_, _, err := h.run("dashboard")
	assert.ErrorIs(t, err, ErrSessionExpired)

	_, _, err = h.run("whoami")
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestCategoriesByType(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.run("categories", "--type", "income")
	require.NoError(t, err)
	assert.Contains(t, out, "salary")
	assert.NotContains(t, out, "food")

	out, _, err = h.run("categories")
	require.NoError(t, err)
	assert.Contains(t, out, "salary")
	assert.Contains(t, out, "food")
}

func TestMoney(t *testing.T) {
	tests := []struct {
		cents    int64
		expected string
	}{
		{0, "$0.00"},
		{5, "$0.05"},
		{2550, "$25.50"},
		{100000, "$1,000.00"},
		{123456789, "$1,234,567.89"},
		{-2550, "-$25.50"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, money(core.Money{Cents: tt.cents}))
		})
	}
}
