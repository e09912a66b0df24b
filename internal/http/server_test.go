package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"expenso/internal/apiclient"
	"expenso/internal/catalog"
	"expenso/internal/charts"
	"expenso/internal/log"
	"expenso/internal/state"
	"expenso/internal/storage/memory"
)

const (
	testCookie   = "expenso_test"
	loginJSON    = `{"user":{"id":"u1","name":"Ana Lima","email":"ana@example.com"},"token":"tok"}`
	txJSON       = `{"id":"t1","amount":25.5,"type":"EXPENSE","category":"food","description":"Lunch","date":"2024-03-05"}`
	listJSON     = `{"items":[` + txJSON + `],"pagination":{"page":1,"limit":10,"total":1,"totalPages":1}}`
	dashJSON     = `{"totalIncome":1000,"totalExpenses":250,"balance":0,"recentTransactions":[` + txJSON + `],"monthlyData":[{"month":"Jan","income":1000,"expenses":250},{"month":"Feb","income":800,"expenses":300}],"categoryData":[{"name":"Food & Dining","value":250}]}`
	invalidCreds = `{"message":"Invalid credentials"}`
)

// fakeBackend answers the REST calls the web app makes.
type fakeBackend struct {
	mu           sync.Mutex
	hits         map[string]int
	unauthorized atomic.Bool
	outage       atomic.Bool
}

func (b *fakeBackend) hit(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[key]
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + strings.TrimPrefix(r.URL.Path, "/api")
	b.mu.Lock()
	b.hits[key]++
	b.mu.Unlock()

	if b.outage.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	if b.unauthorized.Load() && !strings.HasPrefix(key, "POST /auth/") {
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
			_, _ = io.WriteString(w, invalidCreds)
			return
		}
		_, _ = io.WriteString(w, loginJSON)
	case "POST /auth/register":
		_, _ = io.WriteString(w, loginJSON)
	case "POST /auth/logout", "DELETE /transactions/t1":
		w.WriteHeader(http.StatusNoContent)
	case "GET /transactions":
		_, _ = io.WriteString(w, listJSON)
	case "POST /transactions", "GET /transactions/t1", "PUT /transactions/t1":
		_, _ = io.WriteString(w, txJSON)
	case "GET /dashboard":
		_, _ = io.WriteString(w, dashJSON)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"Transaction not found"}`)
	}
}

type fakeHealth struct{ err error }

func (f fakeHealth) Ready(context.Context) error { return f.err }
func (f fakeHealth) BrokerStatus(context.Context) string { return "disabled" }

type testApp struct {
	t       *testing.T
	server  *Server
	backend *fakeBackend
	cookie  *http.Cookie
}

func newTestApp(t *testing.T, health HealthChecker) *testApp {
	t.Helper()
	backend := &fakeBackend{hits: map[string]int{}}
	api := httptest.NewServer(backend)
	t.Cleanup(api.Close)

	client, err := apiclient.New(api.URL+"/api", apiclient.WithTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("api client: %v", err)
	}
	logger := log.New(log.Config{Output: io.Discard})
	sessions := state.NewManager(state.Deps{
		API:       client,
		Persister: memory.New(),
		Catalog:   catalog.Default,
		Logger:    logger.Slog(),
	}, 100, time.Hour)

	srv, err := NewServer(Options{
		Sessions:   sessions,
		Charts:     charts.NewGenerator(),
		Health:     health,
		Logger:     logger,
		CookieName: testCookie,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testApp{t: t, server: srv, backend: backend}
}

// do sends a request carrying the session cookie and keeps any new one.
func (a *testApp) do(method, target string, form url.Values, htmx bool) *httptest.ResponseRecorder {
	a.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	if a.cookie != nil {
		req.AddCookie(a.cookie)
	}
	rec := httptest.NewRecorder()
	a.server.Handler.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == testCookie {
			a.cookie = c
		}
	}
	return rec
}

func (a *testApp) login() {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/login", url.Values{"email": {"Ana@Example.com"}, "password": {"secret123"}}, false)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/dashboard" {
		a.t.Fatalf("login: status %d location %q body %s", rec.Code, rec.Header().Get("Location"), rec.Body.String())
	}
}

func validTransaction() url.Values {
	return url.Values{
		"type":        {"EXPENSE"},
		"amount":      {"25.50"},
		"category":    {"food"},
		"description": {"Lunch"},
		"date":        {"2024-03-05"},
	}
}

func TestHealthEndpoints(t *testing.T) {
	app := newTestApp(t, fakeHealth{})

	rec := app.do(http.MethodGet, "/healthz", nil, false)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("healthz: %d %s", rec.Code, rec.Body.String())
	}

	rec = app.do(http.MethodGet, "/readyz", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz: %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"broker":"disabled"`) {
		t.Errorf("readyz should report broker status: %s", rec.Body.String())
	}

	rec = app.do(http.MethodGet, "/metrics", nil, false)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `transactions_total{op="create"} 0`) {
		t.Fatalf("metrics: %d %s", rec.Code, rec.Body.String())
	}
}

func TestReadyzFailsWhenStoreIsDown(t *testing.T) {
	app := newTestApp(t, fakeHealth{err: errors.New("database is locked")})
	rec := app.do(http.MethodGet, "/readyz", nil, false)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "database is locked") {
		t.Errorf("body should name the failure: %s", rec.Body.String())
	}
}

func TestProtectedRoutesRedirectToLogin(t *testing.T) {
	app := newTestApp(t, nil)

	for _, path := range []string{"/dashboard", "/transactions", "/transactions/new", "/reports", "/profile"} {
		rec := app.do(http.MethodGet, path, nil, false)
		if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
			t.Errorf("%s: status %d location %q", path, rec.Code, rec.Header().Get("Location"))
		}
	}

	rec := app.do(http.MethodGet, "/transactions", nil, true)
	if rec.Code != http.StatusOK || rec.Header().Get("HX-Redirect") != "/login" {
		t.Errorf("htmx: status %d HX-Redirect %q", rec.Code, rec.Header().Get("HX-Redirect"))
	}
	if app.backend.hit("GET /transactions") != 0 {
		t.Error("guard must not reach the backend")
	}
}

func TestSessionCookieIsIssuedOnce(t *testing.T) {
	app := newTestApp(t, nil)
	rec := app.do(http.MethodGet, "/login", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("login page: %d", rec.Code)
	}
	if app.cookie == nil || !state.ValidID(app.cookie.Value) {
		t.Fatalf("expected a session cookie, got %+v", app.cookie)
	}
	if !app.cookie.HttpOnly || app.cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("cookie attributes: %+v", app.cookie)
	}

	first := app.cookie.Value
	rec = app.do(http.MethodGet, "/login", nil, false)
	if len(rec.Result().Cookies()) != 0 {
		t.Error("a valid cookie should not be reissued")
	}
	if app.cookie.Value != first {
		t.Error("session id changed")
	}
}

func TestLoginFlow(t *testing.T) {
	app := newTestApp(t, nil)

	rec := app.do(http.MethodGet, "/", nil, false)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Take control of your money") {
		t.Fatalf("landing: %d", rec.Code)
	}

	rec = app.do(http.MethodPost, "/login", url.Values{"email": {"not-an-email"}, "password": {"secret123"}}, false)
	if rec.Code != http.StatusUnprocessableEntity || !strings.Contains(rec.Body.String(), "Please enter a valid email address") {
		t.Fatalf("invalid email: %d", rec.Code)
	}
	if app.backend.hit("POST /auth/login") != 0 {
		t.Fatal("invalid form must not reach the backend")
	}

	app.login()

	for _, path := range []string{"/", "/login", "/signup"} {
		rec = app.do(http.MethodGet, path, nil, false)
		if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/dashboard" {
			t.Errorf("%s after login: status %d location %q", path, rec.Code, rec.Header().Get("Location"))
		}
	}

	rec = app.do(http.MethodGet, "/dashboard", nil, false)
	body := rec.Body.String()
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard: %d", rec.Code)
	}
	for _, want := range []string{"$1,000.00", "$250.00", "$750.00", "75.0%", "Lunch", "Ana Lima"} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}

	rec = app.do(http.MethodPost, "/logout", url.Values{}, false)
	if rec.Header().Get("Location") != "/login?notice=logged-out" {
		t.Fatalf("logout location %q", rec.Header().Get("Location"))
	}
	rec = app.do(http.MethodGet, "/dashboard", nil, false)
	if rec.Header().Get("Location") != "/login" {
		t.Fatal("dashboard should be protected again after logout")
	}
}

func TestLoginRotatesSessionID(t *testing.T) {
	app := newTestApp(t, nil)
	app.do(http.MethodGet, "/login", nil, false)
	planted := app.cookie.Value

	app.login()
	if app.cookie.Value == planted || !state.ValidID(app.cookie.Value) {
		t.Fatalf("session id after login = %q, planted %q", app.cookie.Value, planted)
	}

	other := &testApp{t: t, server: app.server, backend: app.backend,
		cookie: &http.Cookie{Name: testCookie, Value: planted}}
	rec := other.do(http.MethodGet, "/dashboard", nil, false)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Fatalf("pre-login id still authenticates: status %d location %q", rec.Code, rec.Header().Get("Location"))
	}
	if rec = app.do(http.MethodGet, "/dashboard", nil, false); rec.Code != http.StatusOK {
		t.Fatalf("dashboard with the new id: %d", rec.Code)
	}

	signedIn := app.cookie.Value
	app.do(http.MethodPost, "/logout", url.Values{}, false)
	if app.cookie.Value == signedIn {
		t.Fatal("logout should issue a new session id")
	}
}

func TestSignupRotatesSessionID(t *testing.T) {
	app := newTestApp(t, nil)
	app.do(http.MethodGet, "/signup", nil, false)
	planted := app.cookie.Value

	rec := app.do(http.MethodPost, "/signup", url.Values{
		"name": {"Ana Lima"}, "email": {"ana@example.com"},
		"password": {"secret123"}, "confirmPassword": {"secret123"},
	}, false)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("signup: %d %s", rec.Code, rec.Body.String())
	}
	if app.cookie.Value == planted {
		t.Fatal("signup should issue a new session id")
	}
}

func TestLoginBackendOutageIsBadGateway(t *testing.T) {
	app := newTestApp(t, nil)
	app.backend.outage.Store(true)
	rec := app.do(http.MethodPost, "/login", url.Values{"email": {"ana@example.com"}, "password": {"secret123"}}, false)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestSafeReturnPath(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"/transactions?page=2", "/transactions?page=2"},
		{"", "/"},
		{"dashboard", "/"},
		{"//evil.example", "/"},
		{"/\\evil.example", "/"},
		{"/\t/evil.example", "/"},
		{"/\n/evil.example", "/"},
		{"https://evil.example/", "/"},
	}
	for _, tt := range tests {
		if got := safeReturnPath(tt.raw, "/"); got != tt.expected {
			t.Errorf("safeReturnPath(%q) = %q, want %q", tt.raw, got, tt.expected)
		}
	}
}

func TestLoginFailureShowsBackendMessage(t *testing.T) {
	app := newTestApp(t, nil)
	rec := app.do(http.MethodPost, "/login", url.Values{"email": {"ana@example.com"}, "password": {"wrongpass"}}, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Invalid credentials") {
		t.Errorf("body should show the backend message")
	}
}

func TestCreateTransaction(t *testing.T) {
	app := newTestApp(t, nil)
	app.login()

	invalid := validTransaction()
	invalid.Set("description", "ab")
	rec := app.do(http.MethodPost, "/transactions", invalid, false)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid create: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Description must be at least 3 characters") {
		t.Error("missing inline description error")
	}
	if app.backend.hit("POST /transactions") != 0 {
		t.Fatal("invalid input must not reach the backend")
	}

	rec = app.do(http.MethodPost, "/transactions", invalid, true)
	if rec.Code != http.StatusUnprocessableEntity || strings.Contains(rec.Body.String(), "<html") {
		t.Fatalf("htmx invalid create should return only the form: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `id="tx-form"`) {
		t.Error("htmx response should carry the form partial")
	}

	rec = app.do(http.MethodPost, "/transactions", validTransaction(), false)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/transactions?notice=created" {
		t.Fatalf("create: status %d location %q", rec.Code, rec.Header().Get("Location"))
	}
	if app.backend.hit("POST /transactions") != 1 {
		t.Error("expected one backend create")
	}
	if app.backend.hit("GET /dashboard") != 1 {
		t.Error("create should refresh the dashboard")
	}

	rec = app.do(http.MethodGet, "/transactions?notice=created", nil, false)
	body := rec.Body.String()
	if !strings.Contains(body, "Transaction added successfully!") || !strings.Contains(body, "Lunch") {
		t.Errorf("list page after create is missing the notice or the row")
	}
	if !strings.Contains(body, "-$25.50") {
		t.Errorf("expense amount should be signed")
	}
}

func TestCreateTransactionHTMXRedirects(t *testing.T) {
	app := newTestApp(t, nil)
	app.login()

	rec := app.do(http.MethodPost, "/transactions", validTransaction(), true)
	if rec.Code != http.StatusOK || rec.Header().Get("HX-Redirect") != "/transactions?notice=created" {
		t.Fatalf("status %d HX-Redirect %q", rec.Code, rec.Header().Get("HX-Redirect"))
	}
	if !strings.Contains(rec.Header().Get("HX-Trigger"), EventTransactionCreated) {
		t.Errorf("HX-Trigger = %q", rec.Header().Get("HX-Trigger"))
	}
}

func TestDeleteTransactionReturnsTable(t *testing.T) {
	app := newTestApp(t, nil)
	app.login()
	app.do(http.MethodGet, "/transactions", nil, false)

	rec := app.do(http.MethodDelete, "/transactions/t1", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body.String())
	}
	trigger := rec.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, EventTransactionDeleted) || !strings.Contains(trigger, "Transaction deleted successfully") {
		t.Errorf("HX-Trigger = %q", trigger)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `id="tx-table"`) || strings.Contains(body, "Lunch") {
		t.Errorf("table should be re-rendered without the deleted row")
	}

	rec = app.do(http.MethodDelete, "/transactions/missing", nil, true)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing id: %d", rec.Code)
	}
}

func TestEditUnknownTransactionRedirects(t *testing.T) {
	app := newTestApp(t, nil)
	app.login()

	rec := app.do(http.MethodGet, "/transactions/missing/edit", nil, false)
	if rec.Header().Get("Location") != "/transactions?notice=load-failed" {
		t.Fatalf("location %q", rec.Header().Get("Location"))
	}

	rec = app.do(http.MethodGet, "/transactions/t1/edit", nil, false)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Update Transaction") {
		t.Fatalf("edit page: %d", rec.Code)
	}
}

func TestCategoryOptionsFollowType(t *testing.T) {
	app := newTestApp(t, nil)
	app.login()

	rec := app.do(http.MethodGet, "/transactions/categories?type=INCOME&category=food", nil, true)
	body := rec.Body.String()
	if !strings.Contains(body, `value="salary"`) || strings.Contains(body, `value="food"`) {
		t.Fatalf("income options expected: %s", body)
	}
	if strings.Contains(body, "selected") {
		t.Error("an expense category must not stay selected for income")
	}

	rec = app.do(http.MethodGet, "/transactions/categories?type=INCOME&category=salary", nil, true)
	if !strings.Contains(rec.Body.String(), `value="salary" selected`) {
		t.Error("a valid category should stay selected")
	}
}

func TestUnauthorizedBackendLogsOut(t *testing.T) {
	app := newTestApp(t, nil)
	app.login()
	app.backend.unauthorized.Store(true)

	rec := app.do(http.MethodGet, "/transactions", nil, false)
	if rec.Header().Get("Location") != "/login" {
		t.Fatalf("expected redirect to login, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	rec = app.do(http.MethodGet, "/login", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("login page should be reachable after forced logout: %d", rec.Code)
	}
}

func TestThemeToggle(t *testing.T) {
	app := newTestApp(t, nil)

	rec := app.do(http.MethodPost, "/ui/theme", url.Values{}, true)
	if rec.Header().Get("HX-Refresh") != "true" {
		t.Fatalf("HX-Refresh = %q", rec.Header().Get("HX-Refresh"))
	}
	rec = app.do(http.MethodGet, "/login", nil, false)
	if !strings.Contains(rec.Body.String(), `<html lang="en" class="dark">`) {
		t.Error("dark theme class missing from root element")
	}

	rec = app.do(http.MethodPost, "/ui/theme", url.Values{"return": {"//evil.example"}}, false)
	if rec.Header().Get("Location") != "/" {
		t.Errorf("unsafe return path should fall back to /, got %q", rec.Header().Get("Location"))
	}
	rec = app.do(http.MethodGet, "/login", nil, false)
	if !strings.Contains(rec.Body.String(), `<html lang="en" class="">`) {
		t.Error("second toggle should restore the light theme")
	}
}

func TestChartEndpoints(t *testing.T) {
	app := newTestApp(t, nil)
	app.login()

	rec := app.do(http.MethodGet, "/charts/trend.png", nil, false)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("trend chart: %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("charts must not be cached")
	}

	rec = app.do(http.MethodGet, "/charts/categories.png?source=reports", nil, false)
	if rec.Code != http.StatusNoContent {
		t.Errorf("chart without report data: %d, want 204", rec.Code)
	}
}

func TestRedirectAliases(t *testing.T) {
	app := newTestApp(t, nil)
	cases := map[string]string{
		"/add-transaction":     "/transactions/new",
		"/edit-transaction/t1": "/transactions/t1/edit",
		"/no/such/page":        "/",
	}
	for path, want := range cases {
		rec := app.do(http.MethodGet, path, nil, false)
		if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != want {
			t.Errorf("%s: status %d location %q, want %q", path, rec.Code, rec.Header().Get("Location"), want)
		}
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	app := newTestApp(t, nil)
	rec := app.do(http.MethodGet, "/login", nil, false)
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Errorf("X-Frame-Options = %q", rec.Header().Get("X-Frame-Options"))
	}
	if !strings.Contains(rec.Header().Get("Content-Security-Policy"), "https://unpkg.com") {
		t.Errorf("CSP should allow htmx from unpkg")
	}
	if !strings.HasPrefix(rec.Header().Get("X-Request-ID"), "req_") {
		t.Errorf("X-Request-ID = %q", rec.Header().Get("X-Request-ID"))
	}
}

func TestStaticAssetsAreServed(t *testing.T) {
	app := newTestApp(t, nil)
	rec := app.do(http.MethodGet, "/static/app.css", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("app.css: %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Cache-Control"), "max-age=3600") {
		t.Errorf("Cache-Control = %q", rec.Header().Get("Cache-Control"))
	}
}
