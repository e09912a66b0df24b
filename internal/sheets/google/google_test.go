package google

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"expenso/internal/core"
)

// fakeSheets serves the three Values calls AppendActivity makes.
type fakeSheets struct {
	mu       sync.Mutex
	headers  map[string]bool
	appended map[string][][]any
	gets     int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, rest, _ := strings.Cut(r.URL.Path, "/values/")
	sheet, _, _ := strings.Cut(rest, "!")

	switch {
	case r.Method == http.MethodGet:
		f.gets++
		vr := gsheet.ValueRange{}
		if f.headers[sheet] {
			vr.Values = [][]any{{"Occurred At"}}
		}
		_ = json.NewEncoder(w).Encode(vr)
	case r.Method == http.MethodPut:
		f.headers[sheet] = true
		_ = json.NewEncoder(w).Encode(gsheet.UpdateValuesResponse{})
	case r.Method == http.MethodPost && strings.HasSuffix(rest, ":append"):
		var vr gsheet.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.appended[sheet] = append(f.appended[sheet], vr.Values...)
		_ = json.NewEncoder(w).Encode(gsheet.AppendValuesResponse{
			Updates: &gsheet.UpdateValuesResponse{UpdatedRange: sheet + "!A2:J2"},
		})
	default:
		http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusBadRequest)
	}
}

func newFakeClient(t *testing.T) (*Client, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{headers: map[string]bool{}, appended: map[string][][]any{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithHTTPClient(srv.Client()),
		goption.WithEndpoint(srv.URL+"/"))
	if err != nil {
		t.Fatalf("sheets service: %v", err)
	}
	return NewWithService(svc, "sheet-id", "Activity", slog.New(slog.NewTextHandler(io.Discard, nil))), fake
}

func event(id string, at time.Time) core.ActivityEvent {
	return core.ActivityEvent{
		ID:        id,
		Kind:      core.ActivityCreated,
		UserEmail: "ana@example.com",
		Transaction: core.Transaction{
			ID: "t-" + id, Amount: core.Money{Cents: 1999}, Type: core.Expense,
			Category: "food", Description: "Groceries", Date: core.DateOf(at),
		},
		OccurredAt: at,
	}
}

func TestAppendActivityWritesHeaderOncePerSheet(t *testing.T) {
	c, fake := newFakeClient(t)
	ctx := context.Background()
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	if _, err := c.AppendActivity(ctx, []core.ActivityEvent{event("e1", at)}); err != nil {
		t.Fatalf("first append: %v", err)
	}
	ref, err := c.AppendActivity(ctx, []core.ActivityEvent{event("e2", at.Add(time.Hour))})
	if err != nil {
		t.Fatalf("second append: %v", err)
	}
	if ref != "2024 Activity!A2:J2" {
		t.Errorf("ref = %q", ref)
	}
	if fake.gets != 1 {
		t.Errorf("header checked %d times, want 1", fake.gets)
	}
	rows := fake.appended["2024 Activity"]
	if len(rows) != 2 {
		t.Fatalf("rows = %v", rows)
	}
	if rows[0][1] != "e1" || rows[0][9] != "19.99" || rows[0][6] != "Expense" {
		t.Errorf("row = %v", rows[0])
	}
}

func TestAppendActivitySplitsByYear(t *testing.T) {
	c, fake := newFakeClient(t)
	events := []core.ActivityEvent{
		event("old", time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC)),
		event("new", time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)),
	}
	if _, err := c.AppendActivity(context.Background(), events); err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(fake.appended["2023 Activity"]) != 1 || len(fake.appended["2024 Activity"]) != 1 {
		t.Fatalf("appended = %v", fake.appended)
	}
}

func TestAppendActivityWithoutService(t *testing.T) {
	c := &Client{spreadsheetID: "x", ready: map[string]bool{}}
	if _, err := c.AppendActivity(context.Background(), []core.ActivityEvent{event("e", time.Now())}); err == nil {
		t.Fatal("expected error without service")
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	ctx := context.Background()
	if _, err := New(ctx, Options{}); err == nil || !strings.Contains(err.Error(), "spreadsheet id") {
		t.Fatalf("err = %v", err)
	}
	_, err := New(ctx, Options{SpreadsheetID: "x"})
	if err == nil || !strings.Contains(err.Error(), "missing credentials") {
		t.Fatalf("err = %v", err)
	}
}

func TestOAuthClientValidation(t *testing.T) {
	dir := t.TempDir()
	clientFile := filepath.Join(dir, "client.json")
	tokenFile := filepath.Join(dir, "token.json")
	client := `{"installed":{"client_id":"test","client_secret":"test","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token"}}`
	if err := os.WriteFile(clientFile, []byte(client), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if _, err := oauthHTTPClient(ctx, clientFile, ""); err == nil || !strings.Contains(err.Error(), "token file") {
		t.Errorf("missing token: err = %v", err)
	}
	if _, err := oauthHTTPClient(ctx, "", tokenFile); err == nil || !strings.Contains(err.Error(), "client file") {
		t.Errorf("missing client: err = %v", err)
	}

	if err := os.WriteFile(tokenFile, []byte(`{invalid json}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := oauthHTTPClient(ctx, clientFile, tokenFile); err == nil || !strings.Contains(err.Error(), "parse oauth token") {
		t.Errorf("bad token: err = %v", err)
	}

	if err := os.WriteFile(tokenFile, []byte(`{"access_token":"test","token_type":"Bearer"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := oauthHTTPClient(ctx, clientFile, tokenFile); err != nil {
		t.Errorf("valid files: %v", err)
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Activity", 2024, "2024 Activity"},
		{"  Activity  ", 2025, "2025 Activity"},
		{"2023 Activity", 2025, "2023 Activity"},
		{"1800 Archive", 2025, "2025 1800 Archive"},
		{"", 2025, ""},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
		}
	}
}
