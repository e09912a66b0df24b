package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"expenso/internal/apiclient"
	"expenso/internal/core"
)

func TestRequestBodyParser_JSON(t *testing.T) {
	body := `{"amount": 25.5, "type": "EXPENSE", "description": "  Coffee  "}`
	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !parser.IsJSON() {
		t.Error("Expected IsJSON() to be true")
	}
	if got := parser.Get("amount"); got != "25.5" {
		t.Errorf("Get('amount') = %q, want '25.5'", got)
	}
	if got := parser.Get("description"); got != "Coffee" {
		t.Errorf("Get('description') = %q, want 'Coffee'", got)
	}
	if got := parser.Get("missing"); got != "" {
		t.Errorf("Get('missing') = %q", got)
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	body := "amount=25.50&type=EXPENSE&category=food&description=Coffee+beans&date=2024-01-15&password=+secret+"
	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parser.IsJSON() {
		t.Error("Expected IsJSON() to be false for form data")
	}

	in := TransactionInputFrom(parser)
	want := core.TransactionInput{Amount: "25.50", Type: "EXPENSE", Category: "food", Description: "Coffee beans", Date: "2024-01-15"}
	if in != want {
		t.Errorf("input = %+v, want %+v", in, want)
	}
	if got := parser.Secret("password"); got != " secret " {
		t.Errorf("Secret = %q", got)
	}
}

func TestRequestBodyParser_StripsControlCharacters(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("description=Lunch%00%07+out"))
	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := parser.Get("description"); got != "Lunch out" {
		t.Errorf("Get = %q", got)
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(""))

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if val := parser.Get("nonexistent"); val != "" {
		t.Errorf("Get('nonexistent') = %q, want empty string", val)
	}
}

func TestRequestBodyParser_Rejects(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"broken json", `{"amount":`, http.StatusBadRequest},
		{"too large", "notes=" + strings.Repeat("a", maxBodyBytes), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			if _, ok := parseBody(rr, req); ok {
				t.Fatal("expected failure")
			}
			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
		})
	}
}

func TestValidateLogin(t *testing.T) {
	tests := []struct {
		name   string
		creds  core.Credentials
		fields []string
	}{
		{"valid", core.Credentials{Email: "ana@example.com", Password: "secret1"}, nil},
		{"missing both", core.Credentials{}, []string{"email", "password"}},
		{"bad email short password", core.Credentials{Email: "ana@", Password: "abc"}, []string{"email", "password"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := validateLogin(tt.creds)
			if len(errs) != len(tt.fields) {
				t.Fatalf("errors = %v, want fields %v", errs, tt.fields)
			}
			for _, f := range tt.fields {
				if !errs.Has(f) {
					t.Errorf("missing error for %s", f)
				}
			}
		})
	}
}

func TestValidatePasswordChange(t *testing.T) {
	tests := []struct {
		name    string
		newPass string
		confirm string
		field   string
	}{
		{"strong", "Passw0rd!", "Passw0rd!", ""},
		{"too short", "Pa1", "Pa1", "newPassword"},
		{"no digit", "Password", "Password", "newPassword"},
		{"unsupported symbol", "Passw0rd#", "Passw0rd#", "newPassword"},
		{"mismatch", "Passw0rd", "Passw0rd2", "confirmPassword"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := validatePasswordChange(apiclient.PasswordChange{CurrentPassword: "old", NewPassword: tt.newPass}, tt.confirm)
			if tt.field == "" {
				if len(errs) != 0 {
					t.Fatalf("unexpected errors %v", errs)
				}
				return
			}
			if !errs.Has(tt.field) {
				t.Fatalf("errors = %v, want %s", errs, tt.field)
			}
		})
	}
}

func TestValidateSignup(t *testing.T) {
	errs := validateSignup(core.Registration{Name: "A", Email: "a@b.co", Password: "secret1"}, "secret2")
	if !errs.Has("name") || !errs.Has("confirmPassword") || errs.Has("email") || errs.Has("password") {
		t.Fatalf("errors = %v", errs)
	}
}
