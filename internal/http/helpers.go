package http

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"expenso/internal/core"
	"expenso/internal/log"
)

// timeNow is swapped in tests that need a fixed clock.
var timeNow = time.Now

// formatMoney renders cents as "$1,234.50", with a leading minus for negatives.
func formatMoney(m core.Money) string {
	neg := m.Cents < 0
	cents := m.Cents
	if neg {
		cents = -cents
	}
	whole := strconv.FormatInt(cents/100, 10)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	s := "$" + b.String() + "." + leftPad2(cents%100)
	if neg {
		return "-" + s
	}
	return s
}

func leftPad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}

// formatPercent renders one decimal place, e.g. "12.5%".
func formatPercent(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(1) + "%"
}

// savingsRate is balance as a share of income, 0 without income.
func savingsRate(income, balance core.Money) float64 {
	if income.Cents <= 0 {
		return 0
	}
	return float64(balance.Cents) / float64(income.Cents) * 100
}

func formatDate(d core.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Format("Jan 2, 2006")
}

// sanitizeInput removes control characters except tab, newline and carriage return.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// redirect navigates the browser, using HX-Redirect for HTMX requests so the
// whole page changes instead of the swap target.
func redirect(w http.ResponseWriter, r *http.Request, target string) {
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// safeReturnPath keeps only same-site relative paths. Browsers drop control
// characters from a Location, so "/\t/host" would become "//host".
func safeReturnPath(raw, fallback string) string {
	if raw == "" || strings.ContainsFunc(raw, unicode.IsControl) ||
		!strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.Contains(raw, "\\") {
		return fallback
	}
	if u, err := url.Parse(raw); err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return raw
}

// requestLogger is the request-scoped logger retagged for component.
func requestLogger(r *http.Request, component string) *log.Logger {
	return log.FromContext(r.Context()).WithComponent(component)
}
