package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"expenso/internal/apiclient"
	"expenso/internal/log"
	"expenso/internal/state"
)

// appMetrics counts confirmed backend mutations and auth outcomes.
type appMetrics struct {
	created      int64
	updated      int64
	deleted      int64
	logins       int64
	failedLogins int64
	exports      int64
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports not ready when templates or the session store are
// unusable. The broker is informational only: publishing is best effort.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{}

	if s.templates == nil || len(s.templates.pages) == 0 {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.health != nil {
		if err := s.health.Ready(ctx); err != nil {
			checks["session_store"] = fmt.Sprintf("failed: %v", err)
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["session_store"] = "ok"
		}
		checks["broker"] = s.health.BrokerStatus(ctx)
	}

	checks["sessions"] = map[string]any{"live": s.sessions.Live()}
	checks["rate_limiter"] = map[string]any{"active_clients": s.rateLimiter.ActiveClients()}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	tm := s.tracer.GetMetrics()
	rl := s.rateLimiter.GetMetrics()
	sec := s.detector.GetMetrics()

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", tm.TotalRequests)
	metric("http_requests_in_flight", "gauge", "Requests currently being served", tm.InFlight)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", tm.ServerErrors)
	metric("http_response_time_avg_microseconds", "gauge", "Average response time", tm.AverageResponseTime)

	fmt.Fprintf(w, "# HELP transactions_total Confirmed transaction mutations\n# TYPE transactions_total counter\n")
	fmt.Fprintf(w, "transactions_total{op=\"create\"} %d\n", atomic.LoadInt64(&s.metrics.created))
	fmt.Fprintf(w, "transactions_total{op=\"update\"} %d\n", atomic.LoadInt64(&s.metrics.updated))
	fmt.Fprintf(w, "transactions_total{op=\"delete\"} %d\n\n", atomic.LoadInt64(&s.metrics.deleted))

	metric("logins_total", "counter", "Successful logins and signups", atomic.LoadInt64(&s.metrics.logins))
	metric("login_failures_total", "counter", "Rejected logins and signups", atomic.LoadInt64(&s.metrics.failedLogins))
	metric("exports_total", "counter", "CSV exports streamed", atomic.LoadInt64(&s.metrics.exports))
	metric("live_sessions", "gauge", "Sessions held in memory", s.sessions.Live())
	metric("rate_limit_hits_total", "counter", "Total rate limit hits", rl.TotalHits)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rl.ClientCount)
	metric("suspicious_requests_total", "counter", "Total suspicious requests detected", sec.SuspiciousRequests)
	metric("invalid_ip_attempts_total", "counter", "Forwarded headers with an unparseable address", sec.InvalidIPAttempts)
	metric("uptime_seconds", "gauge", "Application uptime in seconds", int64(time.Since(s.started).Seconds()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// authLost answers with a redirect to the login page when err means the
// session no longer holds a usable token. It reports whether it did.
func authLost(w http.ResponseWriter, r *http.Request, err error) bool {
	if errors.Is(err, state.ErrNotAuthenticated) || errors.Is(err, apiclient.ErrUnauthorized) {
		redirect(w, r, "/login")
		return true
	}
	return false
}

// opFailed logs a failed backend operation and shows the user a notification.
func (s *Server) opFailed(w http.ResponseWriter, r *http.Request, op, fallback string, err error) {
	if authLost(w, r, err) {
		return
	}
	requestLogger(r, log.ComponentTransactions).WarnContext(r.Context(), "Backend operation failed",
		log.FieldOperation, op, log.FieldError, err)
	msg := apiclient.UserMessage(err)
	if fallback != "" {
		msg = fallback + ": " + msg
	}
	BadGatewayError(msg).Write(w)
}
