package http

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"expenso/internal/core"
	"expenso/internal/log"
	"expenso/internal/middleware/ratelimit"
	"expenso/internal/middleware/security"
	"expenso/internal/middleware/trace"
	"expenso/internal/state"
	appweb "expenso/web"
)

// Sessions resolves the per-visitor state container. *state.Manager satisfies it.
type Sessions interface {
	Get(ctx context.Context, id string) (*state.Session, error)
	Rotate(ctx context.Context, oldID string) (*state.Session, error)
	Touch(ctx context.Context, sess *state.Session) bool
	NewID() string
	Live() int
}

// ChartRenderer draws the dashboard and report charts as PNG.
type ChartRenderer interface {
	Trend(points []core.MonthlyPoint, dark bool) ([]byte, error)
	Categories(items []core.CategoryAmount, dark bool) ([]byte, error)
}

// HealthChecker reports on the process dependencies for /readyz.
type HealthChecker interface {
	// Ready fails when the session store is unusable.
	Ready(ctx context.Context) error
	// BrokerStatus is informational: "up", "down" or "disabled".
	BrokerStatus(ctx context.Context) string
}

type Options struct {
	Addr           string
	Sessions       Sessions
	Charts         ChartRenderer
	Health         HealthChecker
	Logger         *log.Logger
	CookieName     string
	CookieSecure   bool
	SessionTTL     time.Duration
	RateLimitRPM   int
	TrustedProxies []string
}

// Server is the web front end: it renders pages from session state and
// forwards every data operation to the backend through the session.
type Server struct {
	http.Server

	templates *templates
	sessions  Sessions
	charts    ChartRenderer
	health    HealthChecker
	logger    *log.Logger
	cookie    cookieConfig

	detector    *security.Detector
	rateLimiter *ratelimit.Limiter
	tracer      *trace.Middleware

	metrics      appMetrics
	started      time.Time
	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and wires routes and middleware.
func NewServer(opts Options) (*Server, error) {
	if opts.Sessions == nil {
		return nil, errors.New("sessions are required")
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.CookieName == "" {
		opts.CookieName = "expenso_session"
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * 24 * time.Hour
	}

	t, err := parseTemplates(appweb.TemplatesFS)
	if err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}
	detector, err := security.NewDetector(opts.TrustedProxies...)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	rlConfig := ratelimit.DefaultConfig()
	if opts.RateLimitRPM > 0 {
		rlConfig.RequestsPerMinute = opts.RateLimitRPM
	}
	rlConfig.Exempt = ratelimit.ReadOnlyExempt

	s := &Server{
		templates: t,
		sessions:  opts.Sessions,
		charts:    opts.Charts,
		health:    opts.Health,
		logger:    opts.Logger.WithComponent(log.ComponentHTTP),
		cookie: cookieConfig{
			name:   opts.CookieName,
			secure: opts.CookieSecure,
			maxAge: int(opts.SessionTTL / time.Second),
		},
		detector:    detector,
		rateLimiter: ratelimit.NewLimiter(rlConfig),
		tracer:      trace.NewMiddleware(opts.Logger, detector.ExtractClientIP),
		started:     time.Now(),
	}

	mux := http.NewServeMux()
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.Handle("/", s.withSession(s.routes()))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.rateLimiter.Middleware(detector.ExtractClientIP, s.handleRateLimited)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.tracer.Middleware(headers.Middleware(detector.Middleware(limit(mux)))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// routes is the session-aware part of the app.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /{$}", s.publicOnly(s.handleLanding))
	mux.Handle("GET /login", s.publicOnly(s.handleLoginPage))
	mux.Handle("POST /login", s.publicOnly(s.handleLogin))
	mux.Handle("GET /signup", s.publicOnly(s.handleSignupPage))
	mux.Handle("POST /signup", s.publicOnly(s.handleSignup))
	mux.Handle("GET /forgot-password", s.public(s.handleForgotPage))
	mux.Handle("POST /forgot-password", s.public(s.handleForgot))
	mux.Handle("GET /reset-password", s.public(s.handleResetPage))
	mux.Handle("POST /reset-password", s.public(s.handleReset))
	mux.Handle("POST /logout", s.public(s.handleLogout))

	mux.Handle("POST /ui/theme", s.public(s.handleToggleTheme))
	mux.Handle("POST /ui/sidebar", s.public(s.handleToggleSidebar))

	mux.Handle("GET /dashboard", s.protected(s.handleDashboard))
	mux.Handle("GET /reports", s.protected(s.handleReports))
	mux.Handle("GET /charts/trend.png", s.protected(s.handleTrendChart))
	mux.Handle("GET /charts/categories.png", s.protected(s.handleCategoryChart))

	mux.Handle("GET /transactions", s.protected(s.handleTransactions))
	mux.Handle("POST /transactions", s.protected(s.handleCreateTransaction))
	mux.Handle("GET /transactions/new", s.protected(s.handleNewTransaction))
	mux.Handle("GET /transactions/categories", s.protected(s.handleCategoryOptions))
	mux.Handle("GET /transactions/export", s.protected(s.handleExport))
	mux.Handle("GET /transactions/{id}/edit", s.protected(s.handleEditTransaction))
	mux.Handle("POST /transactions/{id}", s.protected(s.handleUpdateTransaction))
	mux.Handle("PUT /transactions/{id}", s.protected(s.handleUpdateTransaction))
	mux.Handle("DELETE /transactions/{id}", s.protected(s.handleDeleteTransaction))
	mux.Handle("POST /transactions/{id}/delete", s.protected(s.handleDeleteTransaction))

	mux.Handle("GET /profile", s.protected(s.handleProfile))
	mux.Handle("POST /profile", s.protected(s.handleUpdateProfile))
	mux.Handle("POST /profile/password", s.protected(s.handleChangePassword))

	// Older paths still linked from bookmarks.
	mux.HandleFunc("GET /add-transaction", func(w http.ResponseWriter, r *http.Request) {
		redirect(w, r, "/transactions/new")
	})
	mux.HandleFunc("GET /edit-transaction/{id}", func(w http.ResponseWriter, r *http.Request) {
		redirect(w, r, "/transactions/"+r.PathValue("id")+"/edit")
	})

	mux.HandleFunc("/", s.handleUnknown)
	return mux
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	requestLogger(r, log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Too many requests. Please wait a moment and try again.").Write(w)
}

// Shutdown stops background sweeps and drains the HTTP server once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
