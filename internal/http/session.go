package http

import (
	"context"
	"net/http"
	"net/url"

	"expenso/internal/log"
	"expenso/internal/state"
)

type sessionKey struct{}

// sessionFrom returns the session attached by withSession.
func sessionFrom(ctx context.Context) *state.Session {
	s, _ := ctx.Value(sessionKey{}).(*state.Session)
	return s
}

// withSession resolves the session cookie, issuing a fresh id when it is
// missing or malformed, and attaches the hydrated session to the request.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(s.cookie.name); err == nil && state.ValidID(c.Value) {
			id = c.Value
		}
		fresh := id == ""
		if fresh {
			id = s.sessions.NewID()
			http.SetCookie(w, s.cookie.issue(id))
		}

		sess, err := s.sessions.Get(r.Context(), id)
		if err != nil {
			requestLogger(r, log.ComponentSession).ErrorContext(r.Context(), "Failed to load session",
				log.FieldSessionID, id, log.FieldError, err)
			InternalServerError("Your session could not be loaded. Please try again.").Write(w)
			return
		}
		// Activity extends the cookie as well as the stored session.
		if s.sessions.Touch(r.Context(), sess) && !fresh {
			http.SetCookie(w, s.cookie.issue(id))
		}

		ctx := context.WithValue(r.Context(), sessionKey{}, sess)
		ctx = log.WithLogger(ctx, log.FromContext(ctx).With(log.FieldSessionID, id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rotateSession moves sess to a new id and sends the new cookie. It is
// called whenever the session changes hands: after login, signup and logout.
func (s *Server) rotateSession(w http.ResponseWriter, r *http.Request, sess *state.Session) (*state.Session, error) {
	next, err := s.sessions.Rotate(r.Context(), sess.ID)
	if err != nil {
		requestLogger(r, log.ComponentSession).ErrorContext(r.Context(), "Failed to rotate session",
			log.FieldSessionID, sess.ID, log.FieldError, err)
		return nil, err
	}
	http.SetCookie(w, s.cookie.issue(next.ID))
	return next, nil
}

type cookieConfig struct {
	name   string
	secure bool
	maxAge int
}

func (c cookieConfig) issue(id string) *http.Cookie {
	return &http.Cookie{
		Name:     c.name,
		Value:    id,
		Path:     "/",
		MaxAge:   c.maxAge,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// sessionHandler is a handler that needs the request's session.
type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *state.Session)

// protected sends unauthenticated visitors to the login page. Navigating to
// another page closes the mobile sidebar.
func (s *Server) protected(h sessionHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r.Context())
		if !sess.State().Auth.IsAuthenticated {
			redirect(w, r, "/login")
			return
		}
		if r.Method == http.MethodGet && !isHTMX(r) && navigatedAway(r) && sess.State().UI.SidebarOpen {
			sess.CloseSidebar()
		}
		h(w, r, sess)
	})
}

// navigatedAway reports whether the request comes from a different page than
// the one it asks for. A missing referer counts as navigation.
func navigatedAway(r *http.Request) bool {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path == "" {
		return true
	}
	return ref.Path != r.URL.Path
}

// publicOnly sends authenticated users to the dashboard.
func (s *Server) publicOnly(h sessionHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r.Context())
		if sess.State().Auth.IsAuthenticated {
			redirect(w, r, "/dashboard")
			return
		}
		h(w, r, sess)
	})
}

// public serves everyone.
func (s *Server) public(h sessionHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h(w, r, sessionFrom(r.Context()))
	})
}

// handleUnknown mirrors the catch-all route: anything unmatched goes home.
func (s *Server) handleUnknown(w http.ResponseWriter, r *http.Request) {
	redirect(w, r, "/")
}
