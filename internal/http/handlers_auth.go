package http

import (
	"errors"
	"net/http"
	"strings"
	"sync/atomic"

	"expenso/internal/apiclient"
	"expenso/internal/core"
	"expenso/internal/log"
	"expenso/internal/state"
)

// authForm is the page data shared by the public account pages.
type authForm struct {
	Name    string
	Email   string
	Token   string
	Errors  core.ValidationErrors
	Error   string
	Message string
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request, sess *state.Session) {
	s.render(w, r, http.StatusOK, "landing", s.newView(r, sess, "Take control of your money", nil))
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request, sess *state.Session) {
	sess.ClearError()
	s.render(w, r, http.StatusOK, "login", s.newView(r, sess, "Sign in", authForm{}))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request, sess *state.Session) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	creds := core.Credentials{
		Email:    strings.ToLower(p.Get("email")),
		Password: p.Secret("password"),
	}
	form := authForm{Email: creds.Email}
	if errs := validateLogin(creds); len(errs) > 0 {
		form.Errors = errs
		s.render(w, r, http.StatusUnprocessableEntity, "login", s.newView(r, sess, "Sign in", form))
		return
	}

	if err := sess.Login(r.Context(), creds); err != nil {
		atomic.AddInt64(&s.metrics.failedLogins, 1)
		form.Error = sess.State().Auth.Error
		s.render(w, r, authFailureStatus(err), "login", s.newView(r, sess, "Sign in", form))
		return
	}
	if !s.signedIn(w, r, sess) {
		return
	}
	atomic.AddInt64(&s.metrics.logins, 1)
	redirect(w, r, "/dashboard")
}

func (s *Server) handleSignupPage(w http.ResponseWriter, r *http.Request, sess *state.Session) {
	sess.ClearError()
	s.render(w, r, http.StatusOK, "signup", s.newView(r, sess, "Create account", authForm{}))
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request, sess *state.Session) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	reg := core.Registration{
		Name:     p.Get("name"),
		Email:    strings.ToLower(p.Get("email")),
		Password: p.Secret("password"),
	}
	form := authForm{Name: reg.Name, Email: reg.Email}
	if errs := validateSignup(reg, p.Secret("confirmPassword")); len(errs) > 0 {
		form.Errors = errs
		s.render(w, r, http.StatusUnprocessableEntity, "signup", s.newView(r, sess, "Create account", form))
		return
	}

	if err := sess.Register(r.Context(), reg); err != nil {
		atomic.AddInt64(&s.metrics.failedLogins, 1)
		form.Error = sess.State().Auth.Error
		status := authFailureStatus(err)
		if status == http.StatusUnauthorized {
			status = http.StatusBadRequest
		}
		s.render(w, r, status, "signup", s.newView(r, sess, "Create account", form))
		return
	}
	if !s.signedIn(w, r, sess) {
		return
	}
	atomic.AddInt64(&s.metrics.logins, 1)
	redirect(w, r, "/dashboard")
}

// signedIn rotates the session id after authentication. If that fails the
// session is logged out again rather than kept under the old id.
func (s *Server) signedIn(w http.ResponseWriter, r *http.Request, sess *state.Session) bool {
	if _, err := s.rotateSession(w, r, sess); err != nil {
		sess.Logout(r.Context())
		InternalServerError("Your session could not be started. Please try again.").Write(w)
		return false
	}
	return true
}

// authFailureStatus separates rejected credentials from an unavailable backend.
func authFailureStatus(err error) int {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
		return http.StatusUnauthorized
	}
	return http.StatusBadGateway
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, sess *state.Session) {
	sess.Logout(r.Context())
	requestLogger(r, log.ComponentAuth).InfoContext(r.Context(), "User logged out")
	_, _ = s.rotateSession(w, r, sess)
	redirect(w, r, "/login?notice=logged-out")
}

func (s *Server) handleForgotPage(w http.ResponseWriter, r *http.Request, sess *state.Session) {
	s.render(w, r, http.StatusOK, "forgot", s.newView(r, sess, "Forgot password", authForm{}))
}

// handleForgot always shows the backend's neutral message on success so the
// page does not reveal which addresses have accounts.
func (s *Server) handleForgot(w http.ResponseWriter, r *http.Request, sess *state.Session) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	form := authForm{Email: strings.ToLower(p.Get("email")), Errors: core.ValidationErrors{}}
	validateEmail(form.Errors, form.Email)
	if len(form.Errors) > 0 {
		s.render(w, r, http.StatusUnprocessableEntity, "forgot", s.newView(r, sess, "Forgot password", form))
		return
	}

	msg, err := sess.ForgotPassword(r.Context(), form.Email)
	if err != nil {
		requestLogger(r, log.ComponentAuth).WarnContext(r.Context(), "Forgot password request failed", log.FieldError, err)
		form.Error = apiclient.UserMessage(err)
		s.render(w, r, http.StatusBadGateway, "forgot", s.newView(r, sess, "Forgot password", form))
		return
	}
	if msg == "" {
		msg = "If an account exists for that address, a reset link is on its way."
	}
	form.Message = msg
	s.render(w, r, http.StatusOK, "forgot", s.newView(r, sess, "Forgot password", form))
}

func (s *Server) handleResetPage(w http.ResponseWriter, r *http.Request, sess *state.Session) {
	form := authForm{Token: r.URL.Query().Get("token")}
	if form.Token == "" {
		form.Error = "This reset link is invalid. Request a new one."
	}
	s.render(w, r, http.StatusOK, "reset", s.newView(r, sess, "Reset password", form))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request, sess *state.Session) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	form := authForm{Token: p.Get("token")}
	password := p.Secret("password")
	if errs := validateReset(form.Token, password, p.Secret("confirmPassword")); len(errs) > 0 {
		form.Errors = errs
		s.render(w, r, http.StatusUnprocessableEntity, "reset", s.newView(r, sess, "Reset password", form))
		return
	}

	if _, err := sess.ResetPassword(r.Context(), form.Token, password); err != nil {
		requestLogger(r, log.ComponentAuth).WarnContext(r.Context(), "Password reset failed", log.FieldError, err)
		form.Error = apiclient.UserMessage(err)
		s.render(w, r, http.StatusBadRequest, "reset", s.newView(r, sess, "Reset password", form))
		return
	}
	redirect(w, r, "/login?notice=password-reset")
}
