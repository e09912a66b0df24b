package http

import (
	"net/http"
	"strings"

	"expenso/internal/apiclient"
	"expenso/internal/core"
	"expenso/internal/log"
	"expenso/internal/state"
)

type profilePage struct {
	Profile        apiclient.ProfileUpdate
	ProfileErrors  core.ValidationErrors
	PasswordErrors core.ValidationErrors
}

func profileFrom(st state.State) apiclient.ProfileUpdate {
	return apiclient.ProfileUpdate{Name: st.Auth.User.Name, Email: st.Auth.User.Email}
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, sess *state.Session) {
	page := profilePage{Profile: profileFrom(sess.State())}
	s.render(w, r, http.StatusOK, "profile", s.newView(r, sess, "Profile", page))
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request, sess *state.Session) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	upd := apiclient.ProfileUpdate{Name: p.Get("name"), Email: strings.ToLower(p.Get("email"))}
	page := profilePage{Profile: upd}
	if errs := validateProfile(upd); len(errs) > 0 {
		page.ProfileErrors = errs
		s.show(w, r, http.StatusUnprocessableEntity, "profile", "profile_form", s.newView(r, sess, "Profile", page), nil)
		return
	}

	if err := sess.UpdateProfile(r.Context(), upd); err != nil {
		if authLost(w, r, err) {
			return
		}
		requestLogger(r, log.ComponentAuth).WarnContext(r.Context(), "Profile update failed", log.FieldError, err)
		note := &notification{Type: NotificationError, Message: "Failed to update profile: " + apiclient.UserMessage(err)}
		s.show(w, r, http.StatusBadGateway, "profile", "profile_form", s.newView(r, sess, "Profile", page), note)
		return
	}
	page.Profile = profileFrom(sess.State())
	note := &notification{Type: NotificationSuccess, Message: "Profile updated successfully!"}
	s.show(w, r, http.StatusOK, "profile", "profile_form", s.newView(r, sess, "Profile", page), note)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request, sess *state.Session) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	change := apiclient.PasswordChange{
		CurrentPassword: p.Secret("currentPassword"),
		NewPassword:     p.Secret("newPassword"),
	}
	page := profilePage{Profile: profileFrom(sess.State())}
	if errs := validatePasswordChange(change, p.Secret("confirmPassword")); len(errs) > 0 {
		page.PasswordErrors = errs
		s.show(w, r, http.StatusUnprocessableEntity, "profile", "password_form", s.newView(r, sess, "Profile", page), nil)
		return
	}

	msg, err := sess.ChangePassword(r.Context(), change)
	if err != nil {
		if authLost(w, r, err) {
			return
		}
		requestLogger(r, log.ComponentAuth).WarnContext(r.Context(), "Password change failed", log.FieldError, err)
		note := &notification{Type: NotificationError, Message: "Failed to change password: " + apiclient.UserMessage(err)}
		s.show(w, r, http.StatusBadRequest, "profile", "password_form", s.newView(r, sess, "Profile", page), note)
		return
	}
	if msg == "" {
		msg = "Password changed successfully!"
	}
	s.show(w, r, http.StatusOK, "profile", "password_form", s.newView(r, sess, "Profile", page),
		&notification{Type: NotificationSuccess, Message: msg})
}

// handleToggleTheme flips and persists the theme. htmx clients refresh so
// the root class and charts pick up the new palette.
func (s *Server) handleToggleTheme(w http.ResponseWriter, r *http.Request, sess *state.Session) {
	theme := sess.ToggleTheme(r.Context())
	if isHTMX(r) {
		NewHTMXResponse().TriggerThemeChanged(string(theme)).Refresh().Write(w)
		return
	}
	_ = r.ParseForm()
	http.Redirect(w, r, safeReturnPath(r.PostFormValue("return"), "/"), http.StatusSeeOther)
}

func (s *Server) handleToggleSidebar(w http.ResponseWriter, r *http.Request, sess *state.Session) {
	sess.ToggleSidebar()
	_ = r.ParseForm()
	back := safeReturnPath(r.PostFormValue("return"), "/dashboard")
	if isHTMX(r) {
		v := s.newView(r, sess, "", nil)
		v.Path = back
		s.renderPartial(w, r, nil, "sidebar", v)
		return
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}
