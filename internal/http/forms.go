package http

import (
	"regexp"
	"strings"
	"unicode"

	"expenso/internal/apiclient"
	"expenso/internal/core"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const (
	minLoginPassword = 6
	minNewPassword   = 8
	minNameLen       = 2
)

func validateEmail(errs core.ValidationErrors, email string) {
	switch {
	case email == "":
		errs["email"] = "Email is required"
	case !emailPattern.MatchString(email):
		errs["email"] = "Please enter a valid email address"
	}
}

func validateName(errs core.ValidationErrors, name string) {
	switch {
	case name == "":
		errs["name"] = "Name is required"
	case len([]rune(name)) < minNameLen:
		errs["name"] = "Name must be at least 2 characters"
	}
}

func validateLogin(c core.Credentials) core.ValidationErrors {
	errs := core.ValidationErrors{}
	validateEmail(errs, c.Email)
	switch {
	case c.Password == "":
		errs["password"] = "Password is required"
	case len(c.Password) < minLoginPassword:
		errs["password"] = "Password must be at least 6 characters"
	}
	return errs
}

func validateSignup(reg core.Registration, confirm string) core.ValidationErrors {
	errs := core.ValidationErrors{}
	validateName(errs, reg.Name)
	validateEmail(errs, reg.Email)
	switch {
	case reg.Password == "":
		errs["password"] = "Password is required"
	case len(reg.Password) < minLoginPassword:
		errs["password"] = "Password must be at least 6 characters"
	}
	if confirm != reg.Password {
		errs["confirmPassword"] = "Passwords do not match"
	}
	return errs
}

func validateProfile(p apiclient.ProfileUpdate) core.ValidationErrors {
	errs := core.ValidationErrors{}
	validateName(errs, p.Name)
	validateEmail(errs, p.Email)
	return errs
}

// strongPassword requires a lower case letter, an upper case letter and a
// digit, drawn from letters, digits and @$!%*?&.
func strongPassword(s string) bool {
	var lower, upper, digit bool
	for _, r := range s {
		switch {
		case r > unicode.MaxASCII:
			return false
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case !strings.ContainsRune("@$!%*?&", r):
			return false
		}
	}
	return lower && upper && digit
}

func validatePasswordChange(p apiclient.PasswordChange, confirm string) core.ValidationErrors {
	errs := core.ValidationErrors{}
	if p.CurrentPassword == "" {
		errs["currentPassword"] = "Current password is required"
	}
	switch {
	case p.NewPassword == "":
		errs["newPassword"] = "New password is required"
	case len(p.NewPassword) < minNewPassword:
		errs["newPassword"] = "Password must be at least 8 characters"
	case !strongPassword(p.NewPassword):
		errs["newPassword"] = "Password must contain at least one uppercase letter, one lowercase letter, and one number"
	}
	if confirm != p.NewPassword {
		errs["confirmPassword"] = "Passwords do not match"
	}
	return errs
}

func validateReset(token, password, confirm string) core.ValidationErrors {
	errs := core.ValidationErrors{}
	if token == "" {
		errs["token"] = "The reset link is missing its token"
	}
	switch {
	case password == "":
		errs["password"] = "Password is required"
	case len(password) < minNewPassword:
		errs["password"] = "Password must be at least 8 characters"
	}
	if confirm != password {
		errs["confirmPassword"] = "Passwords do not match"
	}
	return errs
}
