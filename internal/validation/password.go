// Package validation provides input validation for user-supplied fields.
package validation

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"unicode"
)

const (
	minPasswordLength = 12
	maxPasswordLength = 128
	maxEmailLength    = 254
)

// usernameRe requires 3-30 characters, alphanumeric with inner dots,
// dashes and underscores, starting and ending with an alphanumeric.
var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{1,28}[a-zA-Z0-9]$`)

// ValidatePassword enforces the password policy: length bounds plus at least
// one upper, one lower, one digit and one special character.
func ValidatePassword(password string) error {
	length := len([]rune(password))
	if length < minPasswordLength {
		return errors.New("password must be at least 12 characters long")
	}
	if length > maxPasswordLength {
		return errors.New("password must be at most 128 characters long")
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}

	if !hasUpper {
		return errors.New("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return errors.New("password must contain at least one lowercase letter")
	}
	if !hasDigit {
		return errors.New("password must contain at least one digit")
	}
	if !hasSpecial {
		return errors.New("password must contain at least one special character")
	}
	return nil
}

// ValidateUsername checks the username format.
func ValidateUsername(username string) error {
	if !usernameRe.MatchString(username) {
		return errors.New("username must be 3-30 characters, alphanumeric with dots, dashes or underscores, and must start and end with a letter or digit")
	}
	return nil
}

// ValidateEmail checks the email address format and length.
func ValidateEmail(email string) error {
	if len(email) > maxEmailLength {
		return errors.New("email must be at most 254 characters long")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return errors.New("invalid email address")
	}
	if strings.Contains(email, " ") {
		return errors.New("invalid email address")
	}
	// mail.ParseAddress tolerates a trailing dot in the domain.
	if strings.HasSuffix(email, ".") {
		return errors.New("invalid email address")
	}
	return nil
}
