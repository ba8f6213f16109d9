package common

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	emailRegex  = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)
	handleRegex = regexp.MustCompile(`^[a-zA-Z0-9_.]+$`)
)

const (
	MaxCaptionLength = 2200
	MaxCommentLength = 1000
	MaxMessageLength = 4000
	MaxBioLength     = 300
)

func ValidateHandle(handle string) error {
	handle = strings.TrimSpace(handle)
	if len(handle) < 3 || len(handle) > 30 {
		return Validationf("handle must be between 3 and 30 characters")
	}
	if !handleRegex.MatchString(handle) {
		return Validationf("handle can only contain letters, numbers, dots and underscores")
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < 6 {
		return Validationf("password must be at least 6 characters long")
	}
	if len(password) > 72 {
		return Validationf("password is too long")
	}
	return nil
}

// ValidateEmail accepts an empty address; email is optional.
func ValidateEmail(email string) error {
	if email == "" {
		return nil
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailRegex.MatchString(email) {
		return Validationf("invalid email format")
	}
	return nil
}

// ValidateText rejects blank input and input longer than max runes.
func ValidateText(field, text string, max int) error {
	if strings.TrimSpace(text) == "" {
		return Validationf("%s cannot be empty", field)
	}
	if utf8.RuneCountInString(text) > max {
		return Validationf("%s exceeds %d characters", field, max)
	}
	return nil
}
