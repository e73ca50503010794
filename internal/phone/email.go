package phone

import (
	"errors"
	"net/mail"
	"strings"
)

// ErrInvalidEmail is returned by NormalizeEmail for malformed addresses.
var ErrInvalidEmail = errors.New("invalid email address")

// NormalizeEmail trims and lower-cases an address after checking its shape.
func NormalizeEmail(raw string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return "", ErrInvalidEmail
	}

	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		return "", ErrInvalidEmail
	}

	return value, nil
}

// LooksLikeEmail is used to route a login identifier to the email or the
// phone lookup.
func LooksLikeEmail(identifier string) bool {
	return strings.Contains(identifier, "@")
}
