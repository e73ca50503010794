// Package phone canonicalizes Sri Lankan phone numbers and e-mail addresses
// used as login identifiers.
package phone

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// CountryCode is the calling code every canonical number starts with.
const CountryCode = "94"

// ErrInvalidFormat is returned for input that is not a Sri Lankan mobile or
// landline number.
var ErrInvalidFormat = errors.New("invalid phone number format")

var (
	separators = regexp.MustCompile(`[\s\-()]`)

	mobilePattern   = regexp.MustCompile(`^(\+?94|0)?7[0-8]\d{7}$`)
	landlinePattern = regexp.MustCompile(`^(\+?94|0)?(11|21|23|24|25|26|27|31|32|33|34|35|36|37|38|41|45|47|51|52|54|55|57|63|65|66|67|81|91)\d{7}$`)

	canonicalPattern = regexp.MustCompile(`^\+94\d{9}$`)
)

type rule struct {
	matches   func(string) bool
	transform func(string) string
}

// Evaluated in order; the last rule accepts anything left.
var rules = []rule{
	{
		matches:   func(s string) bool { return strings.HasPrefix(s, "+"+CountryCode) },
		transform: func(s string) string { return s },
	},
	{
		matches:   func(s string) bool { return strings.HasPrefix(s, CountryCode) },
		transform: func(s string) string { return "+" + s },
	},
	{
		matches:   func(s string) bool { return strings.HasPrefix(s, "0") },
		transform: func(s string) string { return "+" + CountryCode + s[1:] },
	},
	{
		matches:   func(string) bool { return true },
		transform: func(s string) string { return "+" + CountryCode + s },
	},
}

// Normalize returns raw in canonical +94XXXXXXXXX form.
//
// Accepted shapes are +94XXXXXXXXX, 94XXXXXXXXX, 0XXXXXXXXX and XXXXXXXXX,
// with spaces, dashes and parentheses ignored.
func Normalize(raw string) (string, error) {
	cleaned := separators.ReplaceAllString(strings.TrimSpace(raw), "")
	if cleaned == "" {
		return "", fmt.Errorf("%w: phone number is required", ErrInvalidFormat)
	}

	if !mobilePattern.MatchString(cleaned) && !landlinePattern.MatchString(cleaned) {
		return "", fmt.Errorf("%w: %q is not a mobile (07X-XXXXXXX) or landline (0XX-XXXXXXX) number", ErrInvalidFormat, raw)
	}

	var normalized string
	for _, r := range rules {
		if r.matches(cleaned) {
			normalized = r.transform(cleaned)
			break
		}
	}

	if !canonicalPattern.MatchString(normalized) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, raw)
	}

	return normalized, nil
}
