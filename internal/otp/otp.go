// Package otp issues and verifies the one-time password-reset codes stored on
// a user record, including the lockout applied after repeated wrong codes.
//
// The package only mutates the in-memory models.User; persisting the touched
// columns (CodeFields, AttemptFields) is the caller's job.
package otp

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/example/partsmarket/internal/models"
)

const (
	DefaultTTL          = 10 * time.Minute
	DefaultMaxAttempts  = 3
	DefaultLockDuration = 15 * time.Minute

	// Codes are drawn from [codeMin, codeMin+codeSpan); a leading zero never
	// appears, so there are 900000 possible codes rather than 10^6.
	codeMin  = 100000
	codeSpan = 900000
)

// Verification outcomes other than success.
var (
	ErrLocked       = errors.New("verification is temporarily locked")
	ErrNoCodeIssued = errors.New("no reset code has been issued")
	ErrExpired      = errors.New("reset code has expired")
	ErrMismatch     = errors.New("reset code does not match")
)

// Column sets touched by the operations below.
var (
	CodeFields    = []string{"reset_code", "reset_code_expires_at", "failed_attempts", "locked_until"}
	AttemptFields = []string{"failed_attempts", "locked_until"}
)

// Policy holds the timing and threshold settings for reset codes.
type Policy struct {
	TTL          time.Duration
	MaxAttempts  int
	LockDuration time.Duration

	Source RandomSource
	Now    func() time.Time
}

// NewPolicy returns a Policy with the default settings, crypto/rand codes and
// the wall clock.
func NewPolicy() *Policy {
	return &Policy{
		TTL:          DefaultTTL,
		MaxAttempts:  DefaultMaxAttempts,
		LockDuration: DefaultLockDuration,
		Source:       CryptoSource{},
		Now:          time.Now,
	}
}

func (p *Policy) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

func (p *Policy) source() RandomSource {
	if p.Source == nil {
		return CryptoSource{}
	}
	return p.Source
}

func (p *Policy) maxAttempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}

// Generate issues a fresh code for u, resetting the attempt counter and any
// lock. Persist CodeFields afterwards.
func (p *Policy) Generate(u *models.User) (string, error) {
	n, err := p.source().Intn(codeSpan)
	if err != nil {
		return "", fmt.Errorf("generate reset code: %w", err)
	}
	if n < 0 || n >= codeSpan {
		return "", fmt.Errorf("generate reset code: random value %d out of range", n)
	}

	code := fmt.Sprintf("%06d", codeMin+n)
	expires := p.now().Add(p.TTL)

	u.ResetCode = &code
	u.ResetCodeExpiresAt = &expires
	u.FailedAttempts = 0
	u.LockedUntil = nil

	return code, nil
}

// Verify checks candidate against the code stored on u.
//
// On ErrMismatch the attempt counter (and possibly the lock) on u has been
// updated and AttemptFields must be persisted. A successful verification
// leaves the code in place; call Clear once the password has changed.
func (p *Policy) Verify(u *models.User, candidate string) error {
	now := p.now()

	if u.LockedUntil != nil && now.Before(*u.LockedUntil) {
		return ErrLocked
	}

	if u.ResetCode == nil || u.ResetCodeExpiresAt == nil {
		return ErrNoCodeIssued
	}

	if now.After(*u.ResetCodeExpiresAt) {
		return ErrExpired
	}

	if subtle.ConstantTimeCompare([]byte(candidate), []byte(*u.ResetCode)) != 1 {
		u.FailedAttempts++
		if u.FailedAttempts >= p.maxAttempts() {
			until := now.Add(p.LockDuration)
			u.LockedUntil = &until
		}
		return ErrMismatch
	}

	return nil
}

// Clear ends the reset cycle on u. Persist CodeFields afterwards.
func Clear(u *models.User) {
	u.ResetCode = nil
	u.ResetCodeExpiresAt = nil
	u.FailedAttempts = 0
	u.LockedUntil = nil
}
