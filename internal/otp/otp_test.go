package otp

import (
	"errors"
	"testing"
	"time"

	"github.com/example/partsmarket/internal/models"
)

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestPolicy(values ...int) (*Policy, *clock) {
	c := &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	p := &Policy{
		TTL:          DefaultTTL,
		MaxAttempts:  DefaultMaxAttempts,
		LockDuration: DefaultLockDuration,
		Source:       &SequenceSource{Values: values},
		Now:          c.now,
	}
	return p, c
}

func TestGenerateSetsCodeAndExpiry(t *testing.T) {
	p, c := newTestPolicy(382913)
	u := &models.User{}

	code, err := p.Generate(u)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if code != "482913" {
		t.Fatalf("code = %q, want 482913", code)
	}
	if u.ResetCode == nil || *u.ResetCode != code {
		t.Fatalf("stored code = %v", u.ResetCode)
	}
	if u.ResetCodeExpiresAt == nil || !u.ResetCodeExpiresAt.Equal(c.t.Add(10*time.Minute)) {
		t.Fatalf("expiry = %v", u.ResetCodeExpiresAt)
	}
}

func TestGenerateCodeRange(t *testing.T) {
	p, _ := newTestPolicy(0, codeSpan-1)
	u := &models.User{}

	low, _ := p.Generate(u)
	high, _ := p.Generate(u)
	if low != "100000" || high != "999999" {
		t.Fatalf("range = [%s, %s], want [100000, 999999]", low, high)
	}

	p.Source = CryptoSource{}
	for i := 0; i < 200; i++ {
		code, err := p.Generate(u)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if len(code) != 6 || code[0] == '0' {
			t.Fatalf("code %q outside 100000-999999", code)
		}
	}
}

func TestGenerateResetsAttemptsAndLock(t *testing.T) {
	p, c := newTestPolicy(1, 2)
	locked := c.t.Add(time.Hour)
	u := &models.User{FailedAttempts: 3, LockedUntil: &locked}

	for i := 0; i < 2; i++ {
		if _, err := p.Generate(u); err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if u.FailedAttempts != 0 || u.LockedUntil != nil {
			t.Fatalf("after generate %d: attempts=%d lockedUntil=%v", i, u.FailedAttempts, u.LockedUntil)
		}
		u.FailedAttempts = 2
	}
}

func TestGenerateSourceError(t *testing.T) {
	p, _ := newTestPolicy()
	u := &models.User{}

	if _, err := p.Generate(u); err == nil {
		t.Fatal("expected error from empty sequence")
	}
	if u.ResetCode != nil || u.ResetCodeExpiresAt != nil {
		t.Fatal("code fields must stay untouched on failure")
	}
}

func TestVerifyValidDoesNotClear(t *testing.T) {
	p, _ := newTestPolicy(382913)
	u := &models.User{}
	code, _ := p.Generate(u)

	if err := p.Verify(u, code); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if u.ResetCode == nil || u.ResetCodeExpiresAt == nil {
		t.Fatal("valid verification must not consume the code")
	}
	if err := p.Verify(u, code); err != nil {
		t.Fatalf("second Verify: %v", err)
	}
}

func TestVerifyNoCodeIssued(t *testing.T) {
	p, c := newTestPolicy()

	if err := p.Verify(&models.User{}, "123456"); !errors.Is(err, ErrNoCodeIssued) {
		t.Fatalf("err = %v, want ErrNoCodeIssued", err)
	}

	code := "123456"
	if err := p.Verify(&models.User{ResetCode: &code}, code); !errors.Is(err, ErrNoCodeIssued) {
		t.Fatalf("code without expiry: err = %v, want ErrNoCodeIssued", err)
	}

	expires := c.t.Add(time.Minute)
	if err := p.Verify(&models.User{ResetCodeExpiresAt: &expires}, code); !errors.Is(err, ErrNoCodeIssued) {
		t.Fatalf("expiry without code: err = %v, want ErrNoCodeIssued", err)
	}
}

func TestVerifyExpiredEvenWhenDigitsMatch(t *testing.T) {
	p, c := newTestPolicy(382913)
	u := &models.User{}
	code, _ := p.Generate(u)

	c.advance(10*time.Minute + time.Second)

	if err := p.Verify(u, code); !errors.Is(err, ErrExpired) {
		t.Fatalf("err = %v, want ErrExpired", err)
	}
	if u.ResetCode == nil {
		t.Fatal("expired code must not be cleared automatically")
	}
	if u.FailedAttempts != 0 {
		t.Fatalf("expired path must not count attempts, got %d", u.FailedAttempts)
	}
}

func TestVerifyAtExactExpiryIsValid(t *testing.T) {
	p, c := newTestPolicy(382913)
	u := &models.User{}
	code, _ := p.Generate(u)

	c.advance(10 * time.Minute)
	if err := p.Verify(u, code); err != nil {
		t.Fatalf("err = %v, want nil at the expiry instant", err)
	}
}

func TestVerifyLockoutAfterThreeMismatches(t *testing.T) {
	p, c := newTestPolicy(382913)
	u := &models.User{}
	code, _ := p.Generate(u)

	for i := 1; i <= 3; i++ {
		if err := p.Verify(u, "000000"); !errors.Is(err, ErrMismatch) {
			t.Fatalf("attempt %d: err = %v, want ErrMismatch", i, err)
		}
		if u.FailedAttempts != i {
			t.Fatalf("attempt %d: failed_attempts = %d", i, u.FailedAttempts)
		}
		if i < 3 && u.LockedUntil != nil {
			t.Fatalf("attempt %d: locked too early", i)
		}
	}

	if u.LockedUntil == nil || !u.LockedUntil.Equal(c.t.Add(15*time.Minute)) {
		t.Fatalf("locked_until = %v, want now+15m", u.LockedUntil)
	}

	if err := p.Verify(u, code); !errors.Is(err, ErrLocked) {
		t.Fatalf("correct code while locked: err = %v, want ErrLocked", err)
	}
	if u.FailedAttempts != 3 {
		t.Fatalf("locked verification must not count attempts, got %d", u.FailedAttempts)
	}
}

func TestVerifyLockElapses(t *testing.T) {
	p, c := newTestPolicy(382913)
	p.TTL = time.Hour
	u := &models.User{}
	code, _ := p.Generate(u)

	for i := 0; i < 3; i++ {
		_ = p.Verify(u, "000000")
	}

	c.advance(14 * time.Minute)
	if err := p.Verify(u, code); !errors.Is(err, ErrLocked) {
		t.Fatalf("inside window: err = %v, want ErrLocked", err)
	}

	c.advance(2 * time.Minute)
	if err := p.Verify(u, code); err != nil {
		t.Fatalf("after window: err = %v, want nil", err)
	}
}

func TestClear(t *testing.T) {
	p, _ := newTestPolicy(382913)
	u := &models.User{}
	_, _ = p.Generate(u)
	_ = p.Verify(u, "000000")

	Clear(u)

	if u.ResetCode != nil || u.ResetCodeExpiresAt != nil || u.FailedAttempts != 0 || u.LockedUntil != nil {
		t.Fatalf("Clear left state behind: %+v", u)
	}
	if err := p.Verify(u, "482913"); !errors.Is(err, ErrNoCodeIssued) {
		t.Fatalf("after clear: err = %v, want ErrNoCodeIssued", err)
	}
}
