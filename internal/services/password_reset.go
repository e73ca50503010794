package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/partsmarket/internal/limiter"
	"github.com/example/partsmarket/internal/models"
	"github.com/example/partsmarket/internal/otp"
	"github.com/example/partsmarket/internal/phone"
	"github.com/example/partsmarket/internal/repository"
	"github.com/example/partsmarket/internal/utils"
)

var (
	ErrNotFound          = errors.New("user not found")
	ErrInvalidCredential = errors.New("current password is incorrect")
	ErrWeakPassword      = errors.New("password must be at least 8 characters")
	ErrAlreadyExists     = errors.New("user with this phone already exists")
)

// UserRepository is the persistence the account services need.
type UserRepository interface {
	FindByIdentifier(ctx context.Context, phone string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
	Save(ctx context.Context, u *models.User, fields ...string) error
	Update(ctx context.Context, phone string, fn repository.MutateFunc) error
}

// CodeSender delivers a reset code to an address (email or phone).
type CodeSender interface {
	SendCode(ctx context.Context, to, code, displayName string) error
}

// ResetChannels lists the configured delivery channels. Either may be nil.
type ResetChannels struct {
	Email    CodeSender
	WhatsApp CodeSender
}

// deliveryTimeout bounds a single code delivery.
const deliveryTimeout = 30 * time.Second

// PasswordResetService runs the request / verify / confirm flow and the
// authenticated change-password operation.
type PasswordResetService struct {
	users    UserRepository
	creds    CredentialStore
	policy   *otp.Policy
	cooldown *limiter.Cooldown
	channels ResetChannels

	deliveries sync.WaitGroup
}

// NewPasswordResetService constructs a PasswordResetService. cooldown may be
// nil to disable request throttling.
func NewPasswordResetService(users UserRepository, creds CredentialStore, policy *otp.Policy, cooldown *limiter.Cooldown, channels ResetChannels) *PasswordResetService {
	if policy == nil {
		policy = otp.NewPolicy()
	}
	return &PasswordResetService{
		users:    users,
		creds:    creds,
		policy:   policy,
		cooldown: cooldown,
		channels: channels,
	}
}

// RequestReset issues a fresh code for identifier and hands it to a delivery
// channel in the background. Unknown identifiers get the same nil result as
// known ones, and neither waits for the delivery round trip.
func (s *PasswordResetService) RequestReset(ctx context.Context, identifier string) error {
	canonical, err := phone.Normalize(identifier)
	if err != nil {
		return err
	}

	if err := s.cooldown.Allow(ctx, canonical); err != nil {
		if errors.Is(err, limiter.ErrRateLimited) {
			return err
		}
		log.Printf("[PasswordReset] Cooldown check failed, continuing: %v", err)
	}

	var (
		code   string
		genErr error
		issued models.User
	)
	err = s.users.Update(ctx, canonical, func(u *models.User) []string {
		code, genErr = s.policy.Generate(u)
		if genErr != nil {
			return nil
		}
		issued = *u
		return otp.CodeFields
	})
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("store reset code: %w", err)
	case genErr != nil:
		return fmt.Errorf("generate reset code: %w", genErr)
	}

	s.deliveries.Add(1)
	go func() {
		defer s.deliveries.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
		defer cancel()
		s.deliver(sendCtx, &issued, code)
	}()
	return nil
}

// Wait blocks until background code deliveries have finished.
func (s *PasswordResetService) Wait() {
	s.deliveries.Wait()
}

// VerifyOnly checks code without consuming it. Wrong codes still count
// towards the lockout.
func (s *PasswordResetService) VerifyOnly(ctx context.Context, identifier, code string) error {
	canonical, err := phone.Normalize(identifier)
	if err != nil {
		return err
	}

	var verifyErr error
	err = s.users.Update(ctx, canonical, func(u *models.User) []string {
		verifyErr = s.policy.Verify(u, code)
		if errors.Is(verifyErr, otp.ErrMismatch) {
			return otp.AttemptFields
		}
		return nil
	})
	if err != nil {
		return s.lookupError(err)
	}
	return verifyErr
}

// ConfirmReset sets newPassword when code is valid and clears the reset state
// in the same write. Any verification failure leaves the password untouched.
func (s *PasswordResetService) ConfirmReset(ctx context.Context, identifier, code, newPassword string) error {
	canonical, err := phone.Normalize(identifier)
	if err != nil {
		return err
	}
	if err := utils.ValidatePassword(newPassword); err != nil {
		return ErrWeakPassword
	}

	var verifyErr, setErr error
	err = s.users.Update(ctx, canonical, func(u *models.User) []string {
		verifyErr = s.policy.Verify(u, code)
		switch {
		case errors.Is(verifyErr, otp.ErrMismatch):
			return otp.AttemptFields
		case verifyErr != nil:
			return nil
		}

		if setErr = s.creds.SetPassword(u, newPassword); setErr != nil {
			return nil
		}
		otp.Clear(u)
		return append([]string{"password_hash"}, otp.CodeFields...)
	})
	if err != nil {
		return s.lookupError(err)
	}
	if verifyErr != nil {
		return verifyErr
	}
	if setErr != nil {
		return fmt.Errorf("hash password: %w", setErr)
	}

	log.Printf("[PasswordReset] Password reset completed for %s", canonical)
	return nil
}

// ChangePassword replaces the password of an authenticated user after
// checking the current one. Reset code state is left alone.
func (s *PasswordResetService) ChangePassword(ctx context.Context, userID uuid.UUID, current, newPassword string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return s.lookupError(err)
	}
	if !s.creds.CheckPassword(user, current) {
		return ErrInvalidCredential
	}
	if err := utils.ValidatePassword(newPassword); err != nil {
		return ErrWeakPassword
	}

	if err := s.creds.SetPassword(user, newPassword); err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.Save(ctx, user, "password_hash"); err != nil {
		return s.lookupError(err)
	}
	return nil
}

func (s *PasswordResetService) deliver(ctx context.Context, u *models.User, code string) {
	name := u.DisplayName
	if name == "" {
		name = u.FullName()
	}

	var (
		sender CodeSender
		to     string
	)
	switch {
	case u.HasEmail() && s.channels.Email != nil:
		sender, to = s.channels.Email, *u.Email
	case s.channels.WhatsApp != nil:
		sender, to = s.channels.WhatsApp, u.Phone
	default:
		log.Printf("[PasswordReset] No delivery channel configured, code for %s not sent", u.Phone)
		return
	}

	if err := sender.SendCode(ctx, to, code, name); err != nil {
		log.Printf("[PasswordReset] Failed to deliver code to %s: %v", to, err)
	}
}

func (s *PasswordResetService) lookupError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
