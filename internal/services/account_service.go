package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/example/partsmarket/internal/models"
	"github.com/example/partsmarket/internal/phone"
	"github.com/example/partsmarket/internal/repository"
	"github.com/example/partsmarket/internal/utils"
)

var (
	ErrInvalidLogin    = errors.New("invalid credentials")
	ErrAccountInactive = errors.New("account is disabled")
)

// AccountService handles registration, login and profile edits.
type AccountService struct {
	users UserRepository
	creds CredentialStore
}

// NewAccountService constructs an AccountService.
func NewAccountService(users UserRepository, creds CredentialStore) *AccountService {
	return &AccountService{users: users, creds: creds}
}

// RegisterInput carries the fields accepted at sign-up.
type RegisterInput struct {
	FirstName string
	LastName  string
	Phone     string
	Email     string
	Password  string
}

// Register creates a user with a normalised phone and a hashed password.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	canonical, err := phone.Normalize(in.Phone)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidatePassword(in.Password); err != nil {
		return nil, ErrWeakPassword
	}

	user := &models.User{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Phone:     canonical,
		UserType:  models.UserTypeUser,
		IsActive:  true,
	}
	user.DisplayName = user.FullName()

	if strings.TrimSpace(in.Email) != "" {
		email, err := phone.NormalizeEmail(in.Email)
		if err != nil {
			return nil, err
		}
		user.Email = &email
	}

	if _, err := s.users.FindByIdentifier(ctx, canonical); err == nil {
		return nil, ErrAlreadyExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if err := s.creds.SetPassword(user, in.Password); err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAlreadyExists
		}
		return nil, err
	}
	return user, nil
}

// Login authenticates by phone or email. Unknown identifiers and wrong
// passwords produce the same error.
func (s *AccountService) Login(ctx context.Context, identifier, password string) (*models.User, error) {
	user, err := s.lookup(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, phone.ErrInvalidFormat) || errors.Is(err, phone.ErrInvalidEmail) {
			return nil, ErrInvalidLogin
		}
		return nil, err
	}

	if !s.creds.CheckPassword(user, password) {
		return nil, ErrInvalidLogin
	}
	if !user.IsActive {
		return nil, ErrAccountInactive
	}
	return user, nil
}

func (s *AccountService) lookup(ctx context.Context, identifier string) (*models.User, error) {
	if phone.LooksLikeEmail(identifier) {
		email, err := phone.NormalizeEmail(identifier)
		if err != nil {
			return nil, err
		}
		return s.users.FindByEmail(ctx, email)
	}

	canonical, err := phone.Normalize(identifier)
	if err != nil {
		return nil, err
	}
	return s.users.FindByIdentifier(ctx, canonical)
}

// Profile returns the user with id.
func (s *AccountService) Profile(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return user, err
}

// ProfileUpdate lists editable profile fields. Nil pointers are left alone.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
}

// UpdateProfile applies changes and persists only the touched columns.
func (s *AccountService) UpdateProfile(ctx context.Context, id uuid.UUID, in ProfileUpdate) (*models.User, error) {
	user, err := s.Profile(ctx, id)
	if err != nil {
		return nil, err
	}

	var fields []string
	if in.FirstName != nil {
		user.FirstName = strings.TrimSpace(*in.FirstName)
		fields = append(fields, "first_name")
	}
	if in.LastName != nil {
		user.LastName = strings.TrimSpace(*in.LastName)
		fields = append(fields, "last_name")
	}
	if in.FirstName != nil || in.LastName != nil {
		user.DisplayName = user.FullName()
		fields = append(fields, "display_name")
	}
	if in.Email != nil {
		if strings.TrimSpace(*in.Email) == "" {
			user.Email = nil
		} else {
			email, err := phone.NormalizeEmail(*in.Email)
			if err != nil {
				return nil, err
			}
			user.Email = &email
		}
		fields = append(fields, "email")
	}
	if in.Phone != nil {
		canonical, err := phone.Normalize(*in.Phone)
		if err != nil {
			return nil, err
		}
		if canonical != user.Phone {
			if _, err := s.users.FindByIdentifier(ctx, canonical); err == nil {
				return nil, ErrAlreadyExists
			} else if !errors.Is(err, repository.ErrNotFound) {
				return nil, err
			}
			user.Phone = canonical
			fields = append(fields, "phone")
		}
	}

	if len(fields) == 0 {
		return user, nil
	}
	if err := s.users.Save(ctx, user, fields...); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAlreadyExists
		}
		return nil, err
	}
	return user, nil
}
