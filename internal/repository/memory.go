package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/partsmarket/internal/models"
)

// MemoryUserRepository keeps users in a map. Reads return copies, so callers
// only see changes they persist with Save or Update.
type MemoryUserRepository struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

// NewMemoryUserRepository constructs an empty MemoryUserRepository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[uuid.UUID]*models.User)}
}

func (r *MemoryUserRepository) FindByIdentifier(_ context.Context, phone string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.byPhone(phone)
	if u == nil {
		return nil, ErrNotFound
	}
	return clone(u), nil
}

func (r *MemoryUserRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var found *models.User
	for _, u := range r.users {
		if u.Email != nil && *u.Email == email {
			if found == nil || u.CreatedAt.Before(found.CreatedAt) {
				found = u
			}
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return clone(found), nil
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(u), nil
}

func (r *MemoryUserRepository) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byPhone(u.Phone) != nil {
		return ErrDuplicate
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	if u.UserType == "" {
		u.UserType = models.UserTypeUser
	}
	r.users[u.ID] = clone(u)
	return nil
}

func (r *MemoryUserRepository) Save(_ context.Context, u *models.User, fields ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.save(u, fields)
}

func (r *MemoryUserRepository) Update(_ context.Context, phone string, fn MutateFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.byPhone(phone)
	if stored == nil {
		return ErrNotFound
	}

	working := clone(stored)
	fields := fn(working)
	if len(fields) == 0 {
		return nil
	}
	return r.save(working, fields)
}

func (r *MemoryUserRepository) save(u *models.User, fields []string) error {
	stored, ok := r.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	for _, f := range fields {
		copyField(stored, u, f)
	}
	stored.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryUserRepository) byPhone(phone string) *models.User {
	for _, u := range r.users {
		if u.Phone == phone {
			return u
		}
	}
	return nil
}

func copyField(dst, src *models.User, field string) {
	switch field {
	case "first_name":
		dst.FirstName = src.FirstName
	case "last_name":
		dst.LastName = src.LastName
	case "phone":
		dst.Phone = src.Phone
	case "email":
		dst.Email = cloneString(src.Email)
	case "display_name":
		dst.DisplayName = src.DisplayName
	case "user_type":
		dst.UserType = src.UserType
	case "is_active":
		dst.IsActive = src.IsActive
	case "password_hash":
		dst.PasswordHash = src.PasswordHash
	case "reset_code":
		dst.ResetCode = cloneString(src.ResetCode)
	case "reset_code_expires_at":
		dst.ResetCodeExpiresAt = cloneTime(src.ResetCodeExpiresAt)
	case "failed_attempts":
		dst.FailedAttempts = src.FailedAttempts
	case "locked_until":
		dst.LockedUntil = cloneTime(src.LockedUntil)
	}
}

func clone(u *models.User) *models.User {
	c := *u
	c.Email = cloneString(u.Email)
	c.ResetCode = cloneString(u.ResetCode)
	c.ResetCodeExpiresAt = cloneTime(u.ResetCodeExpiresAt)
	c.LockedUntil = cloneTime(u.LockedUntil)
	c.PartRequests = nil
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
