// Package repository persists users. Every mutation of the password-reset
// columns goes through Update, which holds a row lock for the whole
// read-modify-write.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/partsmarket/internal/models"
)

var (
	ErrNotFound  = errors.New("user not found")
	ErrDuplicate = errors.New("user already exists")
)

// MutateFunc changes u in place and returns the columns to persist. Returning
// no columns skips the write.
type MutateFunc func(u *models.User) []string

// GormUserRepository stores users in Postgres through gorm.
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository constructs a GormUserRepository.
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// FindByIdentifier looks a user up by canonical phone number.
func (r *GormUserRepository) FindByIdentifier(ctx context.Context, phone string) (*models.User, error) {
	return r.first(ctx, "phone = ?", phone)
}

// FindByEmail returns the oldest account registered with email.
func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", email).Order("created_at asc").First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// FindByID looks a user up by primary key.
func (r *GormUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *GormUserRepository) first(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// Create inserts a new user.
func (r *GormUserRepository) Create(ctx context.Context, u *models.User) error {
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		return translate(err)
	}
	return nil
}

// Save writes only the named columns of u.
func (r *GormUserRepository) Save(ctx context.Context, u *models.User, fields ...string) error {
	return saveFields(r.db.WithContext(ctx), u, fields)
}

// Update loads the user with phone under SELECT ... FOR UPDATE, applies fn and
// saves the returned columns in the same transaction.
func (r *GormUserRepository) Update(ctx context.Context, phone string, fn MutateFunc) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("phone = ?", phone).
			First(&user).Error
		if err != nil {
			return translate(err)
		}

		fields := fn(&user)
		if len(fields) == 0 {
			return nil
		}
		return saveFields(tx, &user, fields)
	})
}

func saveFields(db *gorm.DB, u *models.User, fields []string) error {
	if len(fields) == 0 {
		return nil
	}

	u.UpdatedAt = time.Now()
	columns := append(append([]string{}, fields...), "updated_at")

	result := db.Model(u).Select(columns).Updates(u)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return ErrDuplicate
	default:
		return err
	}
}

func isUniqueViolation(err error) bool {
	// SQLSTATE 23505 when gorm's TranslateError is off.
	return strings.Contains(err.Error(), "23505")
}
