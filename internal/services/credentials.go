package services

import (
	"github.com/example/partsmarket/internal/models"
	"github.com/example/partsmarket/internal/utils"
)

// CredentialStore owns the user's password hash.
type CredentialStore interface {
	SetPassword(u *models.User, plain string) error
	CheckPassword(u *models.User, plain string) bool
}

// BcryptCredentials hashes passwords with bcrypt.
type BcryptCredentials struct {
	Cost int
}

// SetPassword replaces u.PasswordHash with a hash of plain.
func (b BcryptCredentials) SetPassword(u *models.User, plain string) error {
	hash, err := utils.HashPassword(plain, b.Cost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

// CheckPassword reports whether plain matches the stored hash. Users without
// a hash never match.
func (b BcryptCredentials) CheckPassword(u *models.User, plain string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return utils.CheckPassword(u.PasswordHash, plain)
}
