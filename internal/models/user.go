package models

import (
	"strings"
	"time"
)

// User types.
const (
	UserTypeUser      = "user"
	UserTypeAdmin     = "admin"
	UserTypeModerator = "moderator"
)

// User represents a marketplace account. Phone holds the canonical
// +94XXXXXXXXX number and is the login key.
type User struct {
	BaseModel
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	Phone        string  `gorm:"uniqueIndex;not null" json:"phone"`
	Email        *string `gorm:"index" json:"email"`
	DisplayName  string  `json:"display_name"`
	UserType     string  `gorm:"default:'user'" json:"user_type"`
	IsActive     bool    `gorm:"default:true" json:"is_active"`
	PasswordHash string  `json:"-"`

	// Password-reset state. ResetCode and ResetCodeExpiresAt are always set or
	// cleared together.
	ResetCode          *string    `json:"-"`
	ResetCodeExpiresAt *time.Time `json:"-"`
	FailedAttempts     int        `gorm:"not null;default:0" json:"-"`
	LockedUntil        *time.Time `json:"-"`

	PartRequests []VehiclePartRequest `json:"-"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// HasEmail reports whether the user registered an email address.
func (u *User) HasEmail() bool {
	return u.Email != nil && *u.Email != ""
}
