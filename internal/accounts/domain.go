// Package accounts implements user registration, authentication and
// profile/password management.
package accounts

import (
	"time"

	"github.com/atlas-auth/atlas-auth/internal/shared"
)

// User represents a stored account. PasswordHash never leaves this package.
type User struct {
	ID                string
	Name              string
	Email             string
	PasswordHash      string
	Role              shared.Role
	PasswordChangedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Profile is the sanitized projection of a User returned by the API.
type Profile struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  shared.Role `json:"role"`
}

// Profile returns the sanitized projection of the user.
func (u *User) Profile() Profile {
	return Profile{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}
