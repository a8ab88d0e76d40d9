package types

import "time"

// User represents an account in the system.
// It contains identity, access flags, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID string `json:"id" db:"id"`

	// Username is the display name chosen by the user.
	Username string `json:"username" db:"username"`

	// Email is the user's email address. It is unique across accounts
	// and used as the login identifier.
	Email string `json:"email" db:"email"`

	// IsAdmin grants access to the admin dashboard and admin-only routes.
	IsAdmin bool `json:"isAdmin" db:"is_admin"`

	// IsActive is toggled by admins. Inactive accounts cannot log in
	// and are rejected by admin checks.
	IsActive bool `json:"isActive" db:"is_active"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
