// Package model defines the data structures used throughout the application.
package model

import "time"

// Roles a user can hold.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered account.
//
// Accounts come from two places: the signup form (Password set, Active false
// until the email link is followed) and social login (Password empty, Active
// true because the provider already verified the address).
type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Bio       string `json:"bio"`
	Image     string `json:"image"`
	Password  string `json:"-"` // bcrypt hash, never serialized
	Role      string `json:"role"`
	Active    bool   `json:"active"`

	EmailNotification bool `json:"emailNotification"`
	InAppNotification bool `json:"inAppNotification"`

	// Social login identity. Empty for password accounts.
	Provider   string `json:"provider,omitempty"`
	ProviderID string `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Profile is the public view of a user shown on /api/profiles.
type Profile struct {
	Username  string `json:"username"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Bio       string `json:"bio"`
	Image     string `json:"image"`
	Following bool   `json:"following"`
}

// ProfileOf builds the public profile for u.
func ProfileOf(u *User) Profile {
	return Profile{
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Bio:       u.Bio,
		Image:     u.Image,
	}
}
