package domain

import "time"

// User is a registered account as kept by the auth provider.
type User struct {
	// Email is the normalized account identifier.
	Email string `json:"email"`

	// Username is the display name chosen at sign-up.
	Username string `json:"username"`

	PasswordHash string `json:"password_hash"`

	CreatedAt time.Time `json:"created_at"`
}

// Identity returns the account identity of the user.
func (u User) Identity() Identity {
	return Account(u.Email, u.Username)
}
