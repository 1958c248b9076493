package auth

import "time"

// Account is the credential view of a user.
type Account struct {
	ID           int64
	Email        string
	PasswordHash string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Active reports whether the account may sign in.
func (a Account) Active() bool {
	return a.Status == "active"
}
