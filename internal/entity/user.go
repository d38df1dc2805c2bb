package entity

import "time"

// User is an account that owns files. Immutable after creation except
// through the external auth flows.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"-"`
}
