package domain

import "time"

// User is the domain entity for a user account. Staff users hold elevated
// privileges on object-level operations.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Staff        bool
	CreatedAt    time.Time
}
