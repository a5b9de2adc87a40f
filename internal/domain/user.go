package domain

import "time"

// UserStatus represents lifecycle states for an account.
type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusSuspended UserStatus = "SUSPENDED"
)

// User is the domain model for community members. TrustScore is a
// derived view over the trust ledger, never a source of truth.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Status       UserStatus
	TrustScore   int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
