package domain

import "time"

// Vote records a voter's current stance on a listing. At most one vote
// exists per (listing, voter) pair; re-voting replaces it.
type Vote struct {
	ID        string
	ListingID string
	VoterID   string
	Value     bool // true = up, false = down
	CreatedAt time.Time
	UpdatedAt time.Time
}
