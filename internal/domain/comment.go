package domain

import "time"

// Comment is user discussion attached to a listing. Deletion is a soft
// delete so moderation history stays auditable.
type Comment struct {
	ID        string
	ListingID string
	AuthorID  string
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}
