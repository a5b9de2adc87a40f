package domain

import "time"

// ApprovalStatus enumerates listing lifecycle states.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "PENDING"
	ApprovalStatusApproved ApprovalStatus = "APPROVED"
	ApprovalStatusRejected ApprovalStatus = "REJECTED"
)

// Terminal reports whether the status admits no further transition.
func (s ApprovalStatus) Terminal() bool {
	return s == ApprovalStatusApproved || s == ApprovalStatusRejected
}

// Listing is the aggregate for user-submitted content awaiting
// moderation. Status transitions are owned exclusively by the approval
// workflow.
type Listing struct {
	ID             string
	OwnerID        string
	Title          string
	Description    string
	Status         ApprovalStatus
	ModeratorNotes *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DecidedAt      *time.Time
}
