package dto

import (
	"time"

	"github.com/spec-kit/listing-service/internal/domain"
)

// CreateListingInput payload. Field names are fixed by the wire
// contract.
type CreateListingInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// VoteListingInput payload.
type VoteListingInput struct {
	ListingID string `json:"listingId"`
	Value     bool   `json:"value"`
}

// VerifyListingInput payload for moderation decisions.
type VerifyListingInput struct {
	ListingID string  `json:"listingId"`
	Notes     *string `json:"notes,omitempty"`
}

// ListingSummary response.
type ListingSummary struct {
	ID          string                `json:"id"`
	OwnerID     string                `json:"owner_id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Status      domain.ApprovalStatus `json:"status"`
	Upvotes     int                   `json:"upvotes"`
	Downvotes   int                   `json:"downvotes"`
	CreatedAt   time.Time             `json:"created_at"`
	DecidedAt   *time.Time            `json:"decided_at,omitempty"`
}

// VoteResponse response.
type VoteResponse struct {
	ListingID string    `json:"listingId"`
	Value     bool      `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TrustActionResponse response.
type TrustActionResponse struct {
	ID        string                 `json:"id"`
	Kind      domain.TrustActionKind `json:"kind"`
	Delta     int                    `json:"delta"`
	Reference *string                `json:"reference,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// AdminAdjustRequest payload for manual trust corrections.
type AdminAdjustRequest struct {
	UserID string `json:"userId"`
	Delta  int    `json:"delta"`
}
