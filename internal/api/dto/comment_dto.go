package dto

import "time"

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	ListingID string `json:"listingId"`
	Body      string `json:"body"`
}

// UpdateCommentInput payload. Field names are fixed by the wire
// contract.
type UpdateCommentInput struct {
	CommentID string `json:"commentId"`
	Body      string `json:"body"`
}

// DeleteCommentInput payload.
type DeleteCommentInput struct {
	CommentID string `json:"commentId"`
}

// CommentResponse response.
type CommentResponse struct {
	ID        string    `json:"id"`
	ListingID string    `json:"listingId"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
