package events

import (
	"time"

	"github.com/spec-kit/listing-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventListingCreated      EventType = "listing_created"
	EventListingApproved     EventType = "listing_approved"
	EventListingRejected     EventType = "listing_rejected"
	EventListingVoted        EventType = "listing_voted"
	EventCommentReplied      EventType = "comment_replied"
	EventNotificationRouted  EventType = "notification_routed"
	EventNotificationRetried EventType = "notification_retried"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	ListingID string      `json:"listing_id,omitempty"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// ListingCreatedPayload payload.
type ListingCreatedPayload struct {
	OwnerID string `json:"owner_id"`
	Title   string `json:"title"`
}

// ListingDecidedPayload payload for approve/reject transitions.
type ListingDecidedPayload struct {
	OwnerID     string                `json:"owner_id"`
	OldStatus   domain.ApprovalStatus `json:"old_status"`
	NewStatus   domain.ApprovalStatus `json:"new_status"`
	ModeratorID string                `json:"moderator_id"`
	Notes       *string               `json:"notes,omitempty"`
}

// ListingVotedPayload payload.
type ListingVotedPayload struct {
	OwnerID  string `json:"owner_id"`
	VoterID  string `json:"voter_id"`
	Value    bool   `json:"value"`
	Replaced bool   `json:"replaced"`
}

// CommentRepliedPayload payload.
type CommentRepliedPayload struct {
	CommentID      string `json:"comment_id"`
	ParentAuthorID string `json:"parent_author_id"`
	ReplyAuthorID  string `json:"reply_author_id"`
	BodyPreview    string `json:"body_preview"`
}

// NotificationRoutedPayload payload emitted when the router creates a
// notification record for the delivery worker to pick up.
type NotificationRoutedPayload struct {
	NotificationID string                  `json:"notification_id"`
	RecipientID    string                  `json:"recipient_id"`
	Type           domain.NotificationType `json:"type"`
}
