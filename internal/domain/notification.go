package domain

import "time"

// NotificationType enumerates event kinds routed to users.
type NotificationType string

const (
	NotificationListingApproved    NotificationType = "LISTING_APPROVED"
	NotificationListingRejected    NotificationType = "LISTING_REJECTED"
	NotificationListingVoted       NotificationType = "LISTING_VOTED"
	NotificationCommentReply       NotificationType = "COMMENT_REPLY"
	NotificationTrustMilestone     NotificationType = "TRUST_MILESTONE"
	NotificationSystemAnnouncement NotificationType = "SYSTEM_ANNOUNCEMENT"
)

// NotificationCategory groups types for per-user channel preferences.
type NotificationCategory string

const (
	CategoryEngagement NotificationCategory = "ENGAGEMENT"
	CategoryContent    NotificationCategory = "CONTENT"
	CategorySystem     NotificationCategory = "SYSTEM"
	CategoryModeration NotificationCategory = "MODERATION"
)

// DeliveryChannel selects how a notification reaches the recipient.
type DeliveryChannel string

const (
	ChannelInApp DeliveryChannel = "IN_APP"
	ChannelEmail DeliveryChannel = "EMAIL"
	ChannelBoth  DeliveryChannel = "BOTH"
)

// NotificationDeliveryStatus tracks delivery progress.
type NotificationDeliveryStatus string

const (
	DeliveryPending NotificationDeliveryStatus = "PENDING"
	DeliverySent    NotificationDeliveryStatus = "SENT"
	DeliveryFailed  NotificationDeliveryStatus = "FAILED"
)

// Notification is created by the router and advanced only by the
// delivery subsystem. (RecipientID, Type, ReferenceID) is the
// idempotency key: the same event never produces two records.
type Notification struct {
	ID          string
	RecipientID string
	Type        NotificationType
	Category    NotificationCategory
	Channel     DeliveryChannel
	Status      NotificationDeliveryStatus
	ReferenceID *string
	Payload     map[string]any
	IsRead      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NotificationPreference stores a user's channel choice per category.
type NotificationPreference struct {
	UserID    string
	Category  NotificationCategory
	Channel   DeliveryChannel
	UpdatedAt time.Time
}
