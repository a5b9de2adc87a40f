package domain

import "time"

// TrustActionKind enumerates trust-affecting facts. Values are
// wire-visible.
type TrustActionKind string

const (
	TrustUpvote                  TrustActionKind = "UPVOTE"
	TrustDownvote                TrustActionKind = "DOWNVOTE"
	TrustListingCreated          TrustActionKind = "LISTING_CREATED"
	TrustListingApproved         TrustActionKind = "LISTING_APPROVED"
	TrustListingRejected         TrustActionKind = "LISTING_REJECTED"
	TrustMonthlyActiveBonus      TrustActionKind = "MONTHLY_ACTIVE_BONUS"
	TrustListingReceivedUpvote   TrustActionKind = "LISTING_RECEIVED_UPVOTE"
	TrustListingReceivedDownvote TrustActionKind = "LISTING_RECEIVED_DOWNVOTE"
	TrustAdminAdjustmentPositive TrustActionKind = "ADMIN_ADJUSTMENT_POSITIVE"
	TrustAdminAdjustmentNegative TrustActionKind = "ADMIN_ADJUSTMENT_NEGATIVE"
)

// TrustAction is an immutable ledger fact. Entries are append-only;
// corrections are new compensating entries, never edits. Seq is a
// store-assigned monotonic sequence number.
type TrustAction struct {
	ID        string
	Seq       int64
	UserID    string
	Kind      TrustActionKind
	Delta     int
	Reference *string
	CreatedAt time.Time
}
