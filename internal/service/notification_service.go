package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/listing-service/internal/domain"
	"github.com/spec-kit/listing-service/internal/events"
	"github.com/spec-kit/listing-service/internal/repository"
	apperrors "github.com/spec-kit/listing-service/pkg/util"
)

// typeCategories is the fixed, total mapping from notification type to
// category. Every type must appear here; routing an unmapped type is a
// programming error surfaced as validation failure.
var typeCategories = map[domain.NotificationType]domain.NotificationCategory{
	domain.NotificationListingApproved:    domain.CategoryModeration,
	domain.NotificationListingRejected:    domain.CategoryModeration,
	domain.NotificationListingVoted:       domain.CategoryEngagement,
	domain.NotificationCommentReply:       domain.CategoryContent,
	domain.NotificationTrustMilestone:     domain.CategoryEngagement,
	domain.NotificationSystemAnnouncement: domain.CategorySystem,
}

// CategoryFor resolves the category for a notification type.
func CategoryFor(notifType domain.NotificationType) (domain.NotificationCategory, bool) {
	category, ok := typeCategories[notifType]
	return category, ok
}

// NotificationService routes domain events into notification records.
// It owns creation and classification; delivery status belongs to the
// delivery collaborator via the worker.
type NotificationService struct {
	notifications repository.NotificationRepository
	preferences   repository.PreferenceRepository
	dispatcher    events.Dispatcher
	logger        *zap.Logger
}

// NewNotificationService creates the router.
func NewNotificationService(notifications repository.NotificationRepository, preferences repository.PreferenceRepository, dispatcher events.Dispatcher, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		preferences:   preferences,
		dispatcher:    dispatcher,
		logger:        logger,
	}
}

// RegisterHandlers subscribes to domain events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventListingApproved, n.handleListingDecided)
	n.dispatcher.Subscribe(events.EventListingRejected, n.handleListingDecided)
	n.dispatcher.Subscribe(events.EventListingVoted, n.handleListingVoted)
	n.dispatcher.Subscribe(events.EventCommentReplied, n.handleCommentReplied)
}

func (n *NotificationService) handleListingDecided(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ListingDecidedPayload)
	if !ok {
		return nil
	}
	notifType := domain.NotificationListingApproved
	if event.Type == events.EventListingRejected {
		notifType = domain.NotificationListingRejected
	}
	meta := map[string]any{"listing_id": event.ListingID, "new_status": string(payload.NewStatus)}
	if payload.Notes != nil {
		meta["notes"] = *payload.Notes
	}
	_, err := n.Route(ctx, payload.OwnerID, notifType, &event.ListingID, meta)
	return err
}

func (n *NotificationService) handleListingVoted(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ListingVotedPayload)
	if !ok {
		return nil
	}
	// Replacement votes reuse the original idempotency key; the owner
	// already heard about this voter.
	_, err := n.Route(ctx, payload.OwnerID, domain.NotificationListingVoted, &event.ListingID, map[string]any{
		"listing_id": event.ListingID,
		"voter_id":   payload.VoterID,
		"value":      payload.Value,
	})
	return err
}

func (n *NotificationService) handleCommentReplied(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.CommentRepliedPayload)
	if !ok {
		return nil
	}
	_, err := n.Route(ctx, payload.ParentAuthorID, domain.NotificationCommentReply, &payload.CommentID, map[string]any{
		"listing_id":   event.ListingID,
		"comment_id":   payload.CommentID,
		"body_preview": payload.BodyPreview,
	})
	return err
}

// Route classifies an event and creates at most one PENDING
// notification per (recipient, type, reference). A duplicate returns
// the existing record unchanged.
func (n *NotificationService) Route(ctx context.Context, recipientID string, notifType domain.NotificationType, referenceID *string, payload map[string]any) (*domain.Notification, error) {
	if recipientID == "" {
		return nil, apperrors.NewValidationError("recipient id required", nil)
	}
	category, ok := CategoryFor(notifType)
	if !ok {
		return nil, apperrors.NewValidationError("unknown notification type", map[string]any{"type": notifType})
	}

	existing, err := n.notifications.FindByIdempotencyKey(ctx, recipientID, notifType, referenceID)
	if err != nil {
		return nil, apperrors.NewDependencyUnavailable("notification store", err)
	}
	if existing != nil {
		return existing, nil
	}

	channel := n.channelFor(ctx, recipientID, category)

	notification := &domain.Notification{
		RecipientID: recipientID,
		Type:        notifType,
		Category:    category,
		Channel:     channel,
		Status:      domain.DeliveryPending,
		ReferenceID: referenceID,
		Payload:     payload,
	}
	if err := n.notifications.Create(ctx, notification); err != nil {
		if errors.Is(err, repository.ErrDuplicateNotification) {
			// A concurrent writer landed between the dedup lookup and
			// the insert; the earlier record wins.
			existing, findErr := n.notifications.FindByIdempotencyKey(ctx, recipientID, notifType, referenceID)
			if findErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, apperrors.NewDependencyUnavailable("notification store", err)
	}

	n.logger.Info("notification routed",
		zap.String("recipient", recipientID),
		zap.String("type", string(notifType)),
		zap.String("category", string(category)),
		zap.String("channel", string(channel)))

	n.publishRouted(ctx, notification, events.EventNotificationRouted)
	return notification, nil
}

// RecordDeliveryResult persists the status the delivery collaborator
// reported back. Only SENT and FAILED are accepted.
func (n *NotificationService) RecordDeliveryResult(ctx context.Context, notificationID string, status domain.NotificationDeliveryStatus) error {
	if status != domain.DeliverySent && status != domain.DeliveryFailed {
		return apperrors.NewValidationError("delivery result must be SENT or FAILED", nil)
	}
	if err := n.notifications.UpdateStatus(ctx, notificationID, status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("notification", map[string]any{"notification_id": notificationID})
		}
		return apperrors.NewDependencyUnavailable("notification store", err)
	}
	return nil
}

// Retry reissues delivery for a FAILED notification. Anything else is
// a conflict; FAILED records are never resurrected implicitly.
func (n *NotificationService) Retry(ctx context.Context, notificationID string) (*domain.Notification, error) {
	notification, err := n.notifications.GetByID(ctx, notificationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("notification", map[string]any{"notification_id": notificationID})
		}
		return nil, apperrors.NewDependencyUnavailable("notification store", err)
	}
	if notification.Status != domain.DeliveryFailed {
		return nil, apperrors.NewConflict("only failed notifications can be retried", map[string]any{
			"status": notification.Status,
		})
	}

	if err := n.notifications.UpdateStatus(ctx, notificationID, domain.DeliveryPending); err != nil {
		return nil, apperrors.NewDependencyUnavailable("notification store", err)
	}
	notification.Status = domain.DeliveryPending

	n.publishRouted(ctx, notification, events.EventNotificationRetried)
	return notification, nil
}

// MarkRead flags a notification as read by its recipient.
func (n *NotificationService) MarkRead(ctx context.Context, recipientID, notificationID string) error {
	if notificationID == "" {
		return apperrors.NewValidationError("notificationId required", nil)
	}
	if err := n.notifications.MarkRead(ctx, notificationID, recipientID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("notification", map[string]any{"notification_id": notificationID})
		}
		return apperrors.NewDependencyUnavailable("notification store", err)
	}
	return nil
}

// ListForRecipient returns a user's notifications, newest first.
func (n *NotificationService) ListForRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	result, err := n.notifications.ListForRecipient(ctx, recipientID, unreadOnly, limit, offset)
	if err != nil {
		return nil, apperrors.NewDependencyUnavailable("notification store", err)
	}
	return result, nil
}

// SetPreference stores the recipient's channel choice for a category.
func (n *NotificationService) SetPreference(ctx context.Context, userID string, category domain.NotificationCategory, channel domain.DeliveryChannel) error {
	switch channel {
	case domain.ChannelInApp, domain.ChannelEmail, domain.ChannelBoth:
	default:
		return apperrors.NewValidationError("unknown delivery channel", map[string]any{"channel": channel})
	}
	pref := &domain.NotificationPreference{UserID: userID, Category: category, Channel: channel}
	if err := n.preferences.Upsert(ctx, pref); err != nil {
		return apperrors.NewDependencyUnavailable("preference store", err)
	}
	return nil
}

func (n *NotificationService) channelFor(ctx context.Context, userID string, category domain.NotificationCategory) domain.DeliveryChannel {
	pref, err := n.preferences.Get(ctx, userID, category)
	if err != nil {
		n.logger.Warn("preference lookup failed; defaulting to in-app",
			zap.String("user_id", userID), zap.Error(err))
		return domain.ChannelInApp
	}
	if pref == nil {
		return domain.ChannelInApp
	}
	return pref.Channel
}

func (n *NotificationService) publishRouted(ctx context.Context, notification *domain.Notification, eventType events.EventType) {
	if n.dispatcher == nil {
		return
	}
	_ = n.dispatcher.Publish(ctx, events.Event{
		ID:   uuid.NewString(),
		Type: eventType,
		Payload: events.NotificationRoutedPayload{
			NotificationID: notification.ID,
			RecipientID:    notification.RecipientID,
			Type:           notification.Type,
		},
	})
}
