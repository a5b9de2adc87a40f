package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/listing-service/internal/domain"
	"github.com/spec-kit/listing-service/internal/events"
	"github.com/spec-kit/listing-service/internal/service"
	apperrors "github.com/spec-kit/listing-service/pkg/util"
)

type notificationFixture struct {
	svc           *service.NotificationService
	notifications *memNotificationRepo
	preferences   *memPreferenceRepo
	dispatcher    events.Dispatcher
}

func newNotificationFixture() *notificationFixture {
	notifications := newMemNotificationRepo()
	preferences := newMemPreferenceRepo()
	dispatcher := events.NewInMemoryDispatcher()
	svc := service.NewNotificationService(notifications, preferences, dispatcher, zap.NewNop())
	svc.RegisterHandlers()
	return &notificationFixture{
		svc:           svc,
		notifications: notifications,
		preferences:   preferences,
		dispatcher:    dispatcher,
	}
}

func TestEveryTypeHasACategory(t *testing.T) {
	t.Parallel()

	allTypes := []domain.NotificationType{
		domain.NotificationListingApproved,
		domain.NotificationListingRejected,
		domain.NotificationListingVoted,
		domain.NotificationCommentReply,
		domain.NotificationTrustMilestone,
		domain.NotificationSystemAnnouncement,
	}
	for _, notifType := range allTypes {
		category, ok := service.CategoryFor(notifType)
		require.True(t, ok, "type %s has no category", notifType)
		assert.NotEmpty(t, category)
	}

	_, ok := service.CategoryFor("BOGUS")
	assert.False(t, ok)
}

func TestRouteClassifiesAndDefaultsToInApp(t *testing.T) {
	t.Parallel()

	f := newNotificationFixture()
	ref := "listing-1"

	notification, err := f.svc.Route(context.Background(), "owner-1", domain.NotificationListingApproved, &ref, map[string]any{"listing_id": ref})
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryModeration, notification.Category)
	assert.Equal(t, domain.ChannelInApp, notification.Channel)
	assert.Equal(t, domain.DeliveryPending, notification.Status)
	assert.False(t, notification.IsRead)
}

func TestRouteHonorsChannelPreference(t *testing.T) {
	t.Parallel()

	f := newNotificationFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.SetPreference(ctx, "owner-1", domain.CategoryModeration, domain.ChannelEmail))

	ref := "listing-1"
	notification, err := f.svc.Route(ctx, "owner-1", domain.NotificationListingRejected, &ref, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ChannelEmail, notification.Channel)

	// A category without an explicit preference still defaults.
	notification, err = f.svc.Route(ctx, "owner-1", domain.NotificationListingVoted, &ref, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ChannelInApp, notification.Channel)
}

func TestRouteIsIdempotentPerReference(t *testing.T) {
	t.Parallel()

	f := newNotificationFixture()
	ctx := context.Background()
	ref := "listing-1"

	first, err := f.svc.Route(ctx, "owner-1", domain.NotificationListingApproved, &ref, nil)
	require.NoError(t, err)

	second, err := f.svc.Route(ctx, "owner-1", domain.NotificationListingApproved, &ref, nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.notifications.count())

	// Same reference, different type is a distinct record.
	_, err = f.svc.Route(ctx, "owner-1", domain.NotificationListingVoted, &ref, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, f.notifications.count())
}

// blindNotificationRepo misses a configurable number of dedup lookups,
// standing in for a concurrent writer that inserts between the lookup
// and the insert.
type blindNotificationRepo struct {
	*memNotificationRepo
	missedLookups int
}

func (r *blindNotificationRepo) FindByIdempotencyKey(ctx context.Context, recipientID string, notifType domain.NotificationType, referenceID *string) (*domain.Notification, error) {
	if r.missedLookups > 0 {
		r.missedLookups--
		return nil, nil
	}
	return r.memNotificationRepo.FindByIdempotencyKey(ctx, recipientID, notifType, referenceID)
}

// Reference-free notifications still dedupe on (recipient, type).
func TestRouteDedupesNilReference(t *testing.T) {
	t.Parallel()

	f := newNotificationFixture()
	ctx := context.Background()

	first, err := f.svc.Route(ctx, "user-1", domain.NotificationSystemAnnouncement, nil, nil)
	require.NoError(t, err)
	second, err := f.svc.Route(ctx, "user-1", domain.NotificationSystemAnnouncement, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.notifications.count())
}

func TestRouteRecoversFromInsertRace(t *testing.T) {
	t.Parallel()

	store := newMemNotificationRepo()
	repo := &blindNotificationRepo{memNotificationRepo: store}
	svc := service.NewNotificationService(repo, newMemPreferenceRepo(), nil, zap.NewNop())
	ctx := context.Background()

	ref := "listing-9"
	first, err := svc.Route(ctx, "owner-1", domain.NotificationListingApproved, &ref, nil)
	require.NoError(t, err)

	// The lookup misses, the insert hits the unique index, and the
	// earlier record is returned instead of an error.
	repo.missedLookups = 1
	second, err := svc.Route(ctx, "owner-1", domain.NotificationListingApproved, &ref, nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, store.count())
}

func TestRouteRejectsUnknownType(t *testing.T) {
	t.Parallel()

	f := newNotificationFixture()

	_, err := f.svc.Route(context.Background(), "owner-1", "BOGUS", nil, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestListingDecidedEventRoutesToOwner(t *testing.T) {
	t.Parallel()

	f := newNotificationFixture()
	ctx := context.Background()

	err := f.dispatcher.Publish(ctx, events.Event{
		Type:      events.EventListingApproved,
		ListingID: "listing-1",
		Payload: events.ListingDecidedPayload{
			OwnerID:   "owner-1",
			OldStatus: domain.ApprovalStatusPending,
			NewStatus: domain.ApprovalStatusApproved,
		},
	})
	require.NoError(t, err)

	list, err := f.svc.ListForRecipient(ctx, "owner-1", false, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.NotificationListingApproved, list[0].Type)

	// Replaying the event creates nothing new.
	err = f.dispatcher.Publish(ctx, events.Event{
		Type:      events.EventListingApproved,
		ListingID: "listing-1",
		Payload: events.ListingDecidedPayload{
			OwnerID:   "owner-1",
			NewStatus: domain.ApprovalStatusApproved,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.notifications.count())
}

func TestRecordDeliveryResultValidatesStatus(t *testing.T) {
	t.Parallel()

	f := newNotificationFixture()
	ctx := context.Background()
	ref := "listing-1"

	notification, err := f.svc.Route(ctx, "owner-1", domain.NotificationListingApproved, &ref, nil)
	require.NoError(t, err)

	err = f.svc.RecordDeliveryResult(ctx, notification.ID, domain.DeliveryPending)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	require.NoError(t, f.svc.RecordDeliveryResult(ctx, notification.ID, domain.DeliverySent))

	stored, err := f.notifications.GetByID(ctx, notification.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliverySent, stored.Status)

	err = f.svc.RecordDeliveryResult(ctx, "missing", domain.DeliveryFailed)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

func TestRetryOnlyFailed(t *testing.T) {
	t.Parallel()

	f := newNotificationFixture()
	ctx := context.Background()
	ref := "listing-1"

	notification, err := f.svc.Route(ctx, "owner-1", domain.NotificationListingApproved, &ref, nil)
	require.NoError(t, err)

	// PENDING cannot be retried.
	_, err = f.svc.Retry(ctx, notification.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))

	require.NoError(t, f.svc.RecordDeliveryResult(ctx, notification.ID, domain.DeliveryFailed))

	retried, err := f.svc.Retry(ctx, notification.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryPending, retried.Status)

	// SENT cannot be retried either.
	require.NoError(t, f.svc.RecordDeliveryResult(ctx, notification.ID, domain.DeliverySent))
	_, err = f.svc.Retry(ctx, notification.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))
}

func TestMarkReadIsScopedToRecipient(t *testing.T) {
	t.Parallel()

	f := newNotificationFixture()
	ctx := context.Background()
	ref := "listing-1"

	notification, err := f.svc.Route(ctx, "owner-1", domain.NotificationListingApproved, &ref, nil)
	require.NoError(t, err)

	// Someone else cannot mark it read.
	err = f.svc.MarkRead(ctx, "intruder", notification.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))

	require.NoError(t, f.svc.MarkRead(ctx, "owner-1", notification.ID))

	unread, err := f.svc.ListForRecipient(ctx, "owner-1", true, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, unread)
}

func TestSetPreferenceRejectsUnknownChannel(t *testing.T) {
	t.Parallel()

	f := newNotificationFixture()

	err := f.svc.SetPreference(context.Background(), "owner-1", domain.CategorySystem, "CARRIER_PIGEON")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}
