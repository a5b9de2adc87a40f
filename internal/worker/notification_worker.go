package worker

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/listing-service/internal/domain"
	"github.com/spec-kit/listing-service/internal/events"
	"github.com/spec-kit/listing-service/internal/notify"
	"github.com/spec-kit/listing-service/internal/repository"
	"github.com/spec-kit/listing-service/internal/service"
)

// DeliveryWorker consumes routed notifications and hands them to the
// delivery collaborator, recording the status it reports back. The
// core never retries on its own; a retry arrives as its own event.
type DeliveryWorker struct {
	notifications repository.NotificationRepository
	router        *service.NotificationService
	deliverer     notify.Deliverer
	logger        *zap.Logger
}

// NewDeliveryWorker constructs the worker.
func NewDeliveryWorker(notifications repository.NotificationRepository, router *service.NotificationService, deliverer notify.Deliverer, logger *zap.Logger) *DeliveryWorker {
	return &DeliveryWorker{
		notifications: notifications,
		router:        router,
		deliverer:     deliverer,
		logger:        logger,
	}
}

// Register subscribes the worker to routed-notification events.
func (w *DeliveryWorker) Register(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventNotificationRouted, w.handle)
	dispatcher.Subscribe(events.EventNotificationRetried, w.handle)
}

func (w *DeliveryWorker) handle(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.NotificationRoutedPayload)
	if !ok {
		return nil
	}

	notification, err := w.notifications.GetByID(ctx, payload.NotificationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			w.logger.Warn("routed notification vanished", zap.String("notification_id", payload.NotificationID))
			return nil
		}
		return err
	}
	if notification.Status != domain.DeliveryPending {
		return nil
	}

	status, err := w.deliverer.Deliver(ctx, notification)
	if err != nil {
		w.logger.Warn("delivery collaborator failed",
			zap.String("notification_id", notification.ID), zap.Error(err))
		status = domain.DeliveryFailed
	}
	return w.router.RecordDeliveryResult(ctx, notification.ID, status)
}
