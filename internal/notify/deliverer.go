package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/listing-service/internal/domain"
)

// Deliverer is the external delivery collaborator. Implementations may
// be synchronous or queued; the caller only records the status they
// report back.
type Deliverer interface {
	Deliver(ctx context.Context, notification *domain.Notification) (domain.NotificationDeliveryStatus, error)
}

// LogDeliverer is the local stand-in delivery collaborator: it logs
// the handoff and reports success.
type LogDeliverer struct {
	logger    *zap.Logger
	emailFrom string
}

// NewLogDeliverer constructs the stub.
func NewLogDeliverer(logger *zap.Logger, emailFrom string) *LogDeliverer {
	return &LogDeliverer{logger: logger, emailFrom: emailFrom}
}

// Deliver logs the notification per channel and reports SENT.
func (d *LogDeliverer) Deliver(_ context.Context, notification *domain.Notification) (domain.NotificationDeliveryStatus, error) {
	fields := []zap.Field{
		zap.String("notification_id", notification.ID),
		zap.String("recipient", notification.RecipientID),
		zap.String("type", string(notification.Type)),
		zap.String("channel", string(notification.Channel)),
	}
	if notification.Channel == domain.ChannelEmail || notification.Channel == domain.ChannelBoth {
		fields = append(fields, zap.String("from", d.emailFrom))
	}
	d.logger.Info("delivering notification", fields...)
	return domain.DeliverySent, nil
}
