package dto

import (
	"time"

	"github.com/spec-kit/listing-service/internal/domain"
)

// MarkNotificationReadInput payload. Field name is fixed by the wire
// contract.
type MarkNotificationReadInput struct {
	NotificationID string `json:"notificationId"`
}

// PreferenceRequest payload for channel preferences.
type PreferenceRequest struct {
	Category domain.NotificationCategory `json:"category"`
	Channel  domain.DeliveryChannel      `json:"channel"`
}

// NotificationResponse response.
type NotificationResponse struct {
	ID          string                            `json:"id"`
	Type        domain.NotificationType           `json:"type"`
	Category    domain.NotificationCategory       `json:"category"`
	Channel     domain.DeliveryChannel            `json:"channel"`
	Status      domain.NotificationDeliveryStatus `json:"status"`
	ReferenceID *string                           `json:"reference_id,omitempty"`
	Payload     map[string]any                    `json:"payload,omitempty"`
	IsRead      bool                              `json:"is_read"`
	CreatedAt   time.Time                         `json:"created_at"`
}
