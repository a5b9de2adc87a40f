package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/listing-service/internal/api/dto"
	"github.com/spec-kit/listing-service/internal/auth"
	"github.com/spec-kit/listing-service/internal/domain"
	"github.com/spec-kit/listing-service/internal/service"
	apperrors "github.com/spec-kit/listing-service/pkg/util"
)

// NotificationsHandler manages notification endpoints.
type NotificationsHandler struct {
	notifications *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notificationService *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{notifications: notificationService}
}

// List GET /notifications.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	unreadOnly := c.Query("unread") == "true"

	notifications, err := h.notifications.ListForRecipient(c.Context(),
		principal.User.ID,
		unreadOnly,
		parseIntQuery(c, "limit", 20),
		parseIntQuery(c, "offset", 0))
	if err != nil {
		return err
	}
	items := make([]dto.NotificationResponse, 0, len(notifications))
	for i := range notifications {
		items = append(items, notificationResponse(&notifications[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// MarkRead POST /notifications/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.MarkNotificationReadInput
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	if err := h.notifications.MarkRead(c.Context(), principal.User.ID, req.NotificationID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Retry POST /notifications/:id/retry.
func (h *NotificationsHandler) Retry(c *fiber.Ctx) error {
	notification, err := h.notifications.Retry(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": notificationResponse(notification)})
}

// SetPreference PUT /notifications/preferences.
func (h *NotificationsHandler) SetPreference(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.PreferenceRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	if err := h.notifications.SetPreference(c.Context(), principal.User.ID, req.Category, req.Channel); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func notificationResponse(notification *domain.Notification) dto.NotificationResponse {
	return dto.NotificationResponse{
		ID:          notification.ID,
		Type:        notification.Type,
		Category:    notification.Category,
		Channel:     notification.Channel,
		Status:      notification.Status,
		ReferenceID: notification.ReferenceID,
		Payload:     notification.Payload,
		IsRead:      notification.IsRead,
		CreatedAt:   notification.CreatedAt,
	}
}
