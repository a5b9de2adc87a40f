package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/listing-service/internal/api/dto"
	"github.com/spec-kit/listing-service/internal/auth"
	"github.com/spec-kit/listing-service/internal/service"
	apperrors "github.com/spec-kit/listing-service/pkg/util"
)

// ModerationHandler exposes listing decisions and trust adjustments.
// Role gating happens inside the services; the routes additionally sit
// behind RequireRole(ADMIN) so unauthorized calls fail fast.
type ModerationHandler struct {
	listings *service.ListingService
	trust    *service.TrustService
}

// NewModerationHandler constructs handler.
func NewModerationHandler(listingService *service.ListingService, trustService *service.TrustService) *ModerationHandler {
	return &ModerationHandler{listings: listingService, trust: trustService}
}

// Approve POST /moderation/listings/approve.
func (h *ModerationHandler) Approve(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.VerifyListingInput
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	listing, err := h.listings.Approve(c.Context(), principal.User.ID, principal.Role, service.VerifyInput{
		ListingID: req.ListingID,
		Notes:     req.Notes,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": listingSummary(listing, 0, 0)})
}

// Reject POST /moderation/listings/reject.
func (h *ModerationHandler) Reject(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.VerifyListingInput
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	listing, err := h.listings.Reject(c.Context(), principal.User.ID, principal.Role, service.VerifyInput{
		ListingID: req.ListingID,
		Notes:     req.Notes,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": listingSummary(listing, 0, 0)})
}

// AdjustTrust POST /moderation/trust/adjust.
func (h *ModerationHandler) AdjustTrust(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.AdminAdjustRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.UserID == "" {
		return apperrors.NewValidationError("userId required", nil)
	}

	action, err := h.trust.AdminAdjust(c.Context(), req.UserID, req.Delta, principal.Role)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TrustActionResponse{
		ID:        action.ID,
		Kind:      action.Kind,
		Delta:     action.Delta,
		Reference: action.Reference,
		CreatedAt: action.CreatedAt,
	}})
}
