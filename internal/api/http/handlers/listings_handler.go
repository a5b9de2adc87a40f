package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/listing-service/internal/api/dto"
	"github.com/spec-kit/listing-service/internal/auth"
	"github.com/spec-kit/listing-service/internal/domain"
	"github.com/spec-kit/listing-service/internal/repository"
	"github.com/spec-kit/listing-service/internal/service"
	apperrors "github.com/spec-kit/listing-service/pkg/util"
)

// ListingsHandler manages listing endpoints.
type ListingsHandler struct {
	listings *service.ListingService
}

// NewListingsHandler constructs handler.
func NewListingsHandler(listingService *service.ListingService) *ListingsHandler {
	return &ListingsHandler{listings: listingService}
}

// Create POST /listings.
func (h *ListingsHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateListingInput
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	listing, err := h.listings.Create(c.Context(), principal.User.ID, principal.Role, service.ListingCreateInput{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": listingSummary(listing, 0, 0)})
}

// Get GET /listings/:id.
func (h *ListingsHandler) Get(c *fiber.Ctx) error {
	listing, err := h.listings.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	up, down, err := h.listings.VoteCounts(c.Context(), listing.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": listingSummary(listing, up, down)})
}

// List GET /listings.
func (h *ListingsHandler) List(c *fiber.Ctx) error {
	filter := repository.ListingFilter{
		Limit:  parseIntQuery(c, "limit", 20),
		Offset: parseIntQuery(c, "offset", 0),
	}
	if owner := c.Query("owner"); owner != "" {
		filter.OwnerID = &owner
	}
	if statuses := c.Query("status"); statuses != "" {
		for _, raw := range strings.Split(statuses, ",") {
			filter.Statuses = append(filter.Statuses, domain.ApprovalStatus(strings.ToUpper(strings.TrimSpace(raw))))
		}
	}

	listings, err := h.listings.List(c.Context(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.ListingSummary, 0, len(listings))
	for i := range listings {
		items = append(items, listingSummary(&listings[i], 0, 0))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Vote POST /listings/vote.
func (h *ListingsHandler) Vote(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.VoteListingInput
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	vote, err := h.listings.Vote(c.Context(), principal.User.ID, principal.Role, service.VoteInput{
		ListingID: req.ListingID,
		Value:     req.Value,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.VoteResponse{
		ListingID: vote.ListingID,
		Value:     vote.Value,
		UpdatedAt: vote.UpdatedAt,
	}})
}

func listingSummary(listing *domain.Listing, up, down int) dto.ListingSummary {
	return dto.ListingSummary{
		ID:          listing.ID,
		OwnerID:     listing.OwnerID,
		Title:       listing.Title,
		Description: listing.Description,
		Status:      listing.Status,
		Upvotes:     up,
		Downvotes:   down,
		CreatedAt:   listing.CreatedAt,
		DecidedAt:   listing.DecidedAt,
	}
}

func parseIntQuery(c *fiber.Ctx, key string, fallback int) int {
	val := c.Query(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}
