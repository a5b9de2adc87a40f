package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/listing-service/internal/domain"
	"github.com/spec-kit/listing-service/internal/events"
	"github.com/spec-kit/listing-service/internal/observability"
	"github.com/spec-kit/listing-service/internal/policy"
	"github.com/spec-kit/listing-service/internal/repository"
	apperrors "github.com/spec-kit/listing-service/pkg/util"
)

// CommentService handles listing discussion with the moderation
// escalation asymmetry: editing someone else's comment needs
// SUPER_ADMIN, deleting needs only ADMIN.
type CommentService struct {
	comments   repository.CommentRepository
	listings   repository.ListingRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewCommentService constructs the service.
func NewCommentService(comments repository.CommentRepository, listings repository.ListingRepository, dispatcher events.Dispatcher, metrics *observability.Metrics, logger *zap.Logger) *CommentService {
	return &CommentService{
		comments:   comments,
		listings:   listings,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
	}
}

// UpdateInput mirrors the UpdateCommentInput wire shape.
type UpdateInput struct {
	CommentID string
	Body      string
}

// Create adds a comment to a listing and notifies the listing owner.
func (s *CommentService) Create(ctx context.Context, authorID string, listingID, body string) (*domain.Comment, error) {
	if authorID == "" {
		return nil, apperrors.NewValidationError("author id required", nil)
	}
	body = strings.TrimSpace(body)
	if listingID == "" || body == "" {
		return nil, apperrors.NewValidationError("listing id and body required", nil)
	}

	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("listing", map[string]any{"listing_id": listingID})
		}
		return nil, apperrors.NewDependencyUnavailable("listing store", err)
	}

	comment := &domain.Comment{
		ListingID: listingID,
		AuthorID:  authorID,
		Body:      body,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.NewDependencyUnavailable("comment store", err)
	}

	if listing.OwnerID != authorID {
		s.publishEvent(ctx, events.Event{
			Type:      events.EventCommentReplied,
			ListingID: listingID,
			Actor:     events.Actor{UserID: authorID},
			Payload: events.CommentRepliedPayload{
				CommentID:      comment.ID,
				ParentAuthorID: listing.OwnerID,
				ReplyAuthorID:  authorID,
				BodyPreview:    bodyPreview(body, 120),
			},
		})
	}
	return comment, nil
}

// Update rewrites a comment body. Only the author or a SUPER_ADMIN may
// rewrite content.
func (s *CommentService) Update(ctx context.Context, actorID string, actorRole domain.Role, input UpdateInput) (*domain.Comment, error) {
	body := strings.TrimSpace(input.Body)
	if input.CommentID == "" || body == "" {
		return nil, apperrors.NewValidationError("commentId and body required", nil)
	}

	comment, err := s.getLive(ctx, input.CommentID)
	if err != nil {
		return nil, err
	}

	decision := policy.CanEdit(&actorRole, actorID, comment.AuthorID, policy.CommentEditEscalation)
	s.metrics.RecordDecision(decision.Allowed, decision.Reason)
	if !decision.Allowed {
		return nil, apperrors.NewPermissionDenied("not allowed to edit comment", map[string]any{
			"reason": decision.Reason,
		})
	}

	if err := s.comments.UpdateBody(ctx, comment.ID, body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("comment", map[string]any{"comment_id": comment.ID})
		}
		return nil, apperrors.NewDependencyUnavailable("comment store", err)
	}
	comment.Body = body
	return comment, nil
}

// Delete soft-deletes a comment. The author or any ADMIN may remove it.
func (s *CommentService) Delete(ctx context.Context, actorID string, actorRole domain.Role, commentID string) error {
	if commentID == "" {
		return apperrors.NewValidationError("commentId required", nil)
	}

	comment, err := s.getLive(ctx, commentID)
	if err != nil {
		return err
	}

	decision := policy.CanEdit(&actorRole, actorID, comment.AuthorID, policy.CommentDeleteEscalation)
	s.metrics.RecordDecision(decision.Allowed, decision.Reason)
	if !decision.Allowed {
		return apperrors.NewPermissionDenied("not allowed to delete comment", map[string]any{
			"reason": decision.Reason,
		})
	}

	if err := s.comments.SoftDelete(ctx, commentID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("comment", map[string]any{"comment_id": commentID})
		}
		return apperrors.NewDependencyUnavailable("comment store", err)
	}
	return nil
}

// ListByListing returns live comments for a listing.
func (s *CommentService) ListByListing(ctx context.Context, listingID string, limit, offset int) ([]domain.Comment, error) {
	if listingID == "" {
		return nil, apperrors.NewValidationError("listing id required", nil)
	}
	comments, err := s.comments.ListByListing(ctx, listingID, limit, offset)
	if err != nil {
		return nil, apperrors.NewDependencyUnavailable("comment store", err)
	}
	return comments, nil
}

func (s *CommentService) getLive(ctx context.Context, commentID string) (*domain.Comment, error) {
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("comment", map[string]any{"comment_id": commentID})
		}
		return nil, apperrors.NewDependencyUnavailable("comment store", err)
	}
	if comment.DeletedAt != nil {
		return nil, apperrors.NewNotFound("comment", map[string]any{"comment_id": commentID})
	}
	return comment, nil
}

func (s *CommentService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func bodyPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	cut := max - 3
	suffix := "..."
	if max <= 3 {
		cut = max
		suffix = ""
	}
	// Back off to a rune boundary so the cut never splits a
	// multi-byte character.
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut] + suffix
}
