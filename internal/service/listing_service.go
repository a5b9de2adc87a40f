package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/listing-service/internal/domain"
	"github.com/spec-kit/listing-service/internal/events"
	"github.com/spec-kit/listing-service/internal/observability"
	"github.com/spec-kit/listing-service/internal/policy"
	"github.com/spec-kit/listing-service/internal/repository"
	"github.com/spec-kit/listing-service/pkg/keyedmutex"
	apperrors "github.com/spec-kit/listing-service/pkg/util"
)

// ListingService owns the listing approval workflow and voting. It is
// the only writer of listing status transitions.
type ListingService struct {
	listings   repository.ListingRepository
	votes      repository.VoteRepository
	trust      *TrustService
	tx         repository.TxManager
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger

	// transitionLocks serializes status transitions per listing id;
	// voteLocks serializes re-votes per (listing, voter) pair.
	transitionLocks *keyedmutex.KeyedMutex
	voteLocks       *keyedmutex.KeyedMutex
}

// ListingDependencies bundles collaborators for the listing service.
type ListingDependencies struct {
	ListingRepo repository.ListingRepository
	VoteRepo    repository.VoteRepository
	Trust       *TrustService
	TxManager   repository.TxManager
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// ListingCreateInput describes listing creation payload.
type ListingCreateInput struct {
	Title       string
	Description string
}

// VoteInput describes a vote request.
type VoteInput struct {
	ListingID string
	Value     bool
}

// VerifyInput describes a moderation decision payload.
type VerifyInput struct {
	ListingID string
	Notes     *string
}

// NewListingService constructs the service.
func NewListingService(deps ListingDependencies) *ListingService {
	return &ListingService{
		listings:        deps.ListingRepo,
		votes:           deps.VoteRepo,
		trust:           deps.Trust,
		tx:              deps.TxManager,
		dispatcher:      deps.Dispatcher,
		metrics:         deps.Metrics,
		logger:          deps.Logger,
		transitionLocks: keyedmutex.New(),
		voteLocks:       keyedmutex.New(),
	}
}

// allowedTransitions encodes the approval state machine. Terminal
// states admit nothing; re-submission creates a new PENDING listing,
// it never reopens a terminal one.
var allowedTransitions = map[domain.ApprovalStatus][]domain.ApprovalStatus{
	domain.ApprovalStatusPending:  {domain.ApprovalStatusApproved, domain.ApprovalStatusRejected},
	domain.ApprovalStatusApproved: {},
	domain.ApprovalStatusRejected: {},
}

func isValidTransition(current, next domain.ApprovalStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Create opens a new PENDING listing and rewards the contribution
// regardless of its eventual outcome.
func (s *ListingService) Create(ctx context.Context, ownerID string, ownerRole domain.Role, input ListingCreateInput) (*domain.Listing, error) {
	if ownerID == "" {
		return nil, apperrors.NewValidationError("owner id required", nil)
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title required", nil)
	}

	listing := &domain.Listing{
		OwnerID:     ownerID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Status:      domain.ApprovalStatusPending,
	}
	err := s.inTx(ctx, func(ctx context.Context) error {
		if err := s.listings.Create(ctx, listing); err != nil {
			return apperrors.NewDependencyUnavailable("listing store", err)
		}
		_, err := s.trust.ApplyAction(ctx, ownerID, domain.TrustListingCreated, s.trust.Policy().ListingCreated, &listing.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventListingCreated,
		ListingID: listing.ID,
		Actor:     events.Actor{UserID: ownerID, Role: ownerRole},
		Payload: events.ListingCreatedPayload{
			OwnerID: ownerID,
			Title:   listing.Title,
		},
	})
	return listing, nil
}

// GetByID fetches a listing.
func (s *ListingService) GetByID(ctx context.Context, listingID string) (*domain.Listing, error) {
	if listingID == "" {
		return nil, apperrors.NewValidationError("listing id required", nil)
	}
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("listing", map[string]any{"listing_id": listingID})
		}
		return nil, apperrors.NewDependencyUnavailable("listing store", err)
	}
	return listing, nil
}

// List returns listings matching the filter.
func (s *ListingService) List(ctx context.Context, filter repository.ListingFilter) ([]domain.Listing, error) {
	result, err := s.listings.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.NewDependencyUnavailable("listing store", err)
	}
	return result, nil
}

// Approve moves a PENDING listing to APPROVED, rewards the owner and
// notifies them. Only moderators with at least ADMIN may decide.
func (s *ListingService) Approve(ctx context.Context, moderatorID string, moderatorRole domain.Role, input VerifyInput) (*domain.Listing, error) {
	return s.decide(ctx, moderatorID, moderatorRole, input, domain.ApprovalStatusApproved)
}

// Reject moves a PENDING listing to REJECTED with optional notes.
func (s *ListingService) Reject(ctx context.Context, moderatorID string, moderatorRole domain.Role, input VerifyInput) (*domain.Listing, error) {
	return s.decide(ctx, moderatorID, moderatorRole, input, domain.ApprovalStatusRejected)
}

func (s *ListingService) decide(ctx context.Context, moderatorID string, moderatorRole domain.Role, input VerifyInput, target domain.ApprovalStatus) (*domain.Listing, error) {
	if input.ListingID == "" {
		return nil, apperrors.NewValidationError("listingId required", nil)
	}
	required := domain.RoleAdmin
	if decision := policy.CanPerform(&moderatorRole, &required); !decision.Allowed {
		s.metrics.RecordDecision(false, decision.Reason)
		return nil, apperrors.NewPermissionDenied("moderator role required", map[string]any{
			"reason": decision.Reason,
		})
	}

	s.transitionLocks.Lock(input.ListingID)
	defer s.transitionLocks.Unlock(input.ListingID)

	listing, err := s.GetByID(ctx, input.ListingID)
	if err != nil {
		return nil, err
	}
	if !isValidTransition(listing.Status, target) {
		return nil, apperrors.NewConflict("illegal status transition", map[string]any{
			"listing_id": listing.ID,
			"from":       listing.Status,
			"to":         target,
		})
	}

	kind := domain.TrustListingApproved
	delta := s.trust.Policy().ListingApproved
	eventType := events.EventListingApproved
	if target == domain.ApprovalStatusRejected {
		kind = domain.TrustListingRejected
		delta = s.trust.Policy().ListingRejected
		eventType = events.EventListingRejected
	}

	oldStatus := listing.Status
	decidedAt := time.Now()
	// The status CAS and the owner's ledger entry land in one
	// transaction: a decided listing without its trust entry would be
	// unrepairable, since the retry sees a terminal status.
	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.listings.SaveStatus(ctx, listing.ID, oldStatus, target, input.Notes, decidedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// Lost a race with another moderator; report conflict,
				// never double-count trust.
				return apperrors.NewConflict("listing already decided", map[string]any{
					"listing_id": listing.ID,
				})
			}
			return apperrors.NewDependencyUnavailable("listing store", err)
		}
		_, err := s.trust.ApplyAction(ctx, listing.OwnerID, kind, delta, &listing.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	listing.Status = target
	listing.ModeratorNotes = input.Notes
	listing.DecidedAt = &decidedAt
	s.metrics.RecordTransition(string(oldStatus), string(target))

	s.publishEvent(ctx, events.Event{
		Type:      eventType,
		ListingID: listing.ID,
		Actor:     events.Actor{UserID: moderatorID, Role: moderatorRole},
		Payload: events.ListingDecidedPayload{
			OwnerID:     listing.OwnerID,
			OldStatus:   oldStatus,
			NewStatus:   target,
			ModeratorID: moderatorID,
			Notes:       input.Notes,
		},
	})
	return listing, nil
}

// Vote records or replaces the voter's stance. Replacement nets by the
// difference: the prior vote's effect is reversed with compensating
// ledger entries before the new effect applies.
func (s *ListingService) Vote(ctx context.Context, voterID string, voterRole domain.Role, input VoteInput) (*domain.Vote, error) {
	if voterID == "" {
		return nil, apperrors.NewValidationError("voter id required", nil)
	}
	if input.ListingID == "" {
		return nil, apperrors.NewValidationError("listingId required", nil)
	}

	listing, err := s.GetByID(ctx, input.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.OwnerID == voterID {
		return nil, apperrors.NewValidationError("cannot vote on own listing", nil)
	}

	lockKey := input.ListingID + "|" + voterID
	s.voteLocks.Lock(lockKey)
	defer s.voteLocks.Unlock(lockKey)

	prior, err := s.votes.Get(ctx, input.ListingID, voterID)
	if err != nil {
		return nil, apperrors.NewDependencyUnavailable("vote store", err)
	}
	if prior != nil && prior.Value == input.Value {
		// Same stance twice is a no-op, not a double grant.
		return prior, nil
	}

	vote := &domain.Vote{
		ListingID: input.ListingID,
		VoterID:   voterID,
		Value:     input.Value,
	}
	// Upsert and ledger entries commit together. A half-compensated
	// ledger next to an updated stance could never be repaired: the
	// retry would hit the same-stance no-op above.
	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.votes.Upsert(ctx, vote); err != nil {
			return apperrors.NewDependencyUnavailable("vote store", err)
		}
		if prior != nil {
			if err := s.reverseVoteEffect(ctx, listing, voterID, prior.Value); err != nil {
				return err
			}
		}
		return s.applyVoteEffect(ctx, listing, voterID, input.Value)
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventListingVoted,
		ListingID: listing.ID,
		Actor:     events.Actor{UserID: voterID, Role: voterRole},
		Payload: events.ListingVotedPayload{
			OwnerID:  listing.OwnerID,
			VoterID:  voterID,
			Value:    input.Value,
			Replaced: prior != nil,
		},
	})
	return vote, nil
}

// VoteCounts returns current up/down tallies for a listing.
func (s *ListingService) VoteCounts(ctx context.Context, listingID string) (int, int, error) {
	up, down, err := s.votes.CountForListing(ctx, listingID)
	if err != nil {
		return 0, 0, apperrors.NewDependencyUnavailable("vote store", err)
	}
	return up, down, nil
}

func (s *ListingService) applyVoteEffect(ctx context.Context, listing *domain.Listing, voterID string, value bool) error {
	voterKind, voterDelta := domain.TrustUpvote, s.trust.Policy().UpvoteCast
	ownerKind, ownerDelta := domain.TrustListingReceivedUpvote, s.trust.Policy().ReceivedUpvote
	if !value {
		voterKind, voterDelta = domain.TrustDownvote, s.trust.Policy().DownvoteCast
		ownerKind, ownerDelta = domain.TrustListingReceivedDownvote, s.trust.Policy().ReceivedDownvote
	}
	if _, err := s.trust.ApplyAction(ctx, voterID, voterKind, voterDelta, &listing.ID); err != nil {
		return err
	}
	_, err := s.trust.ApplyAction(ctx, listing.OwnerID, ownerKind, ownerDelta, &listing.ID)
	return err
}

// reverseVoteEffect appends compensating entries that undo the prior
// vote. The ledger is append-only; nothing is edited in place.
func (s *ListingService) reverseVoteEffect(ctx context.Context, listing *domain.Listing, voterID string, priorValue bool) error {
	voterKind, voterDelta := domain.TrustUpvote, s.trust.Policy().UpvoteCast
	ownerKind, ownerDelta := domain.TrustListingReceivedUpvote, s.trust.Policy().ReceivedUpvote
	if !priorValue {
		voterKind, voterDelta = domain.TrustDownvote, s.trust.Policy().DownvoteCast
		ownerKind, ownerDelta = domain.TrustListingReceivedDownvote, s.trust.Policy().ReceivedDownvote
	}
	if _, err := s.trust.ApplyAction(ctx, voterID, voterKind, -voterDelta, &listing.ID); err != nil {
		return err
	}
	_, err := s.trust.ApplyAction(ctx, listing.OwnerID, ownerKind, -ownerDelta, &listing.ID)
	return err
}

func (s *ListingService) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx.WithinTx(ctx, fn)
}

func (s *ListingService) publishEvent(ctx context.Context, event events.Event) {
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
