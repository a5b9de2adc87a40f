package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/listing-service/internal/config"
	"github.com/spec-kit/listing-service/internal/domain"
	"github.com/spec-kit/listing-service/internal/persistence"
	"github.com/spec-kit/listing-service/internal/policy"
	"github.com/spec-kit/listing-service/internal/repository"
	apperrors "github.com/spec-kit/listing-service/pkg/util"
)

// TrustService is the trust ledger: the sole writer of score-affecting
// facts. The score is always the sum of ledger entries; the cache is a
// strictly derived view invalidated on every append.
type TrustService struct {
	actions repository.TrustActionRepository
	cache   *persistence.ScoreCache
	policy  config.TrustPolicy
	logger  *zap.Logger
}

// NewTrustService constructs the service.
func NewTrustService(actions repository.TrustActionRepository, cache *persistence.ScoreCache, trustPolicy config.TrustPolicy, logger *zap.Logger) *TrustService {
	return &TrustService{
		actions: actions,
		cache:   cache,
		policy:  trustPolicy,
		logger:  logger,
	}
}

// Policy exposes the configured point table.
func (s *TrustService) Policy() config.TrustPolicy {
	return s.policy
}

// ApplyAction appends one immutable fact and returns it. The cache is
// invalidated before the append returns so readers never see a stale
// hit for longer than one recomputation.
func (s *TrustService) ApplyAction(ctx context.Context, userID string, kind domain.TrustActionKind, delta int, reference *string) (*domain.TrustAction, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("user id required", nil)
	}

	action := &domain.TrustAction{
		UserID:    userID,
		Kind:      kind,
		Delta:     delta,
		Reference: reference,
	}
	if err := s.actions.Append(ctx, action); err != nil {
		return nil, apperrors.NewDependencyUnavailable("trust store", err)
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("score cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}

	s.logger.Debug("trust action applied",
		zap.String("user_id", userID),
		zap.String("kind", string(kind)),
		zap.Int("delta", delta))
	return action, nil
}

// ScoreFor returns the user's aggregate trust score. Recomputation
// from the ledger is the source of truth; the cache only short-circuits
// repeat reads.
func (s *TrustService) ScoreFor(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, apperrors.NewValidationError("user id required", nil)
	}
	if score, ok := s.cache.Get(ctx, userID); ok {
		return score, nil
	}
	score, err := s.actions.SumForUser(ctx, userID)
	if err != nil {
		return 0, apperrors.NewDependencyUnavailable("trust store", err)
	}
	s.cache.Set(ctx, userID, score)
	return score, nil
}

// History lists ledger entries for a user, newest first.
func (s *TrustService) History(ctx context.Context, userID string, limit, offset int) ([]domain.TrustAction, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("user id required", nil)
	}
	entries, err := s.actions.ListForUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperrors.NewDependencyUnavailable("trust store", err)
	}
	return entries, nil
}

// AdminAdjust records a manual correction. Unauthorized adjustment is
// denied outright, never clamped.
func (s *TrustService) AdminAdjust(ctx context.Context, userID string, delta int, adminRole domain.Role) (*domain.TrustAction, error) {
	required := domain.RoleAdmin
	if decision := policy.CanPerform(&adminRole, &required); !decision.Allowed {
		return nil, apperrors.NewPermissionDenied("admin role required for trust adjustment", map[string]any{
			"reason": decision.Reason,
		})
	}
	if delta == 0 {
		return nil, apperrors.NewValidationError("adjustment delta must be non-zero", nil)
	}

	kind := domain.TrustAdminAdjustmentPositive
	if delta < 0 {
		kind = domain.TrustAdminAdjustmentNegative
	}
	return s.ApplyAction(ctx, userID, kind, delta, nil)
}

// GrantMonthlyBonus rewards an active user once per calendar month.
// The (user, kind, month reference) ledger lookup makes the grant
// idempotent across job reruns.
func (s *TrustService) GrantMonthlyBonus(ctx context.Context, userID string, month time.Time) (*domain.TrustAction, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("user id required", nil)
	}
	reference := fmt.Sprintf("bonus:%s", month.Format("2006-01"))

	exists, err := s.actions.ExistsForReference(ctx, userID, domain.TrustMonthlyActiveBonus, reference)
	if err != nil {
		return nil, apperrors.NewDependencyUnavailable("trust store", err)
	}
	if exists {
		return nil, apperrors.NewConflict("bonus already granted for month", map[string]any{
			"user_id": userID,
			"month":   month.Format("2006-01"),
		})
	}
	return s.ApplyAction(ctx, userID, domain.TrustMonthlyActiveBonus, s.policy.MonthlyActiveBonus, &reference)
}
