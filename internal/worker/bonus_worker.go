package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/spec-kit/listing-service/pkg/util"

	"github.com/spec-kit/listing-service/internal/repository"
	"github.com/spec-kit/listing-service/internal/service"
)

// activityWindowDays is the lookback used to decide who counts as an
// active member for the monthly bonus.
const activityWindowDays = 30

// BonusWorker grants the monthly active bonus. Grants are idempotent
// per (user, month) inside the trust service, so overlapping runs are
// harmless.
type BonusWorker struct {
	users  repository.UserRepository
	trust  *service.TrustService
	logger *zap.Logger
}

// NewBonusWorker constructs the worker.
func NewBonusWorker(users repository.UserRepository, trust *service.TrustService, logger *zap.Logger) *BonusWorker {
	return &BonusWorker{users: users, trust: trust, logger: logger}
}

// RunOnce grants the bonus for the given month to all active users.
func (w *BonusWorker) RunOnce(ctx context.Context, month time.Time) error {
	users, err := w.users.ListActiveSince(ctx, activityWindowDays)
	if err != nil {
		return apperrors.NewDependencyUnavailable("user store", err)
	}

	granted := 0
	for _, user := range users {
		if _, err := w.trust.GrantMonthlyBonus(ctx, user.ID, month); err != nil {
			if apperrors.IsCode(err, "CONFLICT") {
				continue
			}
			w.logger.Warn("bonus grant failed", zap.String("user_id", user.ID), zap.Error(err))
			continue
		}
		granted++
	}
	w.logger.Info("monthly bonus run complete",
		zap.String("month", month.Format("2006-01")),
		zap.Int("granted", granted),
		zap.Int("candidates", len(users)))
	return nil
}

// Run ticks once per interval until the context is cancelled.
func (w *BonusWorker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := w.RunOnce(ctx, now); err != nil {
				w.logger.Warn("monthly bonus run failed", zap.Error(err))
			}
		}
	}
}
