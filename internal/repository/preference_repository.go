package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/listing-service/internal/domain"
)

// PreferenceRepository stores per-user delivery channel choices keyed
// by notification category.
type PreferenceRepository interface {
	Get(ctx context.Context, userID string, category domain.NotificationCategory) (*domain.NotificationPreference, error)
	Upsert(ctx context.Context, pref *domain.NotificationPreference) error
}

type preferenceRepository struct {
	pool *pgxpool.Pool
}

// NewPreferenceRepository instantiates repository.
func NewPreferenceRepository(pool *pgxpool.Pool) PreferenceRepository {
	return &preferenceRepository{pool: pool}
}

// Get returns nil without error when the user has no explicit
// preference for the category.
func (r *preferenceRepository) Get(ctx context.Context, userID string, category domain.NotificationCategory) (*domain.NotificationPreference, error) {
	const query = `
        SELECT user_id, category, channel, updated_at
        FROM notification_preferences WHERE user_id=$1 AND category=$2`

	var pref domain.NotificationPreference
	err := r.pool.QueryRow(ctx, query, userID, category).Scan(
		&pref.UserID,
		&pref.Category,
		&pref.Channel,
		&pref.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pref, nil
}

func (r *preferenceRepository) Upsert(ctx context.Context, pref *domain.NotificationPreference) error {
	const query = `
        INSERT INTO notification_preferences (user_id, category, channel)
        VALUES ($1,$2,$3)
        ON CONFLICT (user_id, category)
        DO UPDATE SET channel=EXCLUDED.channel, updated_at=NOW()
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		pref.UserID,
		pref.Category,
		pref.Channel,
	).Scan(&pref.UpdatedAt)
}
