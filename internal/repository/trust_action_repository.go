package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/listing-service/internal/domain"
)

// TrustActionRepository is the append-only store behind the trust
// ledger. Entries are never updated or deleted; the seq column is a
// DB-assigned monotonic sequence.
type TrustActionRepository interface {
	Append(ctx context.Context, action *domain.TrustAction) error
	SumForUser(ctx context.Context, userID string) (int, error)
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]domain.TrustAction, error)
	ExistsForReference(ctx context.Context, userID string, kind domain.TrustActionKind, reference string) (bool, error)
}

type trustActionRepository struct {
	pool *pgxpool.Pool
}

// NewTrustActionRepository instantiates repository.
func NewTrustActionRepository(pool *pgxpool.Pool) TrustActionRepository {
	return &trustActionRepository{pool: pool}
}

func (r *trustActionRepository) Append(ctx context.Context, action *domain.TrustAction) error {
	const query = `
        INSERT INTO trust_actions (user_id, kind, delta, reference)
        VALUES ($1,$2,$3,$4)
        RETURNING id, seq, created_at`
	return db(ctx, r.pool).QueryRow(ctx, query,
		action.UserID,
		action.Kind,
		action.Delta,
		action.Reference,
	).Scan(&action.ID, &action.Seq, &action.CreatedAt)
}

func (r *trustActionRepository) SumForUser(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COALESCE(SUM(delta), 0) FROM trust_actions WHERE user_id=$1`
	var sum int
	if err := db(ctx, r.pool).QueryRow(ctx, query, userID).Scan(&sum); err != nil {
		return 0, err
	}
	return sum, nil
}

func (r *trustActionRepository) ListForUser(ctx context.Context, userID string, limit, offset int) ([]domain.TrustAction, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, seq, user_id, kind, delta, reference, created_at
        FROM trust_actions WHERE user_id=$1
        ORDER BY seq DESC LIMIT $2 OFFSET $3`

	rows, err := db(ctx, r.pool).Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TrustAction
	for rows.Next() {
		var action domain.TrustAction
		if err := rows.Scan(
			&action.ID,
			&action.Seq,
			&action.UserID,
			&action.Kind,
			&action.Delta,
			&action.Reference,
			&action.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, action)
	}
	return result, rows.Err()
}

// ExistsForReference backs idempotency for reference-scoped grants such
// as the monthly bonus.
func (r *trustActionRepository) ExistsForReference(ctx context.Context, userID string, kind domain.TrustActionKind, reference string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM trust_actions WHERE user_id=$1 AND kind=$2 AND reference=$3)`
	var exists bool
	if err := db(ctx, r.pool).QueryRow(ctx, query, userID, kind, reference).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
