package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/listing-service/internal/domain"
)

// VoteRepository persists at most one vote per (listing, voter) pair.
type VoteRepository interface {
	Get(ctx context.Context, listingID, voterID string) (*domain.Vote, error)
	Upsert(ctx context.Context, vote *domain.Vote) error
	CountForListing(ctx context.Context, listingID string) (up int, down int, err error)
}

type voteRepository struct {
	pool *pgxpool.Pool
}

// NewVoteRepository instantiates repository.
func NewVoteRepository(pool *pgxpool.Pool) VoteRepository {
	return &voteRepository{pool: pool}
}

// Get returns nil without error when no vote exists yet.
func (r *voteRepository) Get(ctx context.Context, listingID, voterID string) (*domain.Vote, error) {
	const query = `
        SELECT id, listing_id, voter_user_id, value, created_at, updated_at
        FROM votes WHERE listing_id=$1 AND voter_user_id=$2`

	var vote domain.Vote
	err := db(ctx, r.pool).QueryRow(ctx, query, listingID, voterID).Scan(
		&vote.ID,
		&vote.ListingID,
		&vote.VoterID,
		&vote.Value,
		&vote.CreatedAt,
		&vote.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &vote, nil
}

func (r *voteRepository) Upsert(ctx context.Context, vote *domain.Vote) error {
	const query = `
        INSERT INTO votes (listing_id, voter_user_id, value)
        VALUES ($1,$2,$3)
        ON CONFLICT (listing_id, voter_user_id)
        DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()
        RETURNING id, created_at, updated_at`
	return db(ctx, r.pool).QueryRow(ctx, query,
		vote.ListingID,
		vote.VoterID,
		vote.Value,
	).Scan(&vote.ID, &vote.CreatedAt, &vote.UpdatedAt)
}

func (r *voteRepository) CountForListing(ctx context.Context, listingID string) (int, int, error) {
	const query = `
        SELECT COUNT(*) FILTER (WHERE value), COUNT(*) FILTER (WHERE NOT value)
        FROM votes WHERE listing_id=$1`
	var up, down int
	if err := db(ctx, r.pool).QueryRow(ctx, query, listingID).Scan(&up, &down); err != nil {
		return 0, 0, err
	}
	return up, down, nil
}
