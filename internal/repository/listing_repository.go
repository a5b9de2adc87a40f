package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/listing-service/internal/domain"
)

// ListingFilter captures listing search parameters.
type ListingFilter struct {
	OwnerID     *string
	Statuses    []domain.ApprovalStatus
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// ListingRepository encapsulates listing persistence. SaveStatus is the
// only way a listing's status changes; updated rows are guarded by the
// expected current status so concurrent transitions cannot both land.
type ListingRepository interface {
	Create(ctx context.Context, listing *domain.Listing) error
	GetByID(ctx context.Context, id string) (*domain.Listing, error)
	SaveStatus(ctx context.Context, id string, from, to domain.ApprovalStatus, notes *string, decidedAt time.Time) error
	ListWithFilter(ctx context.Context, filter ListingFilter) ([]domain.Listing, error)
}

type listingRepository struct {
	pool *pgxpool.Pool
}

// NewListingRepository instantiates repository.
func NewListingRepository(pool *pgxpool.Pool) ListingRepository {
	return &listingRepository{pool: pool}
}

func (r *listingRepository) Create(ctx context.Context, listing *domain.Listing) error {
	const query = `
        INSERT INTO listings (owner_user_id, title, description, status)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`
	return db(ctx, r.pool).QueryRow(ctx, query,
		listing.OwnerID,
		listing.Title,
		listing.Description,
		listing.Status,
	).Scan(&listing.ID, &listing.CreatedAt, &listing.UpdatedAt)
}

func (r *listingRepository) GetByID(ctx context.Context, id string) (*domain.Listing, error) {
	const query = `
        SELECT id, owner_user_id, title, description, status, moderator_notes, created_at, updated_at, decided_at
        FROM listings WHERE id=$1`

	var listing domain.Listing
	if err := db(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&listing.ID,
		&listing.OwnerID,
		&listing.Title,
		&listing.Description,
		&listing.Status,
		&listing.ModeratorNotes,
		&listing.CreatedAt,
		&listing.UpdatedAt,
		&listing.DecidedAt,
	); err != nil {
		return nil, err
	}
	return &listing, nil
}

// SaveStatus performs a compare-and-set on status. Zero rows affected
// means the listing either does not exist or already left `from`.
func (r *listingRepository) SaveStatus(ctx context.Context, id string, from, to domain.ApprovalStatus, notes *string, decidedAt time.Time) error {
	const query = `
        UPDATE listings SET status=$1, moderator_notes=$2, decided_at=$3, updated_at=NOW()
        WHERE id=$4 AND status=$5`
	cmd, err := db(ctx, r.pool).Exec(ctx, query, to, notes, decidedAt, id, from)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *listingRepository) ListWithFilter(ctx context.Context, filter ListingFilter) ([]domain.Listing, error) {
	base := `SELECT id, owner_user_id, title, description, status, moderator_notes, created_at, updated_at, decided_at
             FROM listings`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		clauses = append(clauses, fmt.Sprintf("owner_user_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := db(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Listing
	for rows.Next() {
		var listing domain.Listing
		if err := rows.Scan(
			&listing.ID,
			&listing.OwnerID,
			&listing.Title,
			&listing.Description,
			&listing.Status,
			&listing.ModeratorNotes,
			&listing.CreatedAt,
			&listing.UpdatedAt,
			&listing.DecidedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, listing)
	}
	return result, rows.Err()
}
