package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/listing-service/internal/domain"
)

// ErrDuplicateNotification reports that the unique dedup index already
// holds a record for the (recipient, type, reference) key.
var ErrDuplicateNotification = errors.New("notification already exists for key")

// NotificationRepository persists routed notifications. The unique
// index on (recipient, type, reference) enforces the idempotency key
// at the storage layer as well.
type NotificationRepository interface {
	Create(ctx context.Context, notification *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	FindByIdempotencyKey(ctx context.Context, recipientID string, notifType domain.NotificationType, referenceID *string) (*domain.Notification, error)
	ListForRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error)
	UpdateStatus(ctx context.Context, id string, status domain.NotificationDeliveryStatus) error
	MarkRead(ctx context.Context, id, recipientID string) error
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository instantiates repository.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

func (r *notificationRepository) Create(ctx context.Context, notification *domain.Notification) error {
	const query = `
        INSERT INTO notifications (recipient_user_id, type, category, channel, status, reference_id, payload)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		notification.RecipientID,
		notification.Type,
		notification.Category,
		notification.Channel,
		notification.Status,
		notification.ReferenceID,
		notification.Payload,
	).Scan(&notification.ID, &notification.CreatedAt, &notification.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateNotification
	}
	return err
}

func (r *notificationRepository) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	const query = selectNotification + ` WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

// FindByIdempotencyKey returns nil without error when no record exists.
func (r *notificationRepository) FindByIdempotencyKey(ctx context.Context, recipientID string, notifType domain.NotificationType, referenceID *string) (*domain.Notification, error) {
	query := selectNotification + ` WHERE recipient_user_id=$1 AND type=$2 AND reference_id IS NOT DISTINCT FROM $3`
	notification, err := r.fetchSingle(ctx, query, recipientID, notifType, referenceID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return notification, err
}

func (r *notificationRepository) ListForRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	query := selectNotification + ` WHERE recipient_user_id=$1`
	if unreadOnly {
		query += ` AND NOT is_read`
	}
	query += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, recipientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		notification, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *notification)
	}
	return result, rows.Err()
}

func (r *notificationRepository) UpdateStatus(ctx context.Context, id string, status domain.NotificationDeliveryStatus) error {
	const query = `UPDATE notifications SET status=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, recipientID string) error {
	const query = `UPDATE notifications SET is_read=TRUE, updated_at=NOW() WHERE id=$1 AND recipient_user_id=$2`
	cmd, err := r.pool.Exec(ctx, query, id, recipientID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const selectNotification = `
        SELECT id, recipient_user_id, type, category, channel, status, reference_id, payload, is_read, created_at, updated_at
        FROM notifications`

func (r *notificationRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Notification, error) {
	row := r.pool.QueryRow(ctx, query, args...)
	return scanNotification(row)
}

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var notification domain.Notification
	if err := row.Scan(
		&notification.ID,
		&notification.RecipientID,
		&notification.Type,
		&notification.Category,
		&notification.Channel,
		&notification.Status,
		&notification.ReferenceID,
		&notification.Payload,
		&notification.IsRead,
		&notification.CreatedAt,
		&notification.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &notification, nil
}
