package service_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/listing-service/internal/domain"
	"github.com/spec-kit/listing-service/internal/repository"
)

// In-memory stores mirror the Postgres repositories closely enough to
// exercise service semantics, including the CAS guard on SaveStatus and
// the nil-without-error contracts on votes and preferences.

type memListingRepo struct {
	mu       sync.Mutex
	seq      int
	listings map[string]domain.Listing
}

func newMemListingRepo() *memListingRepo {
	return &memListingRepo{listings: make(map[string]domain.Listing)}
}

func (r *memListingRepo) Create(_ context.Context, listing *domain.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	listing.ID = fmt.Sprintf("listing-%d", r.seq)
	listing.CreatedAt = time.Now()
	listing.UpdatedAt = listing.CreatedAt
	r.listings[listing.ID] = *listing
	return nil
}

func (r *memListingRepo) GetByID(_ context.Context, id string) (*domain.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	listing, ok := r.listings[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &listing, nil
}

func (r *memListingRepo) SaveStatus(_ context.Context, id string, from, to domain.ApprovalStatus, notes *string, decidedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	listing, ok := r.listings[id]
	if !ok || listing.Status != from {
		return pgx.ErrNoRows
	}
	listing.Status = to
	listing.ModeratorNotes = notes
	listing.DecidedAt = &decidedAt
	listing.UpdatedAt = decidedAt
	r.listings[id] = listing
	return nil
}

func (r *memListingRepo) ListWithFilter(_ context.Context, filter repository.ListingFilter) ([]domain.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Listing
	for _, listing := range r.listings {
		if filter.OwnerID != nil && listing.OwnerID != *filter.OwnerID {
			continue
		}
		if len(filter.Statuses) > 0 {
			match := false
			for _, status := range filter.Statuses {
				if listing.Status == status {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		result = append(result, listing)
	}
	return result, nil
}

type memVoteRepo struct {
	mu    sync.Mutex
	votes map[string]domain.Vote
}

func newMemVoteRepo() *memVoteRepo {
	return &memVoteRepo{votes: make(map[string]domain.Vote)}
}

func voteKey(listingID, voterID string) string {
	return listingID + "|" + voterID
}

func (r *memVoteRepo) Get(_ context.Context, listingID, voterID string) (*domain.Vote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vote, ok := r.votes[voteKey(listingID, voterID)]
	if !ok {
		return nil, nil
	}
	return &vote, nil
}

func (r *memVoteRepo) Upsert(_ context.Context, vote *domain.Vote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := voteKey(vote.ListingID, vote.VoterID)
	now := time.Now()
	if existing, ok := r.votes[key]; ok {
		vote.ID = existing.ID
		vote.CreatedAt = existing.CreatedAt
	} else {
		vote.ID = key
		vote.CreatedAt = now
	}
	vote.UpdatedAt = now
	r.votes[key] = *vote
	return nil
}

func (r *memVoteRepo) CountForListing(_ context.Context, listingID string) (int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var up, down int
	for _, vote := range r.votes {
		if vote.ListingID != listingID {
			continue
		}
		if vote.Value {
			up++
		} else {
			down++
		}
	}
	return up, down, nil
}

type memTrustRepo struct {
	mu         sync.Mutex
	seq        int64
	entries    []domain.TrustAction
	failAppend func(*domain.TrustAction) error
}

func newMemTrustRepo() *memTrustRepo {
	return &memTrustRepo{}
}

// setFailAppend installs a fault hook consulted before each append.
func (r *memTrustRepo) setFailAppend(fn func(*domain.TrustAction) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failAppend = fn
}

func (r *memTrustRepo) Append(_ context.Context, action *domain.TrustAction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAppend != nil {
		if err := r.failAppend(action); err != nil {
			return err
		}
	}
	r.seq++
	action.Seq = r.seq
	action.ID = fmt.Sprintf("trust-%d", r.seq)
	action.CreatedAt = time.Now()
	r.entries = append(r.entries, *action)
	return nil
}

func (r *memTrustRepo) SumForUser(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := 0
	for _, entry := range r.entries {
		if entry.UserID == userID {
			sum += entry.Delta
		}
	}
	return sum, nil
}

func (r *memTrustRepo) ListForUser(_ context.Context, userID string, limit, offset int) ([]domain.TrustAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.TrustAction
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].UserID == userID {
			result = append(result, r.entries[i])
		}
	}
	if offset > len(result) {
		offset = len(result)
	}
	result = result[offset:]
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

func (r *memTrustRepo) ExistsForReference(_ context.Context, userID string, kind domain.TrustActionKind, reference string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.entries {
		if entry.UserID == userID && entry.Kind == kind && entry.Reference != nil && *entry.Reference == reference {
			return true, nil
		}
	}
	return false, nil
}

// entriesFor returns ledger entries for a user filtered by kind.
func (r *memTrustRepo) entriesFor(userID string, kind domain.TrustActionKind) []domain.TrustAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.TrustAction
	for _, entry := range r.entries {
		if entry.UserID == userID && entry.Kind == kind {
			result = append(result, entry)
		}
	}
	return result
}

func (r *memListingRepo) snapshot() map[string]domain.Listing {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := make(map[string]domain.Listing, len(r.listings))
	for id, listing := range r.listings {
		snap[id] = listing
	}
	return snap
}

func (r *memListingRepo) restore(snap map[string]domain.Listing) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listings = snap
}

func (r *memVoteRepo) snapshot() map[string]domain.Vote {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := make(map[string]domain.Vote, len(r.votes))
	for key, vote := range r.votes {
		snap[key] = vote
	}
	return snap
}

func (r *memVoteRepo) restore(snap map[string]domain.Vote) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.votes = snap
}

func (r *memTrustRepo) snapshot() []domain.TrustAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.TrustAction(nil), r.entries...)
}

func (r *memTrustRepo) restore(snap []domain.TrustAction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// seq stays where it is; sequences do not roll back in Postgres
	// either.
	r.entries = snap
}

// memTxManager gives the in-memory stores transactional semantics by
// snapshotting before the function runs and restoring on error.
type memTxManager struct {
	mu       sync.Mutex
	listings *memListingRepo
	votes    *memVoteRepo
	trust    *memTrustRepo
}

func (m *memTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	listings := m.listings.snapshot()
	votes := m.votes.snapshot()
	trust := m.trust.snapshot()
	if err := fn(ctx); err != nil {
		m.listings.restore(listings)
		m.votes.restore(votes)
		m.trust.restore(trust)
		return err
	}
	return nil
}

type memCommentRepo struct {
	mu       sync.Mutex
	seq      int
	comments map[string]domain.Comment
}

func newMemCommentRepo() *memCommentRepo {
	return &memCommentRepo{comments: make(map[string]domain.Comment)}
}

func (r *memCommentRepo) Create(_ context.Context, comment *domain.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	comment.ID = fmt.Sprintf("comment-%d", r.seq)
	comment.CreatedAt = time.Now()
	comment.UpdatedAt = comment.CreatedAt
	r.comments[comment.ID] = *comment
	return nil
}

func (r *memCommentRepo) GetByID(_ context.Context, id string) (*domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	comment, ok := r.comments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &comment, nil
}

func (r *memCommentRepo) UpdateBody(_ context.Context, id, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	comment, ok := r.comments[id]
	if !ok || comment.DeletedAt != nil {
		return pgx.ErrNoRows
	}
	comment.Body = body
	comment.UpdatedAt = time.Now()
	r.comments[id] = comment
	return nil
}

func (r *memCommentRepo) SoftDelete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	comment, ok := r.comments[id]
	if !ok || comment.DeletedAt != nil {
		return pgx.ErrNoRows
	}
	now := time.Now()
	comment.DeletedAt = &now
	r.comments[id] = comment
	return nil
}

func (r *memCommentRepo) ListByListing(_ context.Context, listingID string, limit, offset int) ([]domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Comment
	for _, comment := range r.comments {
		if comment.ListingID == listingID && comment.DeletedAt == nil {
			result = append(result, comment)
		}
	}
	return result, nil
}

type memNotificationRepo struct {
	mu            sync.Mutex
	seq           int
	notifications map[string]domain.Notification
}

func newMemNotificationRepo() *memNotificationRepo {
	return &memNotificationRepo{notifications: make(map[string]domain.Notification)}
}

// sameReference mirrors the COALESCE in the dedup index: two NULL
// references count as the same key.
func sameReference(a, b *string) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

func (r *memNotificationRepo) Create(_ context.Context, notification *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.notifications {
		if existing.RecipientID == notification.RecipientID &&
			existing.Type == notification.Type &&
			sameReference(existing.ReferenceID, notification.ReferenceID) {
			return repository.ErrDuplicateNotification
		}
	}
	r.seq++
	notification.ID = fmt.Sprintf("notification-%d", r.seq)
	notification.CreatedAt = time.Now()
	notification.UpdatedAt = notification.CreatedAt
	r.notifications[notification.ID] = *notification
	return nil
}

func (r *memNotificationRepo) GetByID(_ context.Context, id string) (*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	notification, ok := r.notifications[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &notification, nil
}

func (r *memNotificationRepo) FindByIdempotencyKey(_ context.Context, recipientID string, notifType domain.NotificationType, referenceID *string) (*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, notification := range r.notifications {
		if notification.RecipientID != recipientID || notification.Type != notifType {
			continue
		}
		if referenceID == nil && notification.ReferenceID == nil {
			n := notification
			return &n, nil
		}
		if referenceID != nil && notification.ReferenceID != nil && *referenceID == *notification.ReferenceID {
			n := notification
			return &n, nil
		}
	}
	return nil, nil
}

func (r *memNotificationRepo) ListForRecipient(_ context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Notification
	for _, notification := range r.notifications {
		if notification.RecipientID != recipientID {
			continue
		}
		if unreadOnly && notification.IsRead {
			continue
		}
		result = append(result, notification)
	}
	return result, nil
}

func (r *memNotificationRepo) UpdateStatus(_ context.Context, id string, status domain.NotificationDeliveryStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	notification, ok := r.notifications[id]
	if !ok {
		return pgx.ErrNoRows
	}
	notification.Status = status
	notification.UpdatedAt = time.Now()
	r.notifications[id] = notification
	return nil
}

func (r *memNotificationRepo) MarkRead(_ context.Context, id, recipientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	notification, ok := r.notifications[id]
	if !ok || notification.RecipientID != recipientID {
		return pgx.ErrNoRows
	}
	notification.IsRead = true
	notification.UpdatedAt = time.Now()
	r.notifications[id] = notification
	return nil
}

func (r *memNotificationRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notifications)
}

type memPreferenceRepo struct {
	mu    sync.Mutex
	prefs map[string]domain.NotificationPreference
}

func newMemPreferenceRepo() *memPreferenceRepo {
	return &memPreferenceRepo{prefs: make(map[string]domain.NotificationPreference)}
}

func prefKey(userID string, category domain.NotificationCategory) string {
	return userID + "|" + string(category)
}

func (r *memPreferenceRepo) Get(_ context.Context, userID string, category domain.NotificationCategory) (*domain.NotificationPreference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pref, ok := r.prefs[prefKey(userID, category)]
	if !ok {
		return nil, nil
	}
	return &pref, nil
}

func (r *memPreferenceRepo) Upsert(_ context.Context, pref *domain.NotificationPreference) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	pref.UpdatedAt = time.Now()
	r.prefs[prefKey(pref.UserID, pref.Category)] = *pref
	return nil
}
