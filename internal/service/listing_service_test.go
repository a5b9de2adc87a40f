package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/listing-service/internal/config"
	"github.com/spec-kit/listing-service/internal/domain"
	"github.com/spec-kit/listing-service/internal/events"
	"github.com/spec-kit/listing-service/internal/service"
	apperrors "github.com/spec-kit/listing-service/pkg/util"
)

type listingFixture struct {
	svc      *service.ListingService
	trust    *service.TrustService
	trustRep *memTrustRepo
	listings *memListingRepo
	votes    *memVoteRepo
	events   *recordingDispatcher
}

type recordingDispatcher struct {
	mu       sync.Mutex
	recorded []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recorded = append(d.recorded, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) byType(eventType events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var result []events.Event
	for _, event := range d.recorded {
		if event.Type == eventType {
			result = append(result, event)
		}
	}
	return result
}

func newListingFixture() *listingFixture {
	trustRepo := newMemTrustRepo()
	trust := service.NewTrustService(trustRepo, nil, config.DefaultTrustPolicy(), zap.NewNop())
	listings := newMemListingRepo()
	votes := newMemVoteRepo()
	dispatcher := &recordingDispatcher{}

	svc := service.NewListingService(service.ListingDependencies{
		ListingRepo: listings,
		VoteRepo:    votes,
		Trust:       trust,
		TxManager:   &memTxManager{listings: listings, votes: votes, trust: trustRepo},
		Dispatcher:  dispatcher,
		Logger:      zap.NewNop(),
	})
	return &listingFixture{
		svc:      svc,
		trust:    trust,
		trustRep: trustRepo,
		listings: listings,
		votes:    votes,
		events:   dispatcher,
	}
}

func (f *listingFixture) createListing(t *testing.T, ownerID string) *domain.Listing {
	t.Helper()
	listing, err := f.svc.Create(context.Background(), ownerID, domain.RoleUser, service.ListingCreateInput{
		Title:       "garden tools",
		Description: "lightly used",
	})
	require.NoError(t, err)
	return listing
}

func TestCreateStartsPendingAndRewardsOwner(t *testing.T) {
	t.Parallel()

	f := newListingFixture()
	ctx := context.Background()

	listing := f.createListing(t, "owner-1")
	assert.Equal(t, domain.ApprovalStatusPending, listing.Status)

	score, err := f.trust.ScoreFor(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, f.trust.Policy().ListingCreated, score)

	assert.Len(t, f.events.byType(events.EventListingCreated), 1)
}

func TestCreateRequiresTitle(t *testing.T) {
	t.Parallel()

	f := newListingFixture()

	_, err := f.svc.Create(context.Background(), "owner-1", domain.RoleUser, service.ListingCreateInput{Title: "   "})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestApproveRewardsOwnerOnce(t *testing.T) {
	t.Parallel()

	f := newListingFixture()
	ctx := context.Background()
	listing := f.createListing(t, "owner-1")

	approved, err := f.svc.Approve(ctx, "mod-1", domain.RoleAdmin, service.VerifyInput{ListingID: listing.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusApproved, approved.Status)
	require.NotNil(t, approved.DecidedAt)

	// A second decision on the same listing is a conflict and grants
	// nothing further.
	_, err = f.svc.Approve(ctx, "mod-2", domain.RoleAdmin, service.VerifyInput{ListingID: listing.ID})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))

	_, err = f.svc.Reject(ctx, "mod-2", domain.RoleAdmin, service.VerifyInput{ListingID: listing.ID})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))

	entries := f.trustRep.entriesFor("owner-1", domain.TrustListingApproved)
	assert.Len(t, entries, 1)

	score, err := f.trust.ScoreFor(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, f.trust.Policy().ListingCreated+f.trust.Policy().ListingApproved, score)
}

func TestRejectRecordsNotesAndPenalty(t *testing.T) {
	t.Parallel()

	f := newListingFixture()
	ctx := context.Background()
	listing := f.createListing(t, "owner-1")

	notes := "incomplete description"
	rejected, err := f.svc.Reject(ctx, "mod-1", domain.RoleAdmin, service.VerifyInput{ListingID: listing.ID, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusRejected, rejected.Status)
	require.NotNil(t, rejected.ModeratorNotes)
	assert.Equal(t, notes, *rejected.ModeratorNotes)

	score, err := f.trust.ScoreFor(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, f.trust.Policy().ListingCreated+f.trust.Policy().ListingRejected, score)

	assert.Len(t, f.events.byType(events.EventListingRejected), 1)
}

func TestDecisionRequiresModeratorRole(t *testing.T) {
	t.Parallel()

	f := newListingFixture()
	ctx := context.Background()
	listing := f.createListing(t, "owner-1")

	for _, role := range []domain.Role{domain.RoleUser, domain.RoleAuthor} {
		_, err := f.svc.Reject(ctx, "actor-1", role, service.VerifyInput{ListingID: listing.ID})
		require.Error(t, err, "role %s", role)
		assert.True(t, apperrors.IsCode(err, "PERMISSION_DENIED"))
	}

	// The listing stays PENDING and the owner keeps only the creation
	// points.
	current, err := f.svc.GetByID(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusPending, current.Status)

	score, err := f.trust.ScoreFor(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, f.trust.Policy().ListingCreated, score)
}

func TestConcurrentDecisionsOnlyOneLands(t *testing.T) {
	t.Parallel()

	f := newListingFixture()
	ctx := context.Background()
	listing := f.createListing(t, "owner-1")

	const moderators = 8
	var wg sync.WaitGroup
	wg.Add(moderators)
	errs := make([]error, moderators)
	for i := 0; i < moderators; i++ {
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, errs[i] = f.svc.Approve(ctx, "mod", domain.RoleAdmin, service.VerifyInput{ListingID: listing.ID})
			} else {
				_, errs[i] = f.svc.Reject(ctx, "mod", domain.RoleAdmin, service.VerifyInput{ListingID: listing.ID})
			}
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, apperrors.IsCode(err, "CONFLICT"))
		}
	}
	assert.Equal(t, 1, succeeded)

	current, err := f.svc.GetByID(ctx, listing.ID)
	require.NoError(t, err)
	assert.True(t, current.Status.Terminal())

	decisions := len(f.trustRep.entriesFor("owner-1", domain.TrustListingApproved)) +
		len(f.trustRep.entriesFor("owner-1", domain.TrustListingRejected))
	assert.Equal(t, 1, decisions)
}

// A trust store failure mid-decision must roll back the status change
// too; otherwise the listing would sit terminal without its ledger
// entry and the retry would only ever see a conflict.
func TestApproveRollsBackWhenTrustAppendFails(t *testing.T) {
	t.Parallel()

	f := newListingFixture()
	ctx := context.Background()
	p := f.trust.Policy()
	listing := f.createListing(t, "owner-1")

	outages := 1
	f.trustRep.setFailAppend(func(action *domain.TrustAction) error {
		if action.Kind == domain.TrustListingApproved && outages > 0 {
			outages--
			return errors.New("trust store down")
		}
		return nil
	})

	_, err := f.svc.Approve(ctx, "mod-1", domain.RoleAdmin, service.VerifyInput{ListingID: listing.ID})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "DEPENDENCY_UNAVAILABLE"))

	stored, err := f.svc.GetByID(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusPending, stored.Status)
	assert.Empty(t, f.trustRep.entriesFor("owner-1", domain.TrustListingApproved))

	// The retry completes the decision normally.
	approved, err := f.svc.Approve(ctx, "mod-1", domain.RoleAdmin, service.VerifyInput{ListingID: listing.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusApproved, approved.Status)

	assert.Len(t, f.trustRep.entriesFor("owner-1", domain.TrustListingApproved), 1)
	assert.Len(t, f.events.byType(events.EventListingApproved), 1)

	score, err := f.trust.ScoreFor(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, p.ListingCreated+p.ListingApproved, score)
}

func TestVoteRejectsSelfVote(t *testing.T) {
	t.Parallel()

	f := newListingFixture()
	listing := f.createListing(t, "owner-1")

	_, err := f.svc.Vote(context.Background(), "owner-1", domain.RoleUser, service.VoteInput{ListingID: listing.ID, Value: true})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestVoteGrantsVoterAndOwnerPoints(t *testing.T) {
	t.Parallel()

	f := newListingFixture()
	ctx := context.Background()
	listing := f.createListing(t, "owner-1")
	p := f.trust.Policy()

	_, err := f.svc.Vote(ctx, "voter-1", domain.RoleUser, service.VoteInput{ListingID: listing.ID, Value: true})
	require.NoError(t, err)

	voterScore, err := f.trust.ScoreFor(ctx, "voter-1")
	require.NoError(t, err)
	assert.Equal(t, p.UpvoteCast, voterScore)

	ownerScore, err := f.trust.ScoreFor(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, p.ListingCreated+p.ReceivedUpvote, ownerScore)

	up, down, err := f.svc.VoteCounts(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, up)
	assert.Zero(t, down)
}

func TestRevoteNetsByDifference(t *testing.T) {
	t.Parallel()

	f := newListingFixture()
	ctx := context.Background()
	listing := f.createListing(t, "owner-1")
	p := f.trust.Policy()

	_, err := f.svc.Vote(ctx, "voter-1", domain.RoleUser, service.VoteInput{ListingID: listing.ID, Value: true})
	require.NoError(t, err)
	_, err = f.svc.Vote(ctx, "voter-1", domain.RoleUser, service.VoteInput{ListingID: listing.ID, Value: false})
	require.NoError(t, err)

	// The upvote is fully reversed before the downvote applies; net
	// effect equals a single downvote.
	voterScore, err := f.trust.ScoreFor(ctx, "voter-1")
	require.NoError(t, err)
	assert.Equal(t, p.DownvoteCast, voterScore)

	ownerScore, err := f.trust.ScoreFor(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, p.ListingCreated+p.ReceivedDownvote, ownerScore)

	up, down, err := f.svc.VoteCounts(ctx, listing.ID)
	require.NoError(t, err)
	assert.Zero(t, up)
	assert.Equal(t, 1, down)
}

func TestSameVoteTwiceIsNoOp(t *testing.T) {
	t.Parallel()

	f := newListingFixture()
	ctx := context.Background()
	listing := f.createListing(t, "owner-1")
	p := f.trust.Policy()

	_, err := f.svc.Vote(ctx, "voter-1", domain.RoleUser, service.VoteInput{ListingID: listing.ID, Value: true})
	require.NoError(t, err)
	_, err = f.svc.Vote(ctx, "voter-1", domain.RoleUser, service.VoteInput{ListingID: listing.ID, Value: true})
	require.NoError(t, err)

	voterScore, err := f.trust.ScoreFor(ctx, "voter-1")
	require.NoError(t, err)
	assert.Equal(t, p.UpvoteCast, voterScore)

	// Only the first vote published an event.
	assert.Len(t, f.events.byType(events.EventListingVoted), 1)
}

func TestConcurrentRevotesStayConsistent(t *testing.T) {
	t.Parallel()

	f := newListingFixture()
	ctx := context.Background()
	listing := f.createListing(t, "owner-1")
	p := f.trust.Policy()

	const flips = 10
	var wg sync.WaitGroup
	wg.Add(flips)
	for i := 0; i < flips; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Vote(ctx, "voter-1", domain.RoleUser, service.VoteInput{ListingID: listing.ID, Value: i%2 == 0})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// Whatever the interleaving, the ledger nets to exactly one live
	// stance.
	vote, err := f.votes.Get(ctx, listing.ID, "voter-1")
	require.NoError(t, err)
	require.NotNil(t, vote)

	expectedVoter := p.UpvoteCast
	expectedOwner := p.ListingCreated + p.ReceivedUpvote
	if !vote.Value {
		expectedVoter = p.DownvoteCast
		expectedOwner = p.ListingCreated + p.ReceivedDownvote
	}

	voterScore, err := f.trust.ScoreFor(ctx, "voter-1")
	require.NoError(t, err)
	assert.Equal(t, expectedVoter, voterScore)

	ownerScore, err := f.trust.ScoreFor(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, expectedOwner, ownerScore)
}

// A failed ledger append during a re-vote must also roll back the
// stance upsert. If the new stance landed alone, the retry would be
// swallowed as a same-stance no-op and the ledger could never catch up.
func TestRevoteRollsBackWhenTrustAppendFails(t *testing.T) {
	t.Parallel()

	f := newListingFixture()
	ctx := context.Background()
	p := f.trust.Policy()
	listing := f.createListing(t, "owner-1")

	_, err := f.svc.Vote(ctx, "voter-1", domain.RoleUser, service.VoteInput{ListingID: listing.ID, Value: true})
	require.NoError(t, err)

	// Fail the owner-side reversal, the second of the four appends a
	// replacement vote makes.
	outages := 1
	f.trustRep.setFailAppend(func(action *domain.TrustAction) error {
		if action.Kind == domain.TrustListingReceivedUpvote && action.Delta < 0 && outages > 0 {
			outages--
			return errors.New("trust store down")
		}
		return nil
	})

	_, err = f.svc.Vote(ctx, "voter-1", domain.RoleUser, service.VoteInput{ListingID: listing.ID, Value: false})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "DEPENDENCY_UNAVAILABLE"))

	// The stored stance still reflects the prior vote.
	up, down, err := f.svc.VoteCounts(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, up)
	assert.Zero(t, down)

	voterScore, err := f.trust.ScoreFor(ctx, "voter-1")
	require.NoError(t, err)
	assert.Equal(t, p.UpvoteCast, voterScore)

	// The retry is a real replacement, not a no-op, and nets cleanly.
	_, err = f.svc.Vote(ctx, "voter-1", domain.RoleUser, service.VoteInput{ListingID: listing.ID, Value: false})
	require.NoError(t, err)

	voterScore, err = f.trust.ScoreFor(ctx, "voter-1")
	require.NoError(t, err)
	assert.Equal(t, p.DownvoteCast, voterScore)

	ownerScore, err := f.trust.ScoreFor(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, p.ListingCreated+p.ReceivedDownvote, ownerScore)

	up, down, err = f.svc.VoteCounts(ctx, listing.ID)
	require.NoError(t, err)
	assert.Zero(t, up)
	assert.Equal(t, 1, down)
}

func TestVoteOnMissingListing(t *testing.T) {
	t.Parallel()

	f := newListingFixture()

	_, err := f.svc.Vote(context.Background(), "voter-1", domain.RoleUser, service.VoteInput{ListingID: "nope", Value: true})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

// TestListingLifecycleScenario walks a listing from creation through
// moderation and community voting, checking every score along the way.
func TestListingLifecycleScenario(t *testing.T) {
	t.Parallel()

	f := newListingFixture()
	ctx := context.Background()
	p := f.trust.Policy()

	listing := f.createListing(t, "alice")

	_, err := f.svc.Approve(ctx, "mora", domain.RoleAdmin, service.VerifyInput{ListingID: listing.ID})
	require.NoError(t, err)

	_, err = f.svc.Vote(ctx, "bob", domain.RoleUser, service.VoteInput{ListingID: listing.ID, Value: true})
	require.NoError(t, err)
	_, err = f.svc.Vote(ctx, "carol", domain.RoleUser, service.VoteInput{ListingID: listing.ID, Value: true})
	require.NoError(t, err)
	_, err = f.svc.Vote(ctx, "carol", domain.RoleUser, service.VoteInput{ListingID: listing.ID, Value: false})
	require.NoError(t, err)

	aliceScore, err := f.trust.ScoreFor(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t,
		p.ListingCreated+p.ListingApproved+p.ReceivedUpvote+p.ReceivedDownvote,
		aliceScore)

	bobScore, err := f.trust.ScoreFor(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, p.UpvoteCast, bobScore)

	carolScore, err := f.trust.ScoreFor(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, p.DownvoteCast, carolScore)

	up, down, err := f.svc.VoteCounts(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, up)
	assert.Equal(t, 1, down)
}
