package repository

import (
	"context"
	"sync"
	"testing"

	"civic-polls/internal/domain/poll"
	"civic-polls/internal/domain/profile"
	civic_errors "civic-polls/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createPoll(t *testing.T, repo PollRepository, owner uuid.UUID, category poll.Category, texts ...string) poll.Poll {
	t.Helper()
	p := &poll.Poll{UserID: owner, Title: "Should the market open on Sundays?", Category: category, IsActive: true}
	options := make([]poll.Option, 0, len(texts))
	for _, text := range texts {
		options = append(options, poll.Option{OptionText: text})
	}
	require.NoError(t, repo.Create(context.Background(), p, options))
	return *p
}

func optionByText(t *testing.T, p poll.Poll, text string) poll.Option {
	t.Helper()
	for _, o := range p.Options {
		if o.OptionText == text {
			return o
		}
	}
	t.Fatalf("option %q not found", text)
	return poll.Option{}
}

func votesOf(t *testing.T, repo PollRepository, optionID uuid.UUID) int64 {
	t.Helper()
	o, err := repo.GetOption(context.Background(), optionID)
	require.NoError(t, err)
	return o.VotesCount
}

func TestPollCreateStoresOptions(t *testing.T) {
	repo := NewPollRepository(newTestDB(t))
	ctx := context.Background()

	created := createPoll(t, repo, uuid.New(), poll.CategoryHealth, "Yes", "No")

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, poll.CategoryHealth, got.Category)
	assert.True(t, got.Pending())
	require.Len(t, got.Options, 2)
	assert.Equal(t, "No", got.Options[0].OptionText)
	assert.Equal(t, 1, got.Options[0].Position)
	assert.Equal(t, "Yes", got.Options[1].OptionText)
	assert.Equal(t, 0, got.Options[1].Position)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, civic_errors.ErrNotFound)
}

func TestPollCreateRollsBackOnOptionFailure(t *testing.T) {
	db := newTestDB(t)
	repo := NewPollRepository(db)
	ctx := context.Background()

	dup := uuid.New()
	p := &poll.Poll{UserID: uuid.New(), Title: "Fix the bridge?", Category: poll.CategoryInfrastructure, IsActive: true}
	err := repo.Create(ctx, p, []poll.Option{{ID: dup, OptionText: "Yes"}, {ID: dup, OptionText: "No"}})
	assert.ErrorIs(t, err, civic_errors.ErrAlreadyExists)

	_, err = repo.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, civic_errors.ErrNotFound)
	var n int64
	require.NoError(t, db.Model(&poll.Option{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestCastVoteOutcomes(t *testing.T) {
	repo := NewPollRepository(newTestDB(t))
	ctx := context.Background()

	p := createPoll(t, repo, uuid.New(), poll.CategoryOther, "Yes", "No")
	yes := optionByText(t, p, "Yes")
	no := optionByText(t, p, "No")
	voter := uuid.New()

	outcome, err := repo.CastVote(ctx, poll.Vote{PollID: p.ID, UserID: voter, OptionID: yes.ID})
	require.NoError(t, err)
	assert.Equal(t, poll.VoteRecorded, outcome)
	assert.Equal(t, int64(1), votesOf(t, repo, yes.ID))

	outcome, err = repo.CastVote(ctx, poll.Vote{PollID: p.ID, UserID: voter, OptionID: yes.ID})
	require.NoError(t, err)
	assert.Equal(t, poll.VoteUnchanged, outcome)
	assert.Equal(t, int64(1), votesOf(t, repo, yes.ID))

	outcome, err = repo.CastVote(ctx, poll.Vote{PollID: p.ID, UserID: voter, OptionID: no.ID})
	require.NoError(t, err)
	assert.Equal(t, poll.VoteUpdated, outcome)
	assert.Equal(t, int64(0), votesOf(t, repo, yes.ID))
	assert.Equal(t, int64(1), votesOf(t, repo, no.ID))

	outcome, err = repo.CastVote(ctx, poll.Vote{PollID: p.ID, UserID: uuid.New(), OptionID: no.ID})
	require.NoError(t, err)
	assert.Equal(t, poll.VoteRecorded, outcome)
	assert.Equal(t, int64(2), votesOf(t, repo, no.ID))

	ballot, err := repo.GetUserVote(ctx, p.ID, voter)
	require.NoError(t, err)
	assert.Equal(t, no.ID, ballot.OptionID)

	_, err = repo.GetUserVote(ctx, p.ID, uuid.New())
	assert.ErrorIs(t, err, civic_errors.ErrNotFound)
	_, err = repo.GetOption(ctx, uuid.New())
	assert.ErrorIs(t, err, civic_errors.ErrNotFound)
}

func TestCastVoteConcurrentBallotsKeepOneVote(t *testing.T) {
	db := newTestDB(t)
	repo := NewPollRepository(db)
	ctx := context.Background()

	p := createPoll(t, repo, uuid.New(), poll.CategoryOther, "Yes", "No")
	voter := uuid.New()

	const workers = 8
	outcomes := make(chan poll.VoteOutcome, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		option := p.Options[i%2].ID
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := repo.CastVote(ctx, poll.Vote{PollID: p.ID, UserID: voter, OptionID: option})
			assert.NoError(t, err)
			outcomes <- outcome
		}()
	}
	wg.Wait()
	close(outcomes)

	recorded := 0
	for o := range outcomes {
		if o == poll.VoteRecorded {
			recorded++
		}
	}
	assert.Equal(t, 1, recorded)

	var ballots int64
	require.NoError(t, db.Model(&poll.Vote{}).Where("poll_id = ?", p.ID).Count(&ballots).Error)
	assert.Equal(t, int64(1), ballots)
	assert.Equal(t, int64(1), votesOf(t, repo, p.Options[0].ID)+votesOf(t, repo, p.Options[1].ID))
}

func TestApproveAndRejectTransitions(t *testing.T) {
	repo := NewPollRepository(newTestDB(t))
	ctx := context.Background()
	admin := uuid.New()

	assert.ErrorIs(t, repo.Approve(ctx, uuid.New(), admin), civic_errors.ErrNotFound)
	assert.ErrorIs(t, repo.Reject(ctx, uuid.New()), civic_errors.ErrNotFound)

	approved := createPoll(t, repo, uuid.New(), poll.CategoryEconomy, "Yes", "No")
	rejected := createPoll(t, repo, uuid.New(), poll.CategoryEconomy, "Yes", "No")

	pending, err := repo.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pending)

	require.NoError(t, repo.Approve(ctx, approved.ID, admin))
	got, err := repo.GetByID(ctx, approved.ID)
	require.NoError(t, err)
	assert.True(t, got.Public())
	assert.Equal(t, uuid.NullUUID{UUID: admin, Valid: true}, got.ApprovedBy)
	assert.True(t, got.ApprovedAt.Valid)

	assert.ErrorIs(t, repo.Approve(ctx, approved.ID, admin), civic_errors.ErrInvalidTransition)
	assert.ErrorIs(t, repo.Reject(ctx, approved.ID), civic_errors.ErrInvalidTransition)

	require.NoError(t, repo.Reject(ctx, rejected.ID))
	got, err = repo.GetByID(ctx, rejected.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.False(t, got.Approved)

	assert.ErrorIs(t, repo.Reject(ctx, rejected.ID), civic_errors.ErrInvalidTransition)
	assert.ErrorIs(t, repo.Approve(ctx, rejected.ID, admin), civic_errors.ErrInvalidTransition)

	pending, err = repo.CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestWithdrawPoll(t *testing.T) {
	repo := NewPollRepository(newTestDB(t))
	ctx := context.Background()
	owner := uuid.New()

	p := createPoll(t, repo, owner, poll.CategoryOther, "Yes", "No")

	assert.ErrorIs(t, repo.Withdraw(ctx, uuid.New(), owner), civic_errors.ErrNotFound)
	assert.ErrorIs(t, repo.Withdraw(ctx, p.ID, uuid.New()), civic_errors.ErrForbidden)
	require.NoError(t, repo.Withdraw(ctx, p.ID, owner))
	assert.ErrorIs(t, repo.Withdraw(ctx, p.ID, owner), civic_errors.ErrInvalidTransition)

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func TestListPendingAndPublic(t *testing.T) {
	db := newTestDB(t)
	repo := NewPollRepository(db)
	profiles := NewProfileRepository(db)
	ctx := context.Background()

	creator := &profile.Profile{FullName: "Ada Obi", Phone: "+15551230001"}
	require.NoError(t, profiles.Create(ctx, creator))

	named := createPoll(t, repo, creator.ID, poll.CategoryEducation, "Yes", "No")
	orphan := createPoll(t, repo, uuid.New(), poll.CategoryHealth, "Agree", "Disagree")

	pending, err := repo.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	byID := map[uuid.UUID]poll.PendingPoll{}
	for _, pp := range pending {
		byID[pp.ID] = pp
	}
	assert.Equal(t, "Ada Obi", byID[named.ID].CreatorName)
	assert.Equal(t, "", byID[orphan.ID].CreatorName)
	require.Len(t, byID[orphan.ID].Options, 2)
	assert.Equal(t, "Agree", byID[orphan.ID].Options[0].OptionText)

	public, err := repo.ListPublic(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, public)

	require.NoError(t, repo.Approve(ctx, named.ID, uuid.New()))
	require.NoError(t, repo.Approve(ctx, orphan.ID, uuid.New()))

	public, err = repo.ListPublic(ctx, "")
	require.NoError(t, err)
	assert.Len(t, public, 2)

	public, err = repo.ListPublic(ctx, poll.CategoryEducation)
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, named.ID, public[0].ID)
	assert.Len(t, public[0].Options, 2)

	pending, err = repo.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestVoteCounterCannotGoNegative(t *testing.T) {
	db := newTestDB(t)
	repo := NewPollRepository(db)

	p := createPoll(t, repo, uuid.New(), poll.CategoryOther, "Yes", "No")
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return bumpVotes(tx, p.Options[0].ID, -1)
	}))
	assert.Zero(t, votesOf(t, repo, p.Options[0].ID))
}
