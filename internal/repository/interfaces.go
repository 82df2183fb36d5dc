package repository

import (
	"context"

	"github.com/google/uuid"

	"civic-polls/internal/domain/poll"
	"civic-polls/internal/domain/profile"
	"civic-polls/internal/domain/role"
	"civic-polls/internal/domain/session"
	"civic-polls/internal/domain/subscriber"
)

type ProfileRepository interface {
	Create(ctx context.Context, p *profile.Profile) error
	GetByID(ctx context.Context, id uuid.UUID) (profile.Profile, error)
	GetByPhone(ctx context.Context, phone string) (profile.Profile, error)
	List(ctx context.Context, search string) ([]profile.Profile, error)

	// UpdateRegistration stores the self-service fields. A non-empty passportURL
	// also moves the profile to pending, but only from a status that admits a
	// document submission; otherwise ErrInvalidTransition.
	UpdateRegistration(ctx context.Context, id uuid.UUID, d profile.Details, passportURL string) error
	SubmitDocument(ctx context.Context, id uuid.UUID, passportURL string) error
	// Review applies an admin decision to a pending profile.
	Review(ctx context.Context, id uuid.UUID, status profile.VerificationStatus, notes string, reviewer uuid.UUID) error
	ListByStatus(ctx context.Context, status profile.VerificationStatus) ([]profile.Profile, error)

	Count(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context, status profile.VerificationStatus) (int64, error)
	TopLocations(ctx context.Context, limit int) ([]profile.Bucket, error)
	TopOccupations(ctx context.Context, limit int) ([]profile.Bucket, error)
}

type PollRepository interface {
	// Create inserts the poll and its options in one transaction.
	Create(ctx context.Context, p *poll.Poll, options []poll.Option) error
	GetByID(ctx context.Context, id uuid.UUID) (poll.Poll, error)
	ListPublic(ctx context.Context, category poll.Category) ([]poll.Poll, error)
	ListPending(ctx context.Context) ([]poll.PendingPoll, error)
	CountPending(ctx context.Context) (int64, error)

	Approve(ctx context.Context, id, adminID uuid.UUID) error
	Reject(ctx context.Context, id uuid.UUID) error
	Withdraw(ctx context.Context, id, ownerID uuid.UUID) error

	GetOption(ctx context.Context, optionID uuid.UUID) (poll.Option, error)
	// CastVote upserts the (poll, user) ballot and keeps votes_count in step.
	CastVote(ctx context.Context, v poll.Vote) (poll.VoteOutcome, error)
	GetUserVote(ctx context.Context, pollID, userID uuid.UUID) (poll.Vote, error)
}

type RoleRepository interface {
	HasRole(ctx context.Context, userID uuid.UUID, r string) (bool, error)
	GetUserRoles(ctx context.Context, userID uuid.UUID) ([]string, error)
	ListAll(ctx context.Context) ([]role.UserRole, error)
	Grant(ctx context.Context, ur *role.UserRole) error
	Revoke(ctx context.Context, userID uuid.UUID, r string) error
}

type SubscriberRepository interface {
	Create(ctx context.Context, s *subscriber.EmailSubscriber) error
	Count(ctx context.Context) (int64, error)
}

type SessionRepository interface {
	Create(ctx context.Context, s *session.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (session.Session, error)
	Update(ctx context.Context, s session.Session) error
	Revoke(ctx context.Context, id uuid.UUID) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
}
