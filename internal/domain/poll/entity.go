package poll

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Poll represents the polls table
type Poll struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;index"`
	Title       string         `gorm:"not null"`
	Description sql.NullString
	Category    Category       `gorm:"type:varchar(32);not null;default:'other';index"`
	IsActive    bool           `gorm:"not null"`
	Approved    bool           `gorm:"not null;index"`
	ApprovedBy  uuid.NullUUID  `gorm:"type:uuid"`
	ApprovedAt  sql.NullTime
	CreatedAt   time.Time      `gorm:"index"`
	UpdatedAt   time.Time

	Options []Option `gorm:"foreignKey:PollID"`
}

// Public reports whether the poll belongs in the public list.
func (p Poll) Public() bool {
	return p.Approved && p.IsActive
}

// Pending reports whether the poll is awaiting an admin decision.
func (p Poll) Pending() bool {
	return !p.Approved && p.IsActive
}

// Option represents the poll_options table. VotesCount is denormalized and
// maintained by the vote transaction.
type Option struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	PollID     uuid.UUID `gorm:"type:uuid;not null;index"`
	OptionText string    `gorm:"not null"`
	Position   int       `gorm:"not null;default:0"`
	VotesCount int64     `gorm:"not null;default:0"`
	CreatedAt  time.Time
}

// Vote represents the votes table. One row per (poll_id, user_id).
type Vote struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	PollID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_votes_poll_user"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_votes_poll_user"`
	OptionID  uuid.UUID `gorm:"type:uuid;not null;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PendingPoll is a poll awaiting approval together with its creator's name.
type PendingPoll struct {
	Poll
	CreatorName string
}

// VoteOutcome describes what a vote submission did to the user's ballot.
type VoteOutcome string

const (
	VoteRecorded  VoteOutcome = "recorded"
	VoteUpdated   VoteOutcome = "updated"
	VoteUnchanged VoteOutcome = "unchanged"
)

func (Poll) TableName() string {
	return "polls"
}

func (Option) TableName() string {
	return "poll_options"
}

func (Vote) TableName() string {
	return "votes"
}
