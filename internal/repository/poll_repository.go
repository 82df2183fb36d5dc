package repository

import (
	"context"
	"time"

	"civic-polls/internal/domain/poll"
	"civic-polls/internal/domain/profile"
	civic_errors "civic-polls/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresPollRepository struct {
	db *gorm.DB
}

func NewPollRepository(db *gorm.DB) PollRepository {
	return &PostgresPollRepository{db: db}
}

func (r *PostgresPollRepository) Create(ctx context.Context, p *poll.Poll, options []poll.Option) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Options are inserted explicitly below.
		if err := tx.Omit(clause.Associations).Create(p).Error; err != nil {
			return translate(err)
		}
		for i := range options {
			if options[i].ID == uuid.Nil {
				options[i].ID = uuid.New()
			}
			options[i].PollID = p.ID
			options[i].Position = i
		}
		if err := tx.Create(&options).Error; err != nil {
			return translate(err)
		}
		p.Options = options
		return nil
	})
}

func (r *PostgresPollRepository) GetByID(ctx context.Context, id uuid.UUID) (poll.Poll, error) {
	var p poll.Poll
	err := r.db.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("option_text ASC")
		}).
		Where("id = ?", id).
		First(&p).Error
	if err != nil {
		return poll.Poll{}, translate(err)
	}
	return p, nil
}

func (r *PostgresPollRepository) ListPublic(ctx context.Context, category poll.Category) ([]poll.Poll, error) {
	var polls []poll.Poll
	q := r.db.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("option_text ASC")
		}).
		Where("is_active = ? AND approved = ?", true, true)
	if category != "" {
		q = q.Where("category = ?", category)
	}
	if err := q.Order("created_at DESC").Find(&polls).Error; err != nil {
		return nil, err
	}
	return polls, nil
}

func (r *PostgresPollRepository) ListPending(ctx context.Context) ([]poll.PendingPoll, error) {
	type row struct {
		poll.Poll
		CreatorName string
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Table(poll.Poll{}.TableName()+" AS p").
		Select("p.*, COALESCE(pr.full_name, '') AS creator_name").
		Joins("LEFT JOIN "+profile.Profile{}.TableName()+" AS pr ON pr.id = p.user_id").
		Where("p.approved = ? AND p.is_active = ?", false, true).
		Order("p.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]poll.PendingPoll, 0, len(rows))
	ids := make([]uuid.UUID, 0, len(rows))
	for _, rw := range rows {
		ids = append(ids, rw.ID)
	}
	optionsByPoll, err := r.optionsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, rw := range rows {
		rw.Poll.Options = optionsByPoll[rw.ID]
		out = append(out, poll.PendingPoll{Poll: rw.Poll, CreatorName: rw.CreatorName})
	}
	return out, nil
}

func (r *PostgresPollRepository) optionsFor(ctx context.Context, pollIDs []uuid.UUID) (map[uuid.UUID][]poll.Option, error) {
	out := make(map[uuid.UUID][]poll.Option, len(pollIDs))
	if len(pollIDs) == 0 {
		return out, nil
	}
	var options []poll.Option
	err := r.db.WithContext(ctx).
		Where("poll_id IN ?", pollIDs).
		Order("option_text ASC").
		Find(&options).Error
	if err != nil {
		return nil, err
	}
	for _, o := range options {
		out[o.PollID] = append(out[o.PollID], o)
	}
	return out, nil
}

func (r *PostgresPollRepository) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&poll.Poll{}).
		Where("approved = ? AND is_active = ?", false, true).
		Count(&n).Error
	return n, err
}

func (r *PostgresPollRepository) Approve(ctx context.Context, id, adminID uuid.UUID) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&poll.Poll{}).
		Where("id = ? AND approved = ? AND is_active = ?", id, false, true).
		Updates(map[string]interface{}{
			"approved":    true,
			"approved_by": adminID,
			"approved_at": now,
			"updated_at":  now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return resolveMiss(r.db.WithContext(ctx), &poll.Poll{}, id)
	}
	return nil
}

func (r *PostgresPollRepository) Reject(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&poll.Poll{}).
		Where("id = ? AND approved = ? AND is_active = ?", id, false, true).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return resolveMiss(r.db.WithContext(ctx), &poll.Poll{}, id)
	}
	return nil
}

func (r *PostgresPollRepository) Withdraw(ctx context.Context, id, ownerID uuid.UUID) error {
	var p poll.Poll
	if err := r.db.WithContext(ctx).Select("id", "user_id", "is_active").Where("id = ?", id).First(&p).Error; err != nil {
		return translate(err)
	}
	if p.UserID != ownerID {
		return civic_errors.ErrForbidden
	}
	res := r.db.WithContext(ctx).
		Model(&poll.Poll{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return civic_errors.ErrInvalidTransition
	}
	return nil
}

func (r *PostgresPollRepository) GetOption(ctx context.Context, optionID uuid.UUID) (poll.Option, error) {
	var o poll.Option
	if err := r.db.WithContext(ctx).Where("id = ?", optionID).First(&o).Error; err != nil {
		return poll.Option{}, translate(err)
	}
	return o, nil
}

// CastVote inserts the ballot or re-points the existing one. The unique
// (poll_id, user_id) index serializes concurrent first votes; the row lock
// serializes concurrent changes by the same user.
func (r *PostgresPollRepository) CastVote(ctx context.Context, v poll.Vote) (poll.VoteOutcome, error) {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	var outcome poll.VoteOutcome
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "poll_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).Create(&v)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			outcome = poll.VoteRecorded
			return bumpVotes(tx, v.OptionID, 1)
		}

		var existing poll.Vote
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("poll_id = ? AND user_id = ?", v.PollID, v.UserID).
			First(&existing).Error
		if err != nil {
			return translate(err)
		}
		if existing.OptionID == v.OptionID {
			outcome = poll.VoteUnchanged
			return nil
		}

		err = tx.Model(&poll.Vote{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{
				"option_id":  v.OptionID,
				"updated_at": time.Now().UTC(),
			}).Error
		if err != nil {
			return err
		}
		if err := bumpVotes(tx, existing.OptionID, -1); err != nil {
			return err
		}
		outcome = poll.VoteUpdated
		return bumpVotes(tx, v.OptionID, 1)
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

func bumpVotes(tx *gorm.DB, optionID uuid.UUID, delta int) error {
	return tx.Model(&poll.Option{}).
		Where("id = ?", optionID).
		UpdateColumn("votes_count", gorm.Expr("GREATEST(votes_count + ?, 0)", delta)).Error
}

func (r *PostgresPollRepository) GetUserVote(ctx context.Context, pollID, userID uuid.UUID) (poll.Vote, error) {
	var v poll.Vote
	err := r.db.WithContext(ctx).
		Where("poll_id = ? AND user_id = ?", pollID, userID).
		First(&v).Error
	if err != nil {
		return poll.Vote{}, translate(err)
	}
	return v, nil
}
