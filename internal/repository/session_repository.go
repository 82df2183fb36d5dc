package repository

import (
	"context"

	"civic-polls/internal/domain/session"
	civic_errors "civic-polls/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresSessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &PostgresSessionRepository{db: db}
}

func (r *PostgresSessionRepository) Create(ctx context.Context, s *session.Session) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return translate(r.db.WithContext(ctx).Create(s).Error)
}

func (r *PostgresSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (session.Session, error) {
	var s session.Session
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return session.Session{}, translate(err)
	}
	return s, nil
}

func (r *PostgresSessionRepository) Update(ctx context.Context, s session.Session) error {
	res := r.db.WithContext(ctx).Save(&s)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return civic_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresSessionRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&session.Session{}).
		Where("id = ?", id).
		Update("is_revoked", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return civic_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresSessionRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&session.Session{}).
		Where("user_id = ? AND is_revoked = ?", userID, false).
		Update("is_revoked", true).Error
}
