package repository

import (
	"context"

	"civic-polls/internal/domain/subscriber"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresSubscriberRepository struct {
	db *gorm.DB
}

func NewSubscriberRepository(db *gorm.DB) SubscriberRepository {
	return &PostgresSubscriberRepository{db: db}
}

func (r *PostgresSubscriberRepository) Create(ctx context.Context, s *subscriber.EmailSubscriber) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return translate(r.db.WithContext(ctx).Create(s).Error)
}

func (r *PostgresSubscriberRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&subscriber.EmailSubscriber{}).Count(&n).Error
	return n, err
}
