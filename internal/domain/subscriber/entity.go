package subscriber

import (
	"time"

	"github.com/google/uuid"
)

// EmailSubscriber represents the email_subscribers table
type EmailSubscriber struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email     string    `gorm:"not null;uniqueIndex"`
	CreatedAt time.Time
}

func (EmailSubscriber) TableName() string {
	return "email_subscribers"
}
