package session

import (
	"time"

	"github.com/google/uuid"
)

// Session represents the user_sessions table
type Session struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID           uuid.UUID `gorm:"type:uuid;not null;index"`
	RefreshTokenHash string    `gorm:"not null"`
	UserAgent        string
	ClientIP         string
	ExpiresAt        time.Time
	IsRevoked        bool `gorm:"not null;default:false"`
	CreatedAt        time.Time
}

func (s Session) Active(now time.Time) bool {
	return !s.IsRevoked && now.Before(s.ExpiresAt)
}

func (Session) TableName() string {
	return "user_sessions"
}
