package profile

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// VerificationStatus is the lifecycle state of a user's identity-proof submission.
type VerificationStatus string

const (
	StatusUnverified VerificationStatus = "unverified"
	StatusPending    VerificationStatus = "pending"
	StatusVerified   VerificationStatus = "verified"
	StatusRejected   VerificationStatus = "rejected"
)

// CanSubmitDocument reports whether a passport upload may move the profile to pending.
// Rejected profiles may resubmit.
func (s VerificationStatus) CanSubmitDocument() bool {
	return s == StatusUnverified || s == StatusRejected
}

func (s VerificationStatus) Valid() bool {
	switch s {
	case StatusUnverified, StatusPending, StatusVerified, StatusRejected:
		return true
	}
	return false
}

// Profile represents the profiles table. ID is the auth subject.
type Profile struct {
	ID                 uuid.UUID          `gorm:"type:uuid;primaryKey"`
	FullName           string             `gorm:"not null;default:''"`
	Phone              string             `gorm:"not null;uniqueIndex"`
	Email              sql.NullString     `gorm:"index"`
	Location           string             `gorm:"not null;default:''"`
	Occupation         string             `gorm:"not null;default:''"`
	HeadshotURL        sql.NullString
	PassportURL        sql.NullString
	VerificationStatus VerificationStatus `gorm:"type:varchar(16);not null;default:'unverified';index"`
	VerificationNotes  sql.NullString
	ReviewedBy         uuid.NullUUID      `gorm:"type:uuid"`
	ReviewedAt         sql.NullTime
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Details are the self-service fields a user edits during registration.
type Details struct {
	FullName    string
	Email       string
	Location    string
	Occupation  string
	HeadshotURL string
}

// Bucket is one row of a grouped profile count.
type Bucket struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

func (Profile) TableName() string {
	return "profiles"
}
