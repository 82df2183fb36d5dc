package storage

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type DocumentKind string

const (
	KindHeadshot DocumentKind = "headshot"
	KindPassport DocumentKind = "passport"
)

// ObjectKey lays uploads out per user: {user_id}/{kind}-{unix_millis}.
func ObjectKey(userID uuid.UUID, kind DocumentKind, at time.Time) string {
	return fmt.Sprintf("%s/%s-%d", userID.String(), kind, at.UnixMilli())
}
