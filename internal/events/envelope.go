package events

import (
	"encoding/json"
	"time"
)

// Change is published on changes:{table} after a successful mutation.
type Change struct {
	Table string     `json:"table"`
	Event ChangeKind `json:"event"`
	ID    string     `json:"id"`
	At    time.Time  `json:"at"`
}

// UserEvent is published on user:{id} and only reaches that user's connections.
type UserEvent struct {
	Type    string          `json:"type"`
	UserID  string          `json:"user_id"`
	Payload json.RawMessage `json:"payload,omitempty"`
	At      time.Time       `json:"at"`
}
