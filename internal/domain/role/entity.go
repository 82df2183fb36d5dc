package role

import (
	"time"

	"github.com/google/uuid"
)

const Admin = "admin"

// UserRole represents the user_roles table
type UserRole struct {
	UserID    uuid.UUID     `gorm:"type:uuid;primaryKey"`
	Role      string        `gorm:"type:varchar(32);primaryKey"`
	GrantedBy uuid.NullUUID `gorm:"type:uuid"`
	CreatedAt time.Time
}

func (UserRole) TableName() string {
	return "user_roles"
}

// Context is the authorization context of a signed-in user, computed once
// and shared by every admin-gated route.
type Context struct {
	UserID uuid.UUID `json:"user_id"`
	Roles  []string  `json:"roles"`
}

func (c Context) Has(r string) bool {
	for _, have := range c.Roles {
		if have == r {
			return true
		}
	}
	return false
}

func (c Context) IsAdmin() bool {
	return c.Has(Admin)
}
