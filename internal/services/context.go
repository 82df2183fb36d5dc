package services

import (
	"context"

	"civic-polls/internal/domain/role"

	"github.com/google/uuid"
)

type ctxKey string

var userIDKey ctxKey = "user_id"
var sessionIDKey ctxKey = "session_id"
var authzKey ctxKey = "authz"

func WithUserSessionContext(ctx context.Context, userID, sessionID uuid.UUID) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	value := ctx.Value(userIDKey)
	if value == nil {
		return uuid.Nil, false
	}
	userID, ok := value.(uuid.UUID)
	return userID, ok
}

func SessionIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	value := ctx.Value(sessionIDKey)
	if value == nil {
		return uuid.Nil, false
	}
	sessionID, ok := value.(uuid.UUID)
	return sessionID, ok
}

// WithAuthzContext attaches the roles resolved for the session user.
func WithAuthzContext(ctx context.Context, authz role.Context) context.Context {
	return context.WithValue(ctx, authzKey, authz)
}

func AuthzFromContext(ctx context.Context) (role.Context, bool) {
	authz, ok := ctx.Value(authzKey).(role.Context)
	return authz, ok
}

// IsAdminContext reports whether the request context carries the admin role.
func IsAdminContext(ctx context.Context) bool {
	authz, ok := AuthzFromContext(ctx)
	return ok && authz.IsAdmin()
}
