package middleware

import (
	"context"
	"net/http"
	"strings"

	"civic-polls/internal/domain/role"
	"civic-polls/internal/services"
	"civic-polls/internal/transport/httpdto"
	"civic-polls/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Authenticator is implemented by services.AuthService.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (services.Principal, error)
}

// AuthzResolver is implemented by services.AuthzService.
type AuthzResolver interface {
	Context(ctx context.Context, userID uuid.UUID) (role.Context, error)
}

// AuthMiddleware requires a valid bearer token and attaches the user, the
// session and the user's authorization context to the request.
func AuthMiddleware(auth Authenticator, authz AuthzResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, err := authenticate(c, auth, authz, extractBearer(c))
		if err != nil {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
			c.Abort()
			return
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// OptionalAuth attaches the session when a valid token is sent and lets
// anonymous requests through unchanged.
func OptionalAuth(auth Authenticator, authz AuthzResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := extractBearer(c); token != "" {
			if ctx, err := authenticate(c, auth, authz, token); err == nil {
				c.Request = c.Request.WithContext(ctx)
			}
		}
		c.Next()
	}
}

// RequireAdmin must run after AuthMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !services.IsAdminContext(c.Request.Context()) {
			c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("admin access required", "FORBIDDEN"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func authenticate(c *gin.Context, auth Authenticator, authz AuthzResolver, token string) (context.Context, error) {
	ctx := c.Request.Context()
	principal, err := auth.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	authzCtx, err := authz.Context(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}

	ctx = services.WithUserSessionContext(ctx, principal.UserID, principal.SessionID)
	ctx = services.WithAuthzContext(ctx, authzCtx)
	return context.WithValue(ctx, logger.UserIdKey, principal.UserID.String()), nil
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
