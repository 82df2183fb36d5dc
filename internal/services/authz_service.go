package services

import (
	"context"

	"civic-polls/internal/domain/role"
	"civic-polls/internal/repository"
	"civic-polls/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuthzService resolves the authorization context of a user. The result is
// cached so admin-gated routes do not repeat the role lookup per request.
type AuthzService struct {
	roles repository.RoleRepository
	cache AuthzCache
	log   *logger.Logger
}

func NewAuthzService(roles repository.RoleRepository, cache AuthzCache, log *logger.Logger) *AuthzService {
	return &AuthzService{roles: roles, cache: cache, log: log}
}

func (s *AuthzService) Context(ctx context.Context, userID uuid.UUID) (role.Context, error) {
	cacheable := false
	var gen int64
	if s.cache != nil {
		cached, err := s.cache.GetAuthz(ctx, userID)
		if err != nil {
			s.log.Ctx(ctx).Warn("authz cache read failed", zap.Error(err))
		} else if cached != nil {
			return *cached, nil
		}
		// The generation must be read before the roles, so a revoke that
		// lands in between makes the write below a no-op.
		if gen, err = s.cache.AuthzGeneration(ctx, userID); err != nil {
			s.log.Ctx(ctx).Warn("authz generation read failed", zap.Error(err))
		} else {
			cacheable = true
		}
	}

	roles, err := s.roles.GetUserRoles(ctx, userID)
	if err != nil {
		return role.Context{}, err
	}
	authz := role.Context{UserID: userID, Roles: roles}
	if authz.Roles == nil {
		authz.Roles = []string{}
	}

	if cacheable {
		stored, err := s.cache.SetAuthz(ctx, authz, gen)
		if err != nil {
			s.log.Ctx(ctx).Warn("authz cache write failed", zap.Error(err))
		} else if !stored {
			s.log.Ctx(ctx).Debug("authz changed during lookup, not cached", zap.String("user_id", userID.String()))
		}
	}
	return authz, nil
}

// Invalidate drops the cached context so the next request recomputes it.
func (s *AuthzService) Invalidate(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAuthz(ctx, userID); err != nil {
		s.log.Ctx(ctx).Warn("authz cache invalidate failed", zap.Error(err))
	}
}
