package services

import (
	"context"
	"errors"

	"civic-polls/internal/domain/profile"
	"civic-polls/internal/domain/role"
	"civic-polls/internal/events"
	"civic-polls/internal/repository"
	civic_errors "civic-polls/pkg/errors"

	"github.com/google/uuid"
)

// UserService backs the admin user list and the admin role toggle.
type UserService struct {
	profiles repository.ProfileRepository
	roles    repository.RoleRepository
	authz    *AuthzService
	events   *EventPublisher
}

func NewUserService(profiles repository.ProfileRepository, roles repository.RoleRepository, authz *AuthzService, events *EventPublisher) *UserService {
	return &UserService{profiles: profiles, roles: roles, authz: authz, events: events}
}

type UserWithRoles struct {
	Profile profile.Profile
	Roles   []string
}

func (u UserWithRoles) IsAdmin() bool {
	for _, r := range u.Roles {
		if r == role.Admin {
			return true
		}
	}
	return false
}

// List returns profiles ordered by full name together with their roles.
func (s *UserService) List(ctx context.Context, search string) ([]UserWithRoles, error) {
	profiles, err := s.profiles.List(ctx, sanitizeText(search))
	if err != nil {
		return nil, err
	}
	all, err := s.roles.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	byUser := make(map[uuid.UUID][]string)
	for _, ur := range all {
		byUser[ur.UserID] = append(byUser[ur.UserID], ur.Role)
	}

	out := make([]UserWithRoles, 0, len(profiles))
	for _, p := range profiles {
		roles := byUser[p.ID]
		if roles == nil {
			roles = []string{}
		}
		out = append(out, UserWithRoles{Profile: p, Roles: roles})
	}
	return out, nil
}

func (s *UserService) GrantAdmin(ctx context.Context, actorID, userID uuid.UUID) error {
	if _, err := s.profiles.GetByID(ctx, userID); err != nil {
		return err
	}
	err := s.roles.Grant(ctx, &role.UserRole{
		UserID:    userID,
		Role:      role.Admin,
		GrantedBy: uuid.NullUUID{UUID: actorID, Valid: true},
	})
	if errors.Is(err, civic_errors.ErrAlreadyExists) {
		return civic_errors.New(civic_errors.ErrAlreadyExists, "user is already an admin")
	}
	if err != nil {
		return err
	}
	s.afterRoleChange(ctx, userID, events.ChangeInsert)
	return nil
}

// RevokeAdmin removes the admin role. Admins cannot revoke their own role,
// which keeps at least the acting admin in place.
func (s *UserService) RevokeAdmin(ctx context.Context, actorID, userID uuid.UUID) error {
	if actorID == userID {
		return civic_errors.New(civic_errors.ErrForbidden, "admins cannot revoke their own role")
	}
	err := s.roles.Revoke(ctx, userID, role.Admin)
	if errors.Is(err, civic_errors.ErrNotFound) {
		return civic_errors.New(civic_errors.ErrNotFound, "user is not an admin")
	}
	if err != nil {
		return err
	}
	s.afterRoleChange(ctx, userID, events.ChangeDelete)
	return nil
}

func (s *UserService) afterRoleChange(ctx context.Context, userID uuid.UUID, kind events.ChangeKind) {
	s.authz.Invalidate(ctx, userID)
	s.events.Change(ctx, events.TableUserRoles, kind, userID)
	s.events.User(ctx, userID, events.EventTypeRoleChanged, map[string]interface{}{
		"role":    role.Admin,
		"granted": kind == events.ChangeInsert,
	})
}
