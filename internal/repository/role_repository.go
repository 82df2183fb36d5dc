package repository

import (
	"context"

	"civic-polls/internal/domain/role"
	civic_errors "civic-polls/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresRoleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &PostgresRoleRepository{db: db}
}

func (r *PostgresRoleRepository) HasRole(ctx context.Context, userID uuid.UUID, name string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&role.UserRole{}).
		Where("user_id = ? AND role = ?", userID, name).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PostgresRoleRepository) GetUserRoles(ctx context.Context, userID uuid.UUID) ([]string, error) {
	var roles []string
	err := r.db.WithContext(ctx).
		Model(&role.UserRole{}).
		Where("user_id = ?", userID).
		Order("role ASC").
		Pluck("role", &roles).Error
	if err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *PostgresRoleRepository) ListAll(ctx context.Context) ([]role.UserRole, error) {
	var roles []role.UserRole
	if err := r.db.WithContext(ctx).Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *PostgresRoleRepository) Grant(ctx context.Context, ur *role.UserRole) error {
	return translate(r.db.WithContext(ctx).Create(ur).Error)
}

func (r *PostgresRoleRepository) Revoke(ctx context.Context, userID uuid.UUID, name string) error {
	res := r.db.WithContext(ctx).
		Delete(&role.UserRole{}, "user_id = ? AND role = ?", userID, name)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return civic_errors.ErrNotFound
	}
	return nil
}
