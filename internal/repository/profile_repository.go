package repository

import (
	"context"
	"database/sql"
	"time"

	"civic-polls/internal/domain/profile"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &PostgresProfileRepository{db: db}
}

func (r *PostgresProfileRepository) Create(ctx context.Context, p *profile.Profile) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return translate(r.db.WithContext(ctx).Create(p).Error)
}

func (r *PostgresProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (profile.Profile, error) {
	var p profile.Profile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return profile.Profile{}, translate(err)
	}
	return p, nil
}

func (r *PostgresProfileRepository) GetByPhone(ctx context.Context, phone string) (profile.Profile, error) {
	var p profile.Profile
	if err := r.db.WithContext(ctx).Where("phone = ?", phone).First(&p).Error; err != nil {
		return profile.Profile{}, translate(err)
	}
	return p, nil
}

func (r *PostgresProfileRepository) List(ctx context.Context, search string) ([]profile.Profile, error) {
	var profiles []profile.Profile
	q := r.db.WithContext(ctx).Model(&profile.Profile{})
	if search != "" {
		pattern := likePattern(search)
		q = q.Where("LOWER(full_name) LIKE ? OR LOWER(COALESCE(email, '')) LIKE ?", pattern, pattern)
	}
	if err := q.Order("full_name ASC").Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *PostgresProfileRepository) UpdateRegistration(ctx context.Context, id uuid.UUID, d profile.Details, passportURL string) error {
	updates := map[string]interface{}{
		"full_name":  d.FullName,
		"email":      nullString(d.Email),
		"location":   d.Location,
		"occupation": d.Occupation,
		"updated_at": time.Now().UTC(),
	}
	if d.HeadshotURL != "" {
		updates["headshot_url"] = d.HeadshotURL
	}

	q := r.db.WithContext(ctx).Model(&profile.Profile{}).Where("id = ?", id)
	if passportURL != "" {
		updates["passport_url"] = passportURL
		updates["verification_status"] = profile.StatusPending
		q = q.Where("verification_status IN ?", submittableStatuses())
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return resolveMiss(r.db.WithContext(ctx), &profile.Profile{}, id)
	}
	return nil
}

func (r *PostgresProfileRepository) SubmitDocument(ctx context.Context, id uuid.UUID, passportURL string) error {
	res := r.db.WithContext(ctx).
		Model(&profile.Profile{}).
		Where("id = ? AND verification_status IN ?", id, submittableStatuses()).
		Updates(map[string]interface{}{
			"passport_url":        passportURL,
			"verification_status": profile.StatusPending,
			"verification_notes":  gorm.Expr("NULL"),
			"updated_at":          time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return resolveMiss(r.db.WithContext(ctx), &profile.Profile{}, id)
	}
	return nil
}

func (r *PostgresProfileRepository) Review(ctx context.Context, id uuid.UUID, status profile.VerificationStatus, notes string, reviewer uuid.UUID) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&profile.Profile{}).
		Where("id = ? AND verification_status = ?", id, profile.StatusPending).
		Updates(map[string]interface{}{
			"verification_status": status,
			"verification_notes":  nullString(notes),
			"reviewed_by":         reviewer,
			"reviewed_at":         now,
			"updated_at":          now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return resolveMiss(r.db.WithContext(ctx), &profile.Profile{}, id)
	}
	return nil
}

func (r *PostgresProfileRepository) ListByStatus(ctx context.Context, status profile.VerificationStatus) ([]profile.Profile, error) {
	var profiles []profile.Profile
	err := r.db.WithContext(ctx).
		Where("verification_status = ?", status).
		Order("updated_at DESC").
		Find(&profiles).Error
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *PostgresProfileRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&profile.Profile{}).Count(&n).Error
	return n, err
}

func (r *PostgresProfileRepository) CountByStatus(ctx context.Context, status profile.VerificationStatus) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&profile.Profile{}).
		Where("verification_status = ?", status).
		Count(&n).Error
	return n, err
}

func (r *PostgresProfileRepository) TopLocations(ctx context.Context, limit int) ([]profile.Bucket, error) {
	return r.topBy(ctx, "location", limit)
}

func (r *PostgresProfileRepository) TopOccupations(ctx context.Context, limit int) ([]profile.Bucket, error) {
	return r.topBy(ctx, "occupation", limit)
}

// topBy groups non-empty values of column. column is never user input.
func (r *PostgresProfileRepository) topBy(ctx context.Context, column string, limit int) ([]profile.Bucket, error) {
	var buckets []profile.Bucket
	err := r.db.WithContext(ctx).
		Model(&profile.Profile{}).
		Select(column+" AS name, COUNT(*) AS count").
		Where(column+" <> ''").
		Group(column).
		Order("count DESC, name ASC").
		Limit(limit).
		Scan(&buckets).Error
	if err != nil {
		return nil, err
	}
	return buckets, nil
}

func submittableStatuses() []profile.VerificationStatus {
	return []profile.VerificationStatus{profile.StatusUnverified, profile.StatusRejected}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
