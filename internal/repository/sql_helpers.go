package repository

import (
	"errors"
	"fmt"
	"strings"

	civic_errors "civic-polls/pkg/errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}
	return false
}

// translate maps gorm/driver errors onto the shared sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return civic_errors.ErrNotFound
	case isUniqueViolation(err):
		return civic_errors.ErrAlreadyExists
	default:
		return err
	}
}

// likePattern escapes LIKE wildcards in user input and wraps it for a substring match.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return fmt.Sprintf("%%%s%%", r.Replace(strings.ToLower(term)))
}

// resolveMiss decides why a conditional update touched no rows: the row is
// missing, or it exists in a state the update does not apply to.
func resolveMiss(db *gorm.DB, model interface{}, id interface{}) error {
	var count int64
	if err := db.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return civic_errors.ErrNotFound
	}
	return civic_errors.ErrInvalidTransition
}
