package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/kingrain94/entitlement-api/internal/repository"
)

// translateError maps gorm lookup misses to repository.ErrNotFound
func translateError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repository.ErrNotFound
	}
	return err
}

// notDeleted excludes soft-deleted tenants
func notDeleted(db *gorm.DB) *gorm.DB {
	return db.Where("is_deleted = ?", false)
}
