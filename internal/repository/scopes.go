package repository

import (
	"fmt"
	"strings"

	"erp/internal/apperror"

	"gorm.io/gorm"
)

// Visibility selects whether soft-deleted rows take part in a read.
type Visibility int

const (
	VisibleOnly Visibility = iota
	IncludeDeleted
)

// visible filters out soft-deleted rows unless v asks for them. Every read on
// a soft-deletable table goes through it.
func visible(v Visibility) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if v == IncludeDeleted {
			return db
		}
		return db.Where("is_deleted = ?", false)
	}
}

func paginate(page, limit int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if page < 1 {
			page = 1
		}
		if limit < 1 {
			limit = 20
		}
		return db.Offset((page - 1) * limit).Limit(limit)
	}
}

// likePattern builds a case-insensitive LIKE argument; callers compare against LOWER(col).
func likePattern(search string) string {
	return "%" + strings.ToLower(strings.TrimSpace(search)) + "%"
}

// casResult turns the outcome of a version-checked UPDATE into an error.
func casResult(res *gorm.DB, entity string, id fmt.Stringer) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, apperror.ErrVersionConflict)
	}
	return nil
}
