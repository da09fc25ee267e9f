package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// IsDuplicateKeyErr reports whether err is a unique constraint violation.
// gorm only translates this for some drivers, so the driver-specific message
// is matched as a fallback.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	switch {
	case strings.Contains(err.Error(), "duplicate key value violates unique constraint"):
		// PostgreSQL 23505
		return true
	case strings.Contains(err.Error(), "Error 1062"):
		// MySQL
		return true
	case strings.Contains(err.Error(), "UNIQUE constraint failed"):
		// SQLite
		return true
	}
	return false
}
