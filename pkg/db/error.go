package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgLockNotAvailable     = "55P03"
)

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	if hasPGCode(err, pgUniqueViolation) {
		return true
	}

	msg := err.Error()
	switch {
	// postgres through a driver that does not expose pgconn.PgError
	case strings.Contains(msg, "duplicate key value violates unique constraint"):
		return true
	// mysql 1062
	case strings.Contains(msg, "Error 1062"):
		return true
	// sqlite 2067
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return true
	}
	return false
}

// IsSerializationErr reports a postgres serialization failure.
func IsSerializationErr(err error) bool {
	return hasPGCode(err, pgSerializationFailure)
}

// IsLockTimeoutErr reports a postgres lock_not_available error.
func IsLockTimeoutErr(err error) bool {
	return hasPGCode(err, pgLockNotAvailable)
}

// IsRetryableErr reports contention errors a caller may retry after re-reading.
func IsRetryableErr(err error) bool {
	return IsSerializationErr(err) || IsLockTimeoutErr(err)
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
