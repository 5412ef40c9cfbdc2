package store

import (
	"strings"

	ingesterrors "github.com/DrunkOnJava/ingestor-service/internal/errors"
)

// wrapSQLError classifies a raw database/sql error into the Store error
// taxonomy (spec §4.1: NotConnected, IntegrityViolation, IoError,
// QueryError). modernc.org/sqlite surfaces constraint failures as plain
// error strings rather than a typed error, so classification is
// substring-based, mirroring how the teacher's sqlite layer already
// special-cases busy/lock errors.
func wrapSQLError(err error) error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "unique constraint"), strings.Contains(msg, "foreign key constraint"):
		return ingesterrors.New(ingesterrors.ErrCodeIntegrityViolation, "constraint violation", err)
	case strings.Contains(msg, "no such table"), strings.Contains(msg, "syntax error"), strings.Contains(msg, "has no column"):
		return ingesterrors.New(ingesterrors.ErrCodeQuery, "query error", err)
	case strings.Contains(msg, "database is closed"), strings.Contains(msg, "connection is closed"):
		return ingesterrors.New(ingesterrors.ErrCodeNotConnected, "store not connected", err)
	case strings.Contains(msg, "disk i/o"), strings.Contains(msg, "unable to open database file"):
		return ingesterrors.New(ingesterrors.ErrCodeFilePermission, "store io error", err)
	default:
		return ingesterrors.New(ingesterrors.ErrCodeQuery, "query error", err)
	}
}

// isUniqueViolation reports whether err represents a UNIQUE constraint
// failure, used by upsert paths that treat concurrent duplicate
// ingestion as a no-op rather than a propagated error (spec §7).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
