package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// IsPgDuplicateError checks if error is a unique constraint violation
func IsPgDuplicateError(err error) bool {
	return pgErrorCode(err) == "23505" // unique_violation
}

// IsPgNoRowsError checks if error is a "no rows" error
func IsPgNoRowsError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsPgForeignKeyError checks if error is a foreign key violation
func IsPgForeignKeyError(err error) bool {
	return pgErrorCode(err) == "23503" // foreign_key_violation
}

// IsPgInvalidTextError checks if a parameter could not be parsed for its
// column type, e.g. a malformed UUID. Lookups treat it as a miss.
func IsPgInvalidTextError(err error) bool {
	return pgErrorCode(err) == "22P02" // invalid_text_representation
}

// IsPgRetryableError reports a transaction aborted by a serialization
// conflict or deadlock; rerunning it may succeed.
func IsPgRetryableError(err error) bool {
	switch pgErrorCode(err) {
	case "40001", "40P01": // serialization_failure, deadlock_detected
		return true
	}
	return false
}

// ConstraintName returns the violated constraint, if any
func ConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
