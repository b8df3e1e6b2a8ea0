package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestPgErrorClassification(t *testing.T) {
	wrap := func(code, constraint string) error {
		return fmt.Errorf("insert folder: %w", &pgconn.PgError{Code: code, ConstraintName: constraint})
	}

	dup := wrap("23505", "folders_owner_parent_name_key")
	assert.True(t, IsPgDuplicateError(dup))
	assert.Equal(t, "folders_owner_parent_name_key", ConstraintName(dup))
	assert.False(t, IsPgRetryableError(dup))

	assert.True(t, IsPgForeignKeyError(wrap("23503", "")))
	assert.True(t, IsPgInvalidTextError(wrap("22P02", "")))
	assert.True(t, IsPgRetryableError(wrap("40001", "")))
	assert.True(t, IsPgRetryableError(wrap("40P01", "")))

	assert.True(t, IsPgNoRowsError(fmt.Errorf("find: %w", pgx.ErrNoRows)))

	plain := errors.New("connection reset")
	assert.False(t, IsPgRetryableError(plain))
	assert.False(t, IsPgDuplicateError(plain))
	assert.Empty(t, ConstraintName(plain))
	assert.False(t, IsPgRetryableError(nil))
}
