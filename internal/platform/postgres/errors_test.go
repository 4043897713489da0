package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/storefront-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		expectedErr error
		expectedMsg string
	}{
		{
			name:        "sql_no_rows",
			err:         sql.ErrNoRows,
			expectedErr: store.ErrNotFound,
		},
		{
			name:        "profile_email_unique",
			err:         &pgconn.PgError{Code: uniqueViolationCode, ConstraintName: constraintProfileEmail},
			expectedErr: store.ErrEmailExists,
		},
		{
			name:        "credential_email_unique",
			err:         &pgconn.PgError{Code: uniqueViolationCode, ConstraintName: constraintCredentialEmail},
			expectedErr: store.ErrEmailExists,
		},
		{
			name:        "library_unique",
			err:         &pgconn.PgError{Code: uniqueViolationCode, ConstraintName: constraintLibraryOwner},
			expectedErr: store.ErrLibraryEntryExists,
		},
		{
			name:        "unknown_unique",
			err:         &pgconn.PgError{Code: uniqueViolationCode, ConstraintName: "games_pkey"},
			expectedErr: store.ErrDuplicate,
		},
		{
			name:        "promotion_overlap",
			err:         &pgconn.PgError{Code: exclusionViolationCode, ConstraintName: constraintPromotionWindow},
			expectedErr: store.ErrPromotionOverlap,
		},
		{
			name:        "foreign_key",
			err:         &pgconn.PgError{Code: foreignKeyViolationCode, ConstraintName: "fk_library_game"},
			expectedErr: store.ErrInvalidEntity,
			expectedMsg: "foreign key violation",
		},
		{
			name: "game_still_owned",
			err: &pgconn.PgError{
				Code:           foreignKeyViolationCode,
				ConstraintName: constraintLibraryGame,
				Message:        `update or delete on table "games" violates foreign key constraint "fk_library_entries_game" on table "library_entries"`,
			},
			expectedErr: store.ErrGameReferenced,
		},
		{
			name: "library_entry_for_missing_game",
			err: &pgconn.PgError{
				Code:           foreignKeyViolationCode,
				ConstraintName: constraintLibraryGame,
				Message:        `insert or update on table "library_entries" violates foreign key constraint "fk_library_entries_game"`,
			},
			expectedErr: store.ErrInvalidEntity,
			expectedMsg: "foreign key violation",
		},
		{
			name:        "check",
			err:         &pgconn.PgError{Code: checkViolationCode, ConstraintName: "ck_games_price"},
			expectedErr: store.ErrInvalidEntity,
			expectedMsg: "check constraint violation",
		},
		{
			name:        "not_null",
			err:         &pgconn.PgError{Code: notNullViolationCode, ColumnName: "name"},
			expectedErr: store.ErrInvalidEntity,
			expectedMsg: "not null violation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := MapError(tt.err)
			require.Error(t, mapped)
			assert.ErrorIs(t, mapped, tt.expectedErr)
			if tt.expectedMsg != "" {
				assert.Contains(t, mapped.Error(), tt.expectedMsg)
			}
		})
	}

	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, MapError(nil))
	})

	t.Run("unrelated_error_passes_through", func(t *testing.T) {
		err := errors.New("connection reset")
		assert.Same(t, err, MapError(err))
	})

	t.Run("wrapped_pg_error", func(t *testing.T) {
		err := fmt.Errorf("exec: %w", &pgconn.PgError{Code: exclusionViolationCode, ConstraintName: constraintPromotionWindow})
		assert.ErrorIs(t, MapError(err), store.ErrPromotionOverlap)
	})
}

func TestViolationPredicates(t *testing.T) {
	unique := &pgconn.PgError{Code: uniqueViolationCode}
	fk := &pgconn.PgError{Code: foreignKeyViolationCode}
	exclusion := &pgconn.PgError{Code: exclusionViolationCode}

	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsUniqueViolation(fk))
	assert.True(t, IsForeignKeyViolation(fk))
	assert.False(t, IsForeignKeyViolation(errors.New("x")))
	assert.True(t, IsExclusionViolation(exclusion))
	assert.False(t, IsExclusionViolation(unique))
}

func TestCheckRowsAffected(t *testing.T) {
	t.Run("rows_affected", func(t *testing.T) {
		assert.NoError(t, CheckRowsAffected(sqlmock.NewResult(0, 1), nil))
	})

	t.Run("zero_rows_default", func(t *testing.T) {
		assert.ErrorIs(t, CheckRowsAffected(sqlmock.NewResult(0, 0), nil), store.ErrNotFound)
	})

	t.Run("zero_rows_specific", func(t *testing.T) {
		err := CheckRowsAffected(sqlmock.NewResult(0, 0), store.ErrCredentialNotFound)
		assert.ErrorIs(t, err, store.ErrCredentialNotFound)
	})

	t.Run("result_error", func(t *testing.T) {
		err := CheckRowsAffected(sqlmock.NewErrorResult(errors.New("driver")), nil)
		assert.ErrorContains(t, err, "failed to get rows affected")
	})

	t.Run("nil_result", func(t *testing.T) {
		assert.Error(t, CheckRowsAffected(nil, nil))
	})
}
