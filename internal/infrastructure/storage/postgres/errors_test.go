package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stocklot/internal/core/apperror"
)

func TestMapError(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		assert.NoError(t, MapError(nil))
	})

	t.Run("apperror passes through unchanged", func(t *testing.T) {
		original := apperror.NewInsufficientStock("p1", 10, 3)
		mapped := MapError(original)
		assert.Same(t, original, mapped)
	})

	t.Run("wrapped apperror passes through", func(t *testing.T) {
		original := apperror.NewValidation("bad input")
		mapped := MapError(fmt.Errorf("service: %w", original))
		appErr, ok := apperror.AsAppError(mapped)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeValidation, appErr.Code)
	})

	t.Run("retryable pg codes map to concurrency conflict", func(t *testing.T) {
		for _, code := range []string{"40001", "40P01", "55P03", "23505"} {
			err := MapError(&pgconn.PgError{Code: code})
			assert.True(t, apperror.IsConcurrencyConflict(err), "code %s", code)
		}
	})

	t.Run("check violation maps to database error with constraint", func(t *testing.T) {
		err := MapError(&pgconn.PgError{Code: "23514", ConstraintName: "inventory_locations_quantity_check"})
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeDatabase, appErr.Code)
		assert.Equal(t, "inventory_locations_quantity_check", appErr.Details["constraint"])
	})

	t.Run("deadline maps to timeout", func(t *testing.T) {
		err := MapError(fmt.Errorf("query: %w", context.DeadlineExceeded))
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeTimeout, appErr.Code)
		assert.Equal(t, 504, appErr.HTTPStatus)
	})

	t.Run("unknown error maps to database error", func(t *testing.T) {
		err := MapError(errors.New("connection refused"))
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeDatabase, appErr.Code)
	})
}
