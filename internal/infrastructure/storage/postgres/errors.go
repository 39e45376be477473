package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"stocklot/internal/core/apperror"
)

// PostgreSQL error codes relevant to the allocation engine.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgUniqueViolation      = "23505"
	pgCheckViolation       = "23514"
)

// MapError translates storage-layer errors into apperror values.
//
// Lock and serialization conflicts become CONCURRENCY_CONFLICT (retryable).
// A unique violation on the location identity index also maps to a conflict:
// it means two first stock-ins for the same key raced, and one of them should
// retry against the now-existing row. Everything else is a storage failure.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if apperror.IsAppError(err) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return apperror.NewConcurrencyConflict("transaction conflict, retry the operation").WithCause(err)
		case pgUniqueViolation:
			return apperror.NewConcurrencyConflict("concurrent insert conflict, retry the operation").WithCause(err)
		case pgCheckViolation:
			return apperror.NewDatabase(err).WithDetail("constraint", pgErr.ConstraintName)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &apperror.AppError{
			Code:       apperror.CodeTimeout,
			Message:    "Storage operation timed out",
			HTTPStatus: 504,
			Err:        err,
		}
	}

	return apperror.NewDatabase(err)
}
