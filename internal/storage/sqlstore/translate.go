package sqlstore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	apperrors "dayledger/internal/errors"
)

// translate maps driver-native failures into the application taxonomy at
// the transaction boundary. Errors already in the taxonomy pass through
// unchanged so a transaction body's failure reaches the caller as-is.
// Lock contention becomes the retryable StorageBusy; constraint
// violations become permanent taxonomy errors.
func translate(err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrTransactionNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.ErrStorageBusy, err)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch {
		case sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked:
			return apperrors.Wrap(apperrors.ErrStorageBusy, err)
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique:
			return apperrors.Wrap(apperrors.ErrDuplicateUsername, err)
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey:
			return apperrors.Wrap(apperrors.ErrUserNotFound, err)
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintCheck:
			return apperrors.Wrap(apperrors.ErrInvalidInput, err)
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return apperrors.Wrap(apperrors.ErrDuplicateUsername, err)
		case "23503": // foreign_key_violation
			return apperrors.Wrap(apperrors.ErrUserNotFound, err)
		case "23514": // check_violation
			return apperrors.Wrap(apperrors.ErrInvalidInput, err)
		case "55P03", "40001", "40P01": // lock_not_available, serialization, deadlock
			return apperrors.Wrap(apperrors.ErrStorageBusy, err)
		}
	}

	return apperrors.Wrap(apperrors.ErrInternalServer, err)
}
