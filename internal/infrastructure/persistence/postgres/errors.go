package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/campus-registrar/deliberation/internal/domain/shared"
)

// PostgreSQL error codes mapped to domain kinds.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeNotNullViolation    = "23502"
	codeCheckViolation      = "23514"

	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// IsTransient reports whether the transaction lost a race and is safe to
// run again from the start.
func IsTransient(err error) bool {
	switch pgCode(err) {
	case codeSerializationFailure, codeDeadlockDetected:
		return true
	}
	return false
}

// IsNoRows checks if the error is a "no rows" error.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// mapError turns a driver error into a domain error. notFound is returned
// for pgx.ErrNoRows; op names the failing repository call.
func mapError(err error, op string, notFound error) error {
	if err == nil {
		return nil
	}
	if IsNoRows(err) && notFound != nil {
		return notFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return shared.WrapError("postgres", op, shared.ErrAlreadyExists, pgErr.ConstraintName, err)
		case codeForeignKeyViolation:
			return shared.WrapError("postgres", op, shared.ErrConstraintViolation, pgErr.ConstraintName, err)
		case codeNotNullViolation, codeCheckViolation:
			return shared.WrapError("postgres", op, shared.ErrValidation, pgErr.ConstraintName, err)
		}
	}
	return fmt.Errorf("postgres: %s: %w", op, err)
}
