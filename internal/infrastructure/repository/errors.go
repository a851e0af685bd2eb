package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	domainerrors "github.com/davidleathers/dutch-auction-exchange/internal/domain/errors"
)

// Common repository errors
var (
	ErrNotFound        = errors.New("entity not found")
	ErrDuplicateKey    = errors.New("duplicate key violation")
	ErrCheckViolation  = errors.New("check constraint violation")
	ErrSequenceMissing = errors.New("auction sequence row missing")
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// IsDuplicateKeyViolation checks if the error is a unique constraint violation
func IsDuplicateKeyViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	return strings.Contains(err.Error(), "duplicate key") ||
		strings.Contains(err.Error(), "violates unique constraint")
}

// IsCheckViolation checks if the error is a CHECK constraint violation
func IsCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgCheckViolation
}

// IsNotFound checks if the error indicates a record was not found
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows)
}

// WrapRepositoryError maps driver errors onto repository sentinels and adds
// the operation name to anything else.
func WrapRepositoryError(err error, operation string) error {
	if err == nil {
		return nil
	}

	var appErr *domainerrors.AppError
	if errors.As(err, &appErr) {
		return err
	}

	switch {
	case IsNotFound(err):
		return ErrNotFound
	case IsDuplicateKeyViolation(err):
		return ErrDuplicateKey
	case IsCheckViolation(err):
		return errors.Join(ErrCheckViolation, err)
	}

	return domainerrors.Wrap(err, operation)
}
