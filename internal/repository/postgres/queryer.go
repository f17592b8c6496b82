package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/davidmoltin/efiling-workflows/internal/repository"
	"github.com/davidmoltin/efiling-workflows/pkg/database"
)

// queryer is satisfied by *database.PostgresDB and *sql.Tx so every
// repository runs unchanged inside or outside a transaction
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// wrapErr wraps a driver error, marking contention as repository.ErrConflict
func wrapErr(err error, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if database.IsContention(err) {
		return fmt.Errorf("%s: %w: %w", msg, repository.ErrConflict, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// rowErr maps sql.ErrNoRows to repository.ErrNotFound
func rowErr(err error, format string, args ...interface{}) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	return wrapErr(err, format, args...)
}

// expectOne reports ErrNotFound when an update touched no row
func expectOne(result sql.Result, what string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", what, repository.ErrNotFound)
	}
	return nil
}
