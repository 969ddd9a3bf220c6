package repo

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/friden-zhang/raspi-todo/internal/utils"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("duplicate key")
	// ErrInvalidReference is a foreign key that points at no row.
	ErrInvalidReference = errors.New("invalid reference")
	// ErrInUse means a category still has active todos.
	ErrInUse = errors.New("still referenced by active rows")
)

// StorageError wraps a failure of the storage engine.
type StorageError struct {
	Op    string
	Table string
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("repo: %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// wrapErr classifies err: no rows becomes ErrNotFound, a unique violation ErrConflict,
// a foreign key violation ErrInvalidReference, everything else a *StorageError.
// Nil stays nil.
func wrapErr(err error, op, table string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows), errors.Is(err, ErrNotFound):
		return ErrNotFound
	case utils.IsPGUniqueViolation(err):
		return &StorageError{Op: op, Table: table, Err: fmt.Errorf("%w: %v", ErrConflict, err)}
	case utils.IsPGForeignKeyViolation(err):
		return &StorageError{Op: op, Table: table, Err: fmt.Errorf("%w: %v", ErrInvalidReference, err)}
	default:
		return &StorageError{Op: op, Table: table, Err: err}
	}
}
