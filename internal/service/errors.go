package service

import (
	"errors"
	"fmt"
	"math"

	"github.com/friden-zhang/raspi-todo/internal/repo"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrBadRequest is wrapped by every client-fault error below.
	ErrBadRequest = errors.New("bad request")

	ErrEmptyTitle       = fmt.Errorf("%w: title must not be empty", ErrBadRequest)
	ErrEmptyName        = fmt.Errorf("%w: name must not be empty", ErrBadRequest)
	ErrInvalidStatus    = fmt.Errorf("%w: status must be one of todo, doing, done, archived", ErrBadRequest)
	ErrMissingStatus    = fmt.Errorf("%w: status is required", ErrBadRequest)
	ErrInvalidPriority  = fmt.Errorf("%w: priority must be between 0 and 3", ErrBadRequest)
	ErrUnknownCategory  = fmt.Errorf("%w: category does not exist", ErrBadRequest)
	ErrCategoryInUse    = fmt.Errorf("%w: category in use", ErrBadRequest)
	ErrInvalidReorder   = fmt.Errorf("%w: reorder needs at least one item and every item needs an id", ErrBadRequest)
	ErrInvalidSortOrder = fmt.Errorf("%w: sort_order must fit in a 32-bit integer", ErrBadRequest)
)

// fromRepo maps store errors the client caused onto service errors; anything else
// passes through untouched.
func fromRepo(err error) error {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repo.ErrInvalidReference):
		return ErrUnknownCategory
	case errors.Is(err, repo.ErrInUse):
		return ErrCategoryInUse
	}
	return err
}

// validSortOrder reports whether v fits the INTEGER sort_order column.
func validSortOrder(v int) bool {
	return v >= math.MinInt32 && v <= math.MaxInt32
}
