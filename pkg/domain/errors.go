package domain

import (
	"errors"
	"fmt"
)

// ErrIllegalArgument marks programmer errors such as recording an operation without actions.
var ErrIllegalArgument = errors.New("illegal argument")

// ErrNotFound is returned when a row that is required to exist is missing from the store.
type ErrNotFound struct {
	Entity EntityType
	Key    any
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.Key)
}

// ErrConflict is returned when a create would violate a uniqueness constraint.
type ErrConflict struct {
	Entity EntityType
	Key    any
}

func (e ErrConflict) Error() string {
	return fmt.Sprintf("%s %v already exists", e.Entity, e.Key)
}

// IsNotFound reports whether err wraps an ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}

// IsConflict reports whether err wraps an ErrConflict.
func IsConflict(err error) bool {
	var c ErrConflict
	return errors.As(err, &c)
}
