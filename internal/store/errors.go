package store

import (
	"errors"

	"github.com/samber/oops"
)

// Sentinel errors for store operations, checked with errors.Is.
var (
	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument indicates malformed input rejected before any mutation.
	ErrInvalidArgument = errors.New("invalid argument")
)

// NewNotFound reports a missing entity of the given kind.
func NewNotFound(entity, key string) error {
	return oops.
		Code("store."+entity+".not_found").
		With(entity, key).
		Wrapf(ErrNotFound, "%s %s", entity, key)
}

// NewInvalidArgument reports malformed input.
func NewInvalidArgument(format string, args ...any) error {
	return oops.
		Code("store.invalid_argument").
		Wrapf(ErrInvalidArgument, format, args...)
}
