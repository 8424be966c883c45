package storage

import "github.com/papercomputeco/memorag/pkg/errdefs"

// NotFoundError is returned when a record doesn't exist in the store.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return "record not found"
	}

	return "record not found: " + e.ID
}

// Is matches errdefs.ErrNotFound.
func (e NotFoundError) Is(target error) bool {
	return target == errdefs.ErrNotFound
}
