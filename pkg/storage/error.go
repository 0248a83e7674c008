package storage

import "errors"

// ErrAlreadyExists is returned by Create when the (collection, id) key is taken.
var ErrAlreadyExists = errors.New("entity already exists")

// NotFoundError is returned when an entity doesn't exist in the store.
type NotFoundError struct {
	Collection string
	ID         string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return "entity not found"
	}

	return "entity not found: " + e.Collection + "/" + e.ID
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}
