package store

import "errors"

// ErrNotFound is returned when acting on an unknown entity or group.
var ErrNotFound = errors.New("entity not found")

// ErrConflict is returned when creating an entity whose id already exists
// with a different kind. Re-registering the same id with the same kind is
// an update, not a conflict.
var ErrConflict = errors.New("entity id already registered with different kind")
