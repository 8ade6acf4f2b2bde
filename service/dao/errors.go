package dao

import "errors"

var (
	// ErrNotFound is returned when no entity is stored under the key.
	ErrNotFound = errors.New("dao: not found")
	// ErrInvalidID is returned when an entity carries an empty key.
	ErrInvalidID = errors.New("dao: invalid id")
	// ErrNilEntity is returned when saving a nil entity.
	ErrNilEntity = errors.New("dao: nil entity")
)
