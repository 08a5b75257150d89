package repository

import "errors"

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an optimistic version check loses a race.
	ErrConflict = errors.New("conflict")
)
