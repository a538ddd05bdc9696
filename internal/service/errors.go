package service

import "errors"

// Sentinel errors the HTTP layer maps onto status codes.
var (
	// ErrNotFound indicates the addressed entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates the request collides with existing state,
	// such as a duplicate provider name.
	ErrConflict = errors.New("conflict")
)
