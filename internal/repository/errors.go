package repository

import "errors"

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateKey is returned when a registration for the same
// (happening, email) pair already exists.
var ErrDuplicateKey = errors.New("registration already exists for this happening")
