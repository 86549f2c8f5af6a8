// Package apperr holds the errors the service surfaces map to status codes.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidFormat = errors.New("invalid format")
)
