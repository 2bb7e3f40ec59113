// Package apperr defines the sentinel errors shared across cardsync packages.
// Callers match them with errors.Is; the api package maps each to a status.
package apperr

import "errors"

var (
	// ErrNotFound marks a missing note or canvas.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a canvas that kept changing underneath an update.
	ErrConflict = errors.New("conflict")
	// ErrParse marks a canvas or note that could not be decoded.
	ErrParse = errors.New("parse error")
	// ErrInvalidInput marks a request naming the wrong kind of file.
	ErrInvalidInput = errors.New("invalid input")
)
