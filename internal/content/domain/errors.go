package domain

import "errors"

var (
	// ErrNotFound signals that no record exists for the category.
	ErrNotFound = errors.New("content: not found")

	// ErrUnknownCategory signals an unrecognized category name.
	ErrUnknownCategory = errors.New("content: unknown category")

	// ErrStaleReplace signals a replace carrying a generated_at older than
	// the newest stored record for the category.
	ErrStaleReplace = errors.New("content: replace older than stored record")
)
