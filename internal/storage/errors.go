// Package storage holds the facts stores report about records. Stores return
// these sentinels (optionally wrapped); services translate them into API errors.
package storage

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is a uniqueness violation.
	ErrConflict = errors.New("conflict")
	// ErrForeignKey means a referenced row does not exist.
	ErrForeignKey = errors.New("foreign key violation")
	// ErrUnavailable covers timeouts and lost connections.
	ErrUnavailable = errors.New("storage unavailable")
)
