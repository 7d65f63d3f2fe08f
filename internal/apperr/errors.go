// Package apperr defines the sentinel errors shared across the journal core.
package apperr

import "errors"

var (
	// ErrNotFound reports that a referenced entry or attachment does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict reports an attempt to create a duplicate relation.
	ErrConflict = errors.New("conflict")
	// ErrCorruptStore reports that an opened file is not a journal store.
	ErrCorruptStore = errors.New("corrupt store")
	// ErrNotAFile reports that the store path exists but is not a regular file.
	ErrNotAFile = errors.New("not a regular file")
	// ErrCycleForbidden reports that a link would make an entry its own ancestor.
	ErrCycleForbidden = errors.New("cycle forbidden")
	// ErrInvalidArgument reports malformed caller input (empty tag label,
	// bad date endpoints, non-positive id).
	ErrInvalidArgument = errors.New("invalid argument")
)
