package store

import "errors"

// Error kinds per spec §7. Callers use errors.Is against these sentinels;
// wrapped context is added with fmt.Errorf("...: %w", ...).
var (
	// ErrNotFound is returned when a mutator targets an unknown id.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a unique-path constraint would be violated.
	ErrConflict = errors.New("store: conflict")
	// ErrStorage wraps underlying disk/DB I/O faults.
	ErrStorage = errors.New("store: storage failure")
)
