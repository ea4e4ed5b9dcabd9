package store

import "fmt"

// ErrorKind classifies persistence failures.
type ErrorKind string

const (
	// KindDuplicate means the batch violated the uniqueness key; nothing was written.
	KindDuplicate ErrorKind = "duplicate"

	// KindTransport means the store could not be reached or rejected the write for another reason.
	KindTransport ErrorKind = "transport"
)

// PersistError reports that a batch could not be persisted.
type PersistError struct {
	Kind   ErrorKind
	Source string
	Events int
	Err    error
}

// Error implements the error interface.
func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %d events from %s: %s: %v", e.Events, e.Source, e.Kind, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *PersistError) Unwrap() error {
	return e.Err
}
