package sampletree

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Resolve in strict mode when the store has no
	// record for the title.
	ErrNotFound = errors.New("song not found")

	// ErrEmptyTitle is returned for titles that are blank after normalization.
	ErrEmptyTitle = errors.New("title is required")
)

// StoreError reports that the lineage store could not be read or written.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
