package core

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNoActiveSpace is returned when an operation needs a current Space
	// and none exists yet.
	ErrNoActiveSpace = errors.New("no active space")

	// ErrMapUnavailable is returned when a map capture is requested while
	// tracking cannot produce a reliable map.
	ErrMapUnavailable = errors.New("map unavailable")

	// ErrReadOnly is returned by write operations on a read-only store.
	ErrReadOnly = errors.New("store is in read-only mode")
)

// StorageError wraps a failure of the persistence engine. It keeps the
// operation and record id for logs and unwraps to the engine error, so
// errors.Is(err, ErrNotFound) still holds for missing records.
type StorageError struct {
	Op  string
	ID  string
	Err error
}

func (e *StorageError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageError reports whether err carries a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

func storageErr(op, id string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, ID: id, Err: err}
}
