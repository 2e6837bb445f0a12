package chat

import (
	"errors"
	"fmt"
)

var ErrSessionNotFound = errors.New("session not found")

// StorageError wraps a fault of the backing store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// WrapStorageError tags err as a storage fault unless it already is one or
// reports a missing session.
func WrapStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) || errors.Is(err, ErrSessionNotFound) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
