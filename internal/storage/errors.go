package storage

import (
	"errors"
	"fmt"
)

var (
	ErrKeyExists    = errors.New("key already exists")
	ErrEmptyKey     = errors.New("key is empty")
	ErrEmptyValue   = errors.New("value is empty")
	ErrNoSuchUser   = errors.New("user has no saved keys")
	ErrNoSuchKey    = errors.New("key not found")
	ErrTargetExists = errors.New("target key already exists")
)

// StorageError reports that the underlying database could not serve an operation.
// It is never used for "absent" results.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageError reports whether err carries a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
