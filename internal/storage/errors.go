package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrUpstream is returned when the Cloud Storage API signals failure.
	ErrUpstream = errors.New("storage operation failed")

	// ErrObjectNotFound is returned when the requested object does not exist
	// in the bucket.
	ErrObjectNotFound = errors.New("object not found")

	// ErrMissingCredentials is returned when no Google Cloud credentials are
	// configured in the environment.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")
)

// StorageError wraps errors with additional context about the failed
// storage operation.
type StorageError struct {
	// Op is the operation that failed (e.g., "Upload", "List").
	Op string

	// Object is the object name involved, if any.
	Object string

	// Err is the underlying error.
	Err error
}

func (e *StorageError) Error() string {
	if e.Object != "" {
		return fmt.Sprintf("storage: %s %q failed: %v", e.Op, e.Object, e.Err)
	}
	return fmt.Sprintf("storage: %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func wrapError(op, object string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Object: object, Err: err}
}
