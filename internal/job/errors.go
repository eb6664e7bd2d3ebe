package job

import (
	"context"
	"errors"
	"fmt"

	"examai/internal/mongodb"
	"examai/internal/ocr"
	"examai/internal/paper"
	"examai/internal/storage"
)

var (
	// ErrInvalidInput is returned by Submit for an empty buffer or filename.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when a job ID is unknown to the store.
	ErrNotFound = errors.New("job not found")

	// ErrUnsupportedType is returned for file extensions no OCR path handles.
	ErrUnsupportedType = errors.New("unsupported file type")
)

// StageError ties a pipeline failure to the stage it occurred in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// stageOf extracts the failing stage name from a pipeline error.
func stageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// IsTransient reports whether an error is a network/timeout-class failure
// worth retrying. Parse and validation failures are fatal: retrying cannot
// fix an unsupported extension or a malformed model reply.
func IsTransient(err error) bool {
	return errors.Is(err, storage.ErrUpstream) ||
		errors.Is(err, ocr.ErrUpstream) ||
		errors.Is(err, ocr.ErrTimeout) ||
		errors.Is(err, paper.ErrUpstream) ||
		errors.Is(err, mongodb.ErrUpstream) ||
		errors.Is(err, context.DeadlineExceeded)
}
