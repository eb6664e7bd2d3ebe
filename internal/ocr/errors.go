package ocr

import (
	"errors"
	"fmt"
)

// Common OCR processing errors
var (
	// ErrUpstream is returned when the Cloud Vision API fails to process
	// the request.
	ErrUpstream = errors.New("OCR processing failed")

	// ErrTimeout is returned when an asynchronous OCR operation does not
	// complete within the configured wait bound.
	ErrTimeout = errors.New("OCR operation timed out")

	// ErrNoText is returned when extraction succeeded but produced no text.
	ErrNoText = errors.New("no text extracted from document")

	// ErrMissingCredentials is returned when neither GOOGLE_APPLICATION_CREDENTIALS
	// nor GOOGLE_CREDENTIALS environment variables are configured.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")
)

// NoResultFilesMessage is recorded on the ExtractionResult when the
// asynchronous output prefix holds no parseable result objects.
const NoResultFilesMessage = "No OCR result files found"

// OCRError wraps errors with additional context about the OCR processing failure.
type OCRError struct {
	// Op is the operation that failed (e.g., "DetectDocumentText").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *OCRError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("ocr: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("ocr: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *OCRError) Unwrap() error {
	return e.Err
}

// WrapOCRError wraps an error as an OCRError if it isn't already one.
func WrapOCRError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var ocrErr *OCRError
	if errors.As(err, &ocrErr) {
		return err // Already wrapped
	}

	return &OCRError{Op: op, Err: err, Details: details}
}
