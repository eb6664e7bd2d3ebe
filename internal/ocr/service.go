// Package ocr provides OCR text extraction using the Google Cloud Vision API.
//
// Two extraction paths exist, both producing the same canonical
// ExtractionResult:
//
//   - Synchronous: DOCUMENT_TEXT_DETECTION on an in-memory image buffer.
//   - Asynchronous: batch annotation of a PDF already stored in Cloud
//     Storage. The provider writes one or more JSON result objects under a
//     destination prefix; ReadAsyncResults lists them back in lexical key
//     order and reassembles the canonical shape.
//
// Required Environment Variables:
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
package ocr

import (
	"context"
)

// Service defines the OCR gateway the pipeline depends on.
type Service interface {
	// DetectDocumentText extracts dense document text from an image buffer.
	DetectDocumentText(ctx context.Context, image []byte) (*ExtractionResult, error)

	// ProcessPDFFromGCS starts asynchronous annotation of a stored PDF and
	// blocks until the provider reports completion or the configured wait
	// bound elapses. Results are written to destinationURI by the provider.
	ProcessPDFFromGCS(ctx context.Context, sourceURI, destinationURI string) error

	// ReadAsyncResults reassembles the result objects written under the
	// given storage prefix into a canonical ExtractionResult.
	ReadAsyncResults(ctx context.Context, destinationPrefix string) (*ExtractionResult, error)
}
