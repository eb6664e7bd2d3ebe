package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"examai/internal/logger"
	"examai/internal/storage"
)

const (
	// DefaultWaitTimeout bounds how long an asynchronous PDF annotation
	// operation is awaited before the job fails.
	DefaultWaitTimeout = 600 * time.Second

	// asyncBatchSize is how many source pages the provider groups into one
	// output JSON object.
	asyncBatchSize = 2
)

// GoogleVisionService implements Service using the Cloud Vision API. The
// asynchronous path reads provider output back through the storage gateway.
type GoogleVisionService struct {
	client      *vision.ImageAnnotatorClient
	blobs       storage.Gateway
	waitTimeout time.Duration
	log         zerolog.Logger
}

// NewGoogleVisionService creates an OCR service with credentials from the
// environment. It expects either GOOGLE_APPLICATION_CREDENTIALS path or
// GOOGLE_CREDENTIALS JSON in env.
func NewGoogleVisionService(ctx context.Context, blobs storage.Gateway, waitTimeout time.Duration) (*GoogleVisionService, error) {
	const op = "NewGoogleVisionService"

	var client *vision.ImageAnnotatorClient
	var err error

	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create client with GOOGLE_CREDENTIALS")
		}
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create client with GOOGLE_APPLICATION_CREDENTIALS")
		}
	} else {
		client, err = vision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
	}

	return NewGoogleVisionServiceWithClient(client, blobs, waitTimeout), nil
}

// NewGoogleVisionServiceWithClient creates an OCR service with an explicit
// client (for testing).
func NewGoogleVisionServiceWithClient(client *vision.ImageAnnotatorClient, blobs storage.Gateway, waitTimeout time.Duration) *GoogleVisionService {
	if waitTimeout <= 0 {
		waitTimeout = DefaultWaitTimeout
	}
	return &GoogleVisionService{
		client:      client,
		blobs:       blobs,
		waitTimeout: waitTimeout,
		log:         logger.WithComponent("ocr"),
	}
}

// DetectDocumentText extracts dense document text from an image buffer.
func (g *GoogleVisionService) DetectDocumentText(ctx context.Context, image []byte) (*ExtractionResult, error) {
	const op = "DetectDocumentText"

	if len(image) == 0 {
		return nil, WrapOCRError(op, ErrNoText, "empty image buffer")
	}

	resp, err := g.client.AnnotateImage(ctx, &visionpb.AnnotateImageRequest{
		Image: &visionpb.Image{Content: image},
		Features: []*visionpb.Feature{
			{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
		},
	})
	if err != nil {
		return nil, WrapOCRError(op, ErrUpstream, fmt.Sprintf("Vision API call failed: %v", err))
	}

	result := &ExtractionResult{}
	if resp.Error != nil {
		result.Error = resp.Error.Message
		return result, nil
	}
	if resp.FullTextAnnotation != nil {
		result.FullText = resp.FullTextAnnotation.Text
		result.StructuredData = pagesFromAnnotation(resp.FullTextAnnotation)
	}

	g.log.Debug().
		Int("text_length", len(result.FullText)).
		Int("pages", len(result.StructuredData)).
		Msg("Document text detection completed")

	return result, nil
}

// ProcessPDFFromGCS starts asynchronous annotation of a stored PDF and waits
// for the operation to finish. The provider writes JSON result objects under
// destinationURI.
func (g *GoogleVisionService) ProcessPDFFromGCS(ctx context.Context, sourceURI, destinationURI string) error {
	const op = "ProcessPDFFromGCS"

	req := &visionpb.AsyncBatchAnnotateFilesRequest{
		Requests: []*visionpb.AsyncAnnotateFileRequest{
			{
				InputConfig: &visionpb.InputConfig{
					GcsSource: &visionpb.GcsSource{Uri: sourceURI},
					MimeType:  "application/pdf",
				},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
				OutputConfig: &visionpb.OutputConfig{
					GcsDestination: &visionpb.GcsDestination{Uri: destinationURI},
					BatchSize:      asyncBatchSize,
				},
			},
		},
	}

	operation, err := g.client.AsyncBatchAnnotateFiles(ctx, req)
	if err != nil {
		return WrapOCRError(op, ErrUpstream, fmt.Sprintf("failed to start async annotation: %v", err))
	}

	g.log.Info().
		Str("source", sourceURI).
		Str("destination", destinationURI).
		Dur("wait_timeout", g.waitTimeout).
		Msg("Waiting for async OCR operation")

	waitCtx, cancel := context.WithTimeout(ctx, g.waitTimeout)
	defer cancel()

	if _, err := operation.Wait(waitCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			return WrapOCRError(op, ErrTimeout, fmt.Sprintf("operation did not complete within %s", g.waitTimeout))
		}
		return WrapOCRError(op, ErrUpstream, fmt.Sprintf("async annotation failed: %v", err))
	}

	g.log.Info().Str("source", sourceURI).Msg("Async OCR operation completed")
	return nil
}

// Close closes the underlying Vision client.
func (g *GoogleVisionService) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
