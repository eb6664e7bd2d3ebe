// Package storage provides the object-storage gateway backed by Google
// Cloud Storage. All pipeline artifacts (uploaded documents and OCR output
// blobs) live in a single named bucket; keys are derived per job, so there
// is no cross-job write contention.
//
// Required Environment Variables:
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"examai/internal/logger"
)

// UploadResult describes a completed upload.
type UploadResult struct {
	Name        string `json:"name"`
	Bucket      string `json:"bucket"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	URI         string `json:"uri"`
}

// ObjectInfo describes one stored object in a listing.
type ObjectInfo struct {
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
	ContentType string    `json:"content_type"`
}

// Gateway is the capability surface the pipeline needs from object storage.
type Gateway interface {
	// Upload writes data under the given object name.
	Upload(ctx context.Context, object string, data []byte, contentType string) (*UploadResult, error)

	// Download reads an object fully into memory.
	Download(ctx context.Context, object string) ([]byte, error)

	// DownloadToFile writes an object to a local path.
	DownloadToFile(ctx context.Context, object, path string) error

	// Delete removes an object.
	Delete(ctx context.Context, object string) error

	// List returns the objects under a prefix in lexical name order.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Exists reports whether an object is present.
	Exists(ctx context.Context, object string) (bool, error)

	// Bucket returns the bucket name the gateway writes to.
	Bucket() string

	Close() error
}

// GCSGateway implements Gateway against a single Cloud Storage bucket.
type GCSGateway struct {
	client *gcs.Client
	bucket string
	log    zerolog.Logger
}

// NewGCSGateway creates a gateway with credentials from the environment.
// It checks GOOGLE_CREDENTIALS (inline JSON) first, then
// GOOGLE_APPLICATION_CREDENTIALS (file path), then application default
// credentials.
func NewGCSGateway(ctx context.Context, bucket string) (*GCSGateway, error) {
	const op = "NewGCSGateway"

	var client *gcs.Client
	var err error

	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = gcs.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, wrapError(op, "", fmt.Errorf("failed to create client with GOOGLE_CREDENTIALS: %w", err))
		}
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = gcs.NewClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, wrapError(op, "", fmt.Errorf("failed to create client with GOOGLE_APPLICATION_CREDENTIALS: %w", err))
		}
	} else {
		client, err = gcs.NewClient(ctx)
		if err != nil {
			return nil, wrapError(op, "", ErrMissingCredentials)
		}
	}

	return NewGCSGatewayWithClient(client, bucket), nil
}

// NewGCSGatewayWithClient creates a gateway with an explicit client (for testing).
func NewGCSGatewayWithClient(client *gcs.Client, bucket string) *GCSGateway {
	return &GCSGateway{
		client: client,
		bucket: bucket,
		log:    logger.WithComponent("storage"),
	}
}

func (g *GCSGateway) Bucket() string {
	return g.bucket
}

// Upload writes data under the given object name.
func (g *GCSGateway) Upload(ctx context.Context, object string, data []byte, contentType string) (*UploadResult, error) {
	const op = "Upload"

	w := g.client.Bucket(g.bucket).Object(object).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, wrapError(op, object, fmt.Errorf("%w: %v", ErrUpstream, err))
	}
	if err := w.Close(); err != nil {
		return nil, wrapError(op, object, fmt.Errorf("%w: %v", ErrUpstream, err))
	}

	g.log.Info().
		Str("object", object).
		Str("bucket", g.bucket).
		Int("size", len(data)).
		Msg("Object uploaded")

	return &UploadResult{
		Name:        object,
		Bucket:      g.bucket,
		Size:        int64(len(data)),
		ContentType: contentType,
		URI:         fmt.Sprintf("gs://%s/%s", g.bucket, object),
	}, nil
}

// Download reads an object fully into memory.
func (g *GCSGateway) Download(ctx context.Context, object string) ([]byte, error) {
	const op = "Download"

	r, err := g.client.Bucket(g.bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, wrapError(op, object, ErrObjectNotFound)
		}
		return nil, wrapError(op, object, fmt.Errorf("%w: %v", ErrUpstream, err))
	}
	defer func() {
		if closeErr := r.Close(); closeErr != nil {
			g.log.Warn().Err(closeErr).Str("object", object).Msg("Failed to close object reader")
		}
	}()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, wrapError(op, object, fmt.Errorf("%w: %v", ErrUpstream, err))
	}
	return data, nil
}

// DownloadToFile writes an object to a local path.
func (g *GCSGateway) DownloadToFile(ctx context.Context, object, path string) error {
	const op = "DownloadToFile"

	data, err := g.Download(ctx, object)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return wrapError(op, object, err)
	}

	g.log.Info().
		Str("object", object).
		Str("path", path).
		Msg("Object downloaded to file")
	return nil
}

// Delete removes an object.
func (g *GCSGateway) Delete(ctx context.Context, object string) error {
	const op = "Delete"

	err := g.client.Bucket(g.bucket).Object(object).Delete(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return wrapError(op, object, ErrObjectNotFound)
		}
		return wrapError(op, object, fmt.Errorf("%w: %v", ErrUpstream, err))
	}

	g.log.Info().Str("object", object).Msg("Object deleted")
	return nil
}

// List returns the objects under a prefix. Cloud Storage lists objects in
// lexical name order, which the OCR reconciler relies on.
func (g *GCSGateway) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	const op = "List"

	it := g.client.Bucket(g.bucket).Objects(ctx, &gcs.Query{Prefix: prefix})

	var objects []ObjectInfo
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, wrapError(op, prefix, fmt.Errorf("%w: %v", ErrUpstream, err))
		}
		objects = append(objects, ObjectInfo{
			Name:        attrs.Name,
			Size:        attrs.Size,
			Created:     attrs.Created,
			Updated:     attrs.Updated,
			ContentType: attrs.ContentType,
		})
	}
	return objects, nil
}

// Exists reports whether an object is present.
func (g *GCSGateway) Exists(ctx context.Context, object string) (bool, error) {
	const op = "Exists"

	_, err := g.client.Bucket(g.bucket).Object(object).Attrs(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return false, nil
		}
		return false, wrapError(op, object, fmt.Errorf("%w: %v", ErrUpstream, err))
	}
	return true, nil
}

// Close closes the underlying client.
func (g *GCSGateway) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
