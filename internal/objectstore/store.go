// Package objectstore defines the blob store the stager and attachment
// upload path read/write against. The backend treats object storage as an
// external collaborator (spec.md §1): only Put/Get/PresignGET are specified
// here, not bucket provisioning or lifecycle policy.
package objectstore

import (
	"context"
	"io"
	"time"
)

// Store is the blob-storage contract consumed by the attachment stager
// (internal/stager) and the upload/download HTTP surface.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	PresignGET(ctx context.Context, key string, ttl time.Duration) (string, error)
}
