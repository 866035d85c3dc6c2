//go:build gcp

package contextstore

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCSFetcher fetches objects from Google Cloud Storage. Only compiled
// with -tags gcp: the GCS SDK is a heavy, optional dependency most
// deployments don't need.
type GCSFetcher struct {
	client *storage.Client
}

// NewGCSFetcher builds a GCSFetcher using application-default
// credentials.
func NewGCSFetcher(ctx context.Context) (*GCSFetcher, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("contextstore: new gcs client: %w", err)
	}
	return &GCSFetcher{client: client}, nil
}

func (f *GCSFetcher) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	r, err := f.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("contextstore: gcs get %s/%s: %w", bucket, key, err)
	}
	defer func() { _ = r.Close() }()

	return io.ReadAll(r)
}
