//go:build !gcp

package contextstore

import (
	"context"
	"fmt"
)

// GCSFetcher is a stub in builds without -tags gcp: gs:// sources are
// rejected with a clear message instead of silently mis-resolving.
type GCSFetcher struct{}

// NewGCSFetcher always fails in this build.
func NewGCSFetcher(ctx context.Context) (*GCSFetcher, error) {
	return nil, fmt.Errorf("contextstore: gs:// sources require building with -tags gcp")
}

func (f *GCSFetcher) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	return nil, fmt.Errorf("contextstore: gcs support not compiled in (build with -tags gcp)")
}
