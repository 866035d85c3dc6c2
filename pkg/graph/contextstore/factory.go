package contextstore

import (
	"context"
	"os"
)

// NewResolverFromEnv builds a UnifiedResolver wired from environment
// variables:
//
//	CONTEXT_LOCAL_DIR        base directory for bare/file:// identifiers (unset: identifiers used as given)
//	CONTEXT_S3_REGION        AWS region for s3:// identifiers (default "us-east-1")
//	CONTEXT_S3_ENDPOINT      optional S3-compatible endpoint (MinIO, LocalStack)
//	CONTEXT_GCS_ENABLED      "true" to wire a GCS fetcher (requires -tags gcp build)
//
// Remote backends are best-effort: if a fetcher can't be constructed
// (missing credentials, build without gcp tag), the resolver is still
// returned with that backend left nil — resolving an s3:// or gs://
// identifier then fails with a clear error instead of at startup.
func NewResolverFromEnv(ctx context.Context) *UnifiedResolver {
	localDir := os.Getenv("CONTEXT_LOCAL_DIR")

	r := &UnifiedResolver{
		Local: NewLocalResolver(localDir),
		Ctx:   ctx,
	}

	region := os.Getenv("CONTEXT_S3_REGION")
	if region == "" {
		region = "us-east-1"
	}
	if s3f, err := NewS3FetcherFromEnv(ctx, region, os.Getenv("CONTEXT_S3_ENDPOINT")); err == nil {
		r.S3 = s3f
	}

	if os.Getenv("CONTEXT_GCS_ENABLED") == "true" {
		if gcsf, err := NewGCSFetcher(ctx); err == nil {
			r.GCS = gcsf
		}
	}

	return r
}
