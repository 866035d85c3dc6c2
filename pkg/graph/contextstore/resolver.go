// Package contextstore resolves addressable context source identifiers
// (local paths, s3:// and gs:// URIs) to the SHA-256 digest of the
// bytes they currently name, so graph.New never has to trust a
// caller-supplied hash for a file or static source.
package contextstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// Resolver fetches the bytes an identifier names and returns their
// hex-encoded SHA-256 digest. It implements graph.FileResolver.
type Resolver interface {
	Digest(identifier string) (string, error)
}

// LocalResolver resolves plain filesystem paths rooted under baseDir
// (empty baseDir means identifiers are used as given).
type LocalResolver struct {
	baseDir string
}

// NewLocalResolver returns a Resolver that reads files from disk,
// rooted at baseDir.
func NewLocalResolver(baseDir string) *LocalResolver {
	return &LocalResolver{baseDir: baseDir}
}

func (r *LocalResolver) Digest(identifier string) (string, error) {
	path := identifier
	if r.baseDir != "" {
		path = r.baseDir + string(os.PathSeparator) + identifier
	}

	f, err := os.Open(path) //nolint:gosec // identifier is a declared context source path
	if err != nil {
		return "", fmt.Errorf("contextstore: open %s: %w", identifier, err)
	}
	defer f.Close() //nolint:errcheck // best-effort close after read

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("contextstore: read %s: %w", identifier, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// BlobFetcher fetches an object's bytes given a bucket and key. S3 and
// GCS resolvers implement it; it exists so UnifiedResolver can dispatch
// on scheme without depending on either SDK directly.
type BlobFetcher interface {
	Fetch(ctx context.Context, bucket, key string) ([]byte, error)
}

// UnifiedResolver dispatches on an identifier's URI scheme: a bare path
// or file:// URI goes to Local, s3:// goes to S3, gs:// goes to GCS.
// Either remote fetcher may be nil if that backend isn't configured;
// an identifier naming a scheme with no fetcher is a resolution error,
// not a panic.
type UnifiedResolver struct {
	Local *LocalResolver
	S3    BlobFetcher
	GCS   BlobFetcher
	Ctx   context.Context
}

func (r *UnifiedResolver) Digest(identifier string) (string, error) {
	ctx := r.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	switch {
	case strings.HasPrefix(identifier, "s3://"):
		if r.S3 == nil {
			return "", fmt.Errorf("contextstore: s3:// source %q but no S3 backend configured", identifier)
		}
		bucket, key, err := splitBucketKey(identifier, "s3://")
		if err != nil {
			return "", err
		}
		data, err := r.S3.Fetch(ctx, bucket, key)
		if err != nil {
			return "", fmt.Errorf("contextstore: s3 fetch %s: %w", identifier, err)
		}
		return digestBytes(data), nil

	case strings.HasPrefix(identifier, "gs://"):
		if r.GCS == nil {
			return "", fmt.Errorf("contextstore: gs:// source %q but no GCS backend configured", identifier)
		}
		bucket, key, err := splitBucketKey(identifier, "gs://")
		if err != nil {
			return "", err
		}
		data, err := r.GCS.Fetch(ctx, bucket, key)
		if err != nil {
			return "", fmt.Errorf("contextstore: gcs fetch %s: %w", identifier, err)
		}
		return digestBytes(data), nil

	case strings.HasPrefix(identifier, "file://"):
		return r.Local.Digest(strings.TrimPrefix(identifier, "file://"))

	default:
		return r.Local.Digest(identifier)
	}
}

func splitBucketKey(identifier, scheme string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(identifier, scheme)
	idx := strings.IndexByte(rest, '/')
	if idx <= 0 || idx == len(rest)-1 {
		return "", "", fmt.Errorf("contextstore: malformed %s identifier %q, want %sbucket/key", scheme, identifier, scheme)
	}
	return rest[:idx], rest[idx+1:], nil
}

func digestBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
