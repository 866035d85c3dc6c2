package contextstore

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Fetcher fetches objects from AWS S3 (or an S3-compatible endpoint
// such as MinIO/LocalStack) for the purpose of content hashing.
type S3Fetcher struct {
	client *s3.Client
}

// NewS3FetcherFromEnv builds an S3Fetcher from the standard AWS
// environment/credential chain, with an optional custom endpoint for
// non-AWS S3-compatible stores.
func NewS3FetcherFromEnv(ctx context.Context, region, endpoint string) (*S3Fetcher, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("contextstore: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Fetcher{client: client}, nil
}

func (f *S3Fetcher) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("contextstore: s3 get %s/%s: %w", bucket, key, err)
	}
	defer func() { _ = out.Body.Close() }()

	return io.ReadAll(out.Body)
}
