package analysis

import (
	"context"
	"time"
)

// AWSRepository resolves object-store keys into fetchable URLs for the
// compute worker.
type AWSRepository interface {
	GetPresignedURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error)
}
