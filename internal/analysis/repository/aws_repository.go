package repository

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/strikesense/analysis-backend/internal/analysis"
)

var videoKeyPattern = regexp.MustCompile(`.+\.(mp4|mkv|avi|mov|webm|m4v|mpeg|mpg|3gp)$`)

type awsRepository struct {
	client        *s3.Client
	preSignClient *s3.PresignClient
}

func NewAwsRepository(awsClient *s3.Client, preSignClient *s3.PresignClient) analysis.AWSRepository {
	return &awsRepository{
		preSignClient: preSignClient,
		client:        awsClient,
	}
}

// GetPresignedURL turns an input-bucket key into a fetchable URL the compute
// worker can download from.
func (a *awsRepository) GetPresignedURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error) {
	if !videoKeyPattern.MatchString(key) {
		return "", fmt.Errorf("invalid video file format: %s", key)
	}
	getObjectReq, err := a.preSignClient.PresignGetObject(
		ctx,
		&s3.GetObjectInput{
			Bucket: &bucket,
			Key:    &key,
		},
		s3.WithPresignExpires(expires),
	)
	if err != nil {
		return "", fmt.Errorf("failed to presign get object : %w", err)
	}
	return getObjectReq.URL, nil
}
