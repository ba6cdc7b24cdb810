package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const presignTTL = 15 * time.Minute

// S3Gateway issues pre-signed upload URLs so media bytes go straight
// from the client to object storage. It persists keys, never full
// URLs; public URLs are templated from the serving domain at read
// time.
type S3Gateway struct {
	presigner *s3.PresignClient
	bucket    string
	baseURL   string
}

// UploadTarget is a pre-signed PUT destination handed to the client
type UploadTarget struct {
	UploadURL string `json:"upload_url"`
	Key       string `json:"key"`
	ExpiresIn int64  `json:"expires_in"`
}

// NewS3Gateway creates a gateway for the given bucket. baseURL is the
// public serving domain, e.g. "https://storage.feavel.com".
func NewS3Gateway(ctx context.Context, region, bucket, baseURL string) (*S3Gateway, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)

	return &S3Gateway{
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// PresignUpload returns a pre-signed PUT URL under the given key
// prefix ("feeds", "avatars"). The object key is a fresh UUID.
func (g *S3Gateway) PresignUpload(ctx context.Context, prefix, contentType string) (*UploadTarget, error) {
	key := fmt.Sprintf("%s/%s", prefix, uuid.New().String())

	req, err := g.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(presignTTL))
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	return &UploadTarget{
		UploadURL: req.URL,
		Key:       key,
		ExpiresIn: int64(presignTTL.Seconds()),
	}, nil
}

// PublicURL builds the permanent serving URL for a stored key
func (g *S3Gateway) PublicURL(key string) string {
	if key == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s", g.baseURL, key)
}

// Uploader is the surface handlers need, kept small for test fakes
type Uploader interface {
	PresignUpload(ctx context.Context, prefix, contentType string) (*UploadTarget, error)
	PublicURL(key string) string
}

var _ Uploader = (*S3Gateway)(nil)
