// Package imageref turns a product image reference into a URL the model and
// the capabilities can fetch.
package imageref

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	cerrors "github.com/spawn-mcp/campaign-synth/pkg/errors"
	"github.com/spawn-mcp/campaign-synth/pkg/types"
)

// Locator resolves image references.
type Locator interface {
	Locate(ctx context.Context, ref types.ImageRef) (string, error)
}

// Config configures an S3-compatible object store.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	// PresignTTL is how long generated URLs stay valid.
	PresignTTL time.Duration
}

// ObjectLocator checks that the object exists and presigns a GET for it.
type ObjectLocator struct {
	client *minio.Client
	ttl    time.Duration
}

// New creates an ObjectLocator.
func New(cfg Config) (*ObjectLocator, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("object store endpoint is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}
	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &ObjectLocator{client: client, ttl: ttl}, nil
}

// Locate implements Locator.
func (l *ObjectLocator) Locate(ctx context.Context, ref types.ImageRef) (string, error) {
	if ref.Bucket == "" || ref.Key == "" {
		return "", cerrors.New(cerrors.ErrInvalidInput, "image reference needs bucket and key")
	}

	if _, err := l.client.StatObject(ctx, ref.Bucket, ref.Key, minio.StatObjectOptions{}); err != nil {
		switch minio.ToErrorResponse(err).Code {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return "", cerrors.Wrapf(err, cerrors.ErrResourceNotFound, "image %s/%s not found", ref.Bucket, ref.Key)
		}
		return "", fmt.Errorf("stat image %s/%s: %w", ref.Bucket, ref.Key, err)
	}

	u, err := l.client.PresignedGetObject(ctx, ref.Bucket, ref.Key, l.ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign image: %w", err)
	}
	return u.String(), nil
}

// PublicURL is the unsigned virtual-hosted S3 URL of ref, used when no
// locator is configured.
func PublicURL(ref types.ImageRef) string {
	if ref.Bucket == "" || ref.Key == "" {
		return ""
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", ref.Bucket, ref.Key)
}
