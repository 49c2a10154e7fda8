package objectstore

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/USCbiostats/annoq-api-v2/internal/db"
)

// DefaultPresignExpiry is the lifetime of download links when none is configured.
const DefaultPresignExpiry = 24 * time.Hour

// Config holds S3-compatible storage settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	Bucket    string
	Prefix    string
	// PresignExpiry bounds the lifetime of returned download URLs.
	PresignExpiry time.Duration
}

// Store uploads export artifacts to MinIO or any S3-compatible service.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
	expiry time.Duration
}

// NewStore creates a Store. It does not contact the server.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = DefaultPresignExpiry
	}
	return &Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, expiry: expiry}, nil
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

// Ping checks that the bucket is reachable.
func (s *Store) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	if !ok {
		return &db.Error{Op: db.OpPing, Err: fmt.Errorf("bucket %q does not exist", s.bucket)}
	}
	return nil
}

// Upload stores the local file under name and returns a presigned download URL.
func (s *Store) Upload(ctx context.Context, name, filePath, contentType string) (string, error) {
	key := s.key(name)
	if _, err := s.client.FPutObject(ctx, s.bucket, key, filePath, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", &db.Error{Op: db.OpSet, Err: fmt.Errorf("upload %s: %w", key, err)}
	}

	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", path.Base(name)))
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.expiry, params)
	if err != nil {
		return "", &db.Error{Op: db.OpGet, Err: fmt.Errorf("presign %s: %w", key, err)}
	}
	return u.String(), nil
}
