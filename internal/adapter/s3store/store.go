package s3store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Options struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	// Timeout bounds every single download or upload.
	Timeout time.Duration
}

// Store is the S3-compatible blob store holding source documents and
// materialized chunk sequences.
type Store struct {
	client  *minio.Client
	timeout time.Duration
}

// New builds a store. Without static keys the credentials come from the
// standard AWS environment variables.
func New(opts Options) (*Store, error) {
	creds := credentials.NewEnvAWS()
	if opts.AccessKey != "" {
		creds = credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, "")
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client init: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Store{client: client, timeout: timeout}, nil
}

func (s *Store) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s/%s: %w", bucket, key, err)
	}
	defer obj.Close()

	content, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object %s/%s: %w", bucket, key, err)
	}

	slog.DebugContext(ctx, "object downloaded", "bucket", bucket, "key", key, "size", len(content))
	return content, nil
}

func (s *Store) Upload(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	info, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put object %s/%s: %w", bucket, key, err)
	}

	slog.DebugContext(ctx, "object uploaded", "bucket", bucket, "key", key, "size", info.Size)
	return nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", bucket, err)
	}
	if exists {
		slog.InfoContext(ctx, "bucket exists", "bucket", bucket)
		return nil
	}

	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("creating bucket %s: %w", bucket, err)
	}
	slog.InfoContext(ctx, "bucket created", "bucket", bucket)
	return nil
}
