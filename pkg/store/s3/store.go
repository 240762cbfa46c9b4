// Package s3 provides an S3-backed store implementation for Amazon S3 and
// S3-compatible object storage (MinIO, LocalStack).
//
// Streamed uploads use S3 multipart uploads: incoming chunks are
// aggregated into parts of at least 5MB (the S3 minimum), uploaded as
// they fill, and completed once the source is exhausted. Small uploads
// that fit in a single part use a plain PutObject. A failed upload aborts
// the multipart session so no partial object becomes visible.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/marmos91/formflow/internal/logger"
	"github.com/marmos91/formflow/pkg/bufpool"
	"github.com/marmos91/formflow/pkg/store"
)

const backendName = "s3"

// minPartSize is the S3 minimum multipart part size (5MB).
const minPartSize = 5 * 1024 * 1024

// Store is an S3-backed implementation of store.Store.
type Store struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	partSize  int
	metrics   store.Metrics
}

// Config contains configuration for the S3 store.
type Config struct {
	// Client is the configured S3 client.
	Client *s3.Client

	// Bucket is the S3 bucket name. The bucket must already exist.
	Bucket string

	// KeyPrefix is an optional prefix for all object keys.
	KeyPrefix string

	// PartSize controls multipart upload behavior. Uploads smaller than
	// PartSize use PutObject; larger uploads use multipart with parts of
	// this size. Must be 0 (default 5MB) or >= 5MB.
	PartSize int

	// Metrics is optional; pass nil to disable instrumentation.
	Metrics store.Metrics
}

// NewClient builds an S3 client from static credentials. Endpoint is
// optional and overrides the AWS default for S3-compatible services.
func NewClient(ctx context.Context, endpoint, region, accessKeyID, secretAccessKey string, forcePathStyle bool) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID,
			secretAccessKey,
			"", // session token (empty for static credentials)
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = &endpoint
		}
		o.UsePathStyle = forcePathStyle
	})

	return client, nil
}

// New creates a new S3 store and verifies bucket access. The bucket must
// already exist.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	partSize := cfg.PartSize
	if partSize == 0 {
		partSize = minPartSize
	}
	if partSize < minPartSize {
		return nil, fmt.Errorf("part size must be at least 5MB, got %d bytes", partSize)
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return &Store{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		partSize:  partSize,
		metrics:   cfg.Metrics,
	}, nil
}

// objectKey prepends the configured key prefix.
func (s *Store) objectKey(key string) string {
	return s.keyPrefix + key
}

// observe records a single S3 operation when metrics are enabled.
func (s *Store) observe(operation string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(backendName, operation, time.Since(start), err)
	}
}

// Put streams src into S3 under key.
func (s *Store) Put(ctx context.Context, key string, src store.ChunkSource) (int64, error) {
	objKey := s.objectKey(key)

	part := bufpool.Get(s.partSize)[:0]
	defer bufpool.Put(part)

	var (
		upload *multipartUpload
		total  int64
	)

	// fill accumulates chunks until a part is full or the source ends.
	// A multipart session starts lazily on the first full part, so small
	// uploads never pay for CreateMultipartUpload.
	for {
		chunk, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			s.abortUpload(upload, objKey)
			return 0, err
		}
		total += int64(len(chunk))

		for len(chunk) > 0 {
			n := copy(part[len(part):s.partSize], chunk)
			part = part[:len(part)+n]
			chunk = chunk[n:]

			if len(part) == s.partSize {
				if upload == nil {
					upload, err = s.beginUpload(ctx, objKey)
					if err != nil {
						return 0, err
					}
				}
				if err := upload.uploadPart(ctx, part); err != nil {
					s.abortUpload(upload, objKey)
					return 0, err
				}
				part = part[:0]
			}
		}
	}

	if upload == nil {
		// Everything fit in one part.
		if err := s.putObject(ctx, objKey, part); err != nil {
			return 0, err
		}
	} else {
		if len(part) > 0 {
			if err := upload.uploadPart(ctx, part); err != nil {
				s.abortUpload(upload, objKey)
				return 0, err
			}
		}
		if err := upload.complete(ctx); err != nil {
			s.abortUpload(upload, objKey)
			return 0, err
		}
	}

	if s.metrics != nil {
		s.metrics.RecordBytes(backendName, "write", total)
	}
	return total, nil
}

// putObject writes a small upload with a single request.
func (s *Store) putObject(ctx context.Context, objKey string, data []byte) error {
	start := time.Now()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
		Body:   bytes.NewReader(data),
	})
	s.observe("PutObject", start, err)
	if err != nil {
		return fmt.Errorf("failed to put object %q: %w", objKey, err)
	}
	return nil
}

// multipartUpload tracks state for one in-progress multipart upload.
type multipartUpload struct {
	store          *Store
	key            string
	uploadID       string
	completedParts []types.CompletedPart
}

// beginUpload initiates a multipart upload session.
func (s *Store) beginUpload(ctx context.Context, objKey string) (*multipartUpload, error) {
	start := time.Now()
	result, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	})
	s.observe("CreateMultipartUpload", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart upload: %w", err)
	}

	return &multipartUpload{
		store:    s,
		key:      objKey,
		uploadID: *result.UploadId,
	}, nil
}

// uploadPart uploads the next part. Part numbers are sequential starting
// at 1, as required by S3.
func (u *multipartUpload) uploadPart(ctx context.Context, data []byte) error {
	partNumber := int32(len(u.completedParts) + 1)

	start := time.Now()
	result, err := u.store.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(u.store.bucket),
		Key:        aws.String(u.key),
		UploadId:   aws.String(u.uploadID),
		PartNumber: aws.Int32(partNumber),
		Body:       bytes.NewReader(data),
	})
	u.store.observe("UploadPart", start, err)
	if err != nil {
		return fmt.Errorf("failed to upload part %d: %w", partNumber, err)
	}

	u.completedParts = append(u.completedParts, types.CompletedPart{
		ETag:       result.ETag,
		PartNumber: aws.Int32(partNumber),
	})
	return nil
}

// complete finalizes the multipart upload.
func (u *multipartUpload) complete(ctx context.Context) error {
	start := time.Now()
	_, err := u.store.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(u.store.bucket),
		Key:      aws.String(u.key),
		UploadId: aws.String(u.uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: u.completedParts,
		},
	})
	u.store.observe("CompleteMultipartUpload", start, err)
	if err != nil {
		return fmt.Errorf("failed to complete multipart upload: %w", err)
	}
	return nil
}

// abortUpload cancels an in-progress multipart upload after a failure.
// Uses a fresh context so the abort still runs when the caller's context
// was canceled.
func (s *Store) abortUpload(upload *multipartUpload, objKey string) {
	if upload == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(objKey),
		UploadId: aws.String(upload.uploadID),
	})
	s.observe("AbortMultipartUpload", start, err)
	if err != nil {
		logger.Warn("failed to abort multipart upload", "key", objKey, "error", err)
	}
	if s.metrics != nil {
		s.metrics.RecordUploadAborted(backendName)
	}
}

// metered wraps an S3 object body to count bytes read.
type metered struct {
	io.ReadCloser
	store *Store
}

func (m *metered) Read(p []byte) (int, error) {
	n, err := m.ReadCloser.Read(p)
	if n > 0 && m.store.metrics != nil {
		m.store.metrics.RecordBytes(backendName, "read", int64(n))
	}
	return n, err
}

// Get returns a reader over the object's content.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	start := time.Now()
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	s.observe("GetObject", start, err)
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, store.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to get object %q: %w", key, err)
	}

	return &metered{ReadCloser: result.Body, store: s}, nil
}

// Delete removes an object. S3 DeleteObject is a no-op for missing keys,
// matching the Store contract.
func (s *Store) Delete(ctx context.Context, key string) error {
	start := time.Now()
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	s.observe("DeleteObject", start, err)
	if err != nil {
		return fmt.Errorf("failed to delete object %q: %w", key, err)
	}
	return nil
}

// List returns all objects whose key starts with prefix, sorted by key.
// S3 lists keys in lexical order, so results come back sorted.
func (s *Store) List(ctx context.Context, prefix string) ([]store.Object, error) {
	var objects []store.Object

	start := time.Now()
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.objectKey(prefix)),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			s.observe("ListObjectsV2", start, err)
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, store.Object{
				Key:  strings.TrimPrefix(aws.ToString(obj.Key), s.keyPrefix),
				Size: aws.ToInt64(obj.Size),
			})
		}
	}
	s.observe("ListObjectsV2", start, nil)

	return objects, nil
}

// Close releases client resources. The S3 client holds no connections
// that need explicit shutdown.
func (s *Store) Close() error {
	return nil
}

// HealthCheck verifies bucket access.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	s.observe("HeadBucket", start, err)
	if err != nil {
		return fmt.Errorf("healthcheck failed: %w", err)
	}
	return nil
}
