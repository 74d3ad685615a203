package backend

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/One-Minute-Stack/oneminutecloud-storage-bucket-next/internal/wire"
)

var tracer = otel.Tracer("oneminutecloud-backend")

// ObjectStore is the slice of object-storage behavior the provider API
// needs. Logical bucket identifiers are key prefixes inside one physical
// bucket, so implementations are bucket-scoped.
type ObjectStore interface {
	NewMultipartUpload(ctx context.Context, key, contentType string) (string, error)
	PresignPartURL(ctx context.Context, key, uploadID string, partNumber int, expiry time.Duration) (string, error)
	CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []wire.CompletedPart) error
	AbortMultipartUpload(ctx context.Context, key, uploadID string) error
	PresignGetURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	ObjectExists(ctx context.Context, key string) (bool, error)
}

// MinioStore implements ObjectStore on a MinIO/S3 bucket with tracing.
type MinioStore struct {
	core       *minio.Core
	bucketName string
}

// NewMinioStore initializes the store and ensures the physical bucket
// exists.
func NewMinioStore(endpoint, accessKey, secretKey, bucketName string, useSSL bool) (*MinioStore, error) {
	core, err := minio.NewCore(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx := context.Background()
	exists, err := core.Client.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		log.Printf("Creating bucket: %s", bucketName)
		if err := core.Client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinioStore{core: core, bucketName: bucketName}, nil
}

// NewMultipartUpload starts a multipart session and returns its upload ID.
func (ms *MinioStore) NewMultipartUpload(ctx context.Context, key, contentType string) (string, error) {
	ctx, span := tracer.Start(ctx, "minio.new_multipart_upload",
		trace.WithAttributes(attribute.String("object_key", key)),
	)
	defer span.End()

	uploadID, err := ms.core.NewMultipartUpload(ctx, ms.bucketName, key, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to initiate multipart upload: %w", err)
	}

	return uploadID, nil
}

// PresignPartURL issues a single-use, time-limited PUT URL for one part.
func (ms *MinioStore) PresignPartURL(ctx context.Context, key, uploadID string, partNumber int, expiry time.Duration) (string, error) {
	ctx, span := tracer.Start(ctx, "minio.presign_part_url",
		trace.WithAttributes(
			attribute.String("object_key", key),
			attribute.Int("part_number", partNumber),
		),
	)
	defer span.End()

	params := url.Values{}
	params.Set("uploadId", uploadID)
	params.Set("partNumber", strconv.Itoa(partNumber))

	u, err := ms.core.Client.Presign(ctx, "PUT", ms.bucketName, key, expiry, params)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to presign part URL: %w", err)
	}

	return u.String(), nil
}

// CompleteMultipartUpload combines the uploaded parts into the final object.
func (ms *MinioStore) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []wire.CompletedPart) error {
	ctx, span := tracer.Start(ctx, "minio.complete_multipart_upload",
		trace.WithAttributes(
			attribute.String("object_key", key),
			attribute.Int("part_count", len(parts)),
		),
	)
	defer span.End()

	completed := make([]minio.CompletePart, len(parts))
	for i, p := range parts {
		completed[i] = minio.CompletePart{PartNumber: p.PartNumber, ETag: p.ETag}
	}

	_, err := ms.core.CompleteMultipartUpload(ctx, ms.bucketName, key, uploadID, completed, minio.PutObjectOptions{})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to complete multipart upload: %w", err)
	}

	return nil
}

// AbortMultipartUpload discards the session and any uploaded parts.
func (ms *MinioStore) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	ctx, span := tracer.Start(ctx, "minio.abort_multipart_upload",
		trace.WithAttributes(attribute.String("object_key", key)),
	)
	defer span.End()

	if err := ms.core.AbortMultipartUpload(ctx, ms.bucketName, key, uploadID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to abort multipart upload: %w", err)
	}

	return nil
}

// PresignGetURL issues a time-limited GET URL for an existing object.
func (ms *MinioStore) PresignGetURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	ctx, span := tracer.Start(ctx, "minio.presign_get_url",
		trace.WithAttributes(attribute.String("object_key", key)),
	)
	defer span.End()

	u, err := ms.core.Client.PresignedGetObject(ctx, ms.bucketName, key, expiry, url.Values{})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to presign get URL: %w", err)
	}

	return u.String(), nil
}

// ObjectExists reports whether key names a stored object.
func (ms *MinioStore) ObjectExists(ctx context.Context, key string) (bool, error) {
	ctx, span := tracer.Start(ctx, "minio.stat_object",
		trace.WithAttributes(attribute.String("object_key", key)),
	)
	defer span.End()

	_, err := ms.core.Client.StatObject(ctx, ms.bucketName, key, minio.StatObjectOptions{})
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			span.SetAttributes(attribute.Bool("found", false))
			return false, nil
		}
		span.RecordError(err)
		return false, fmt.Errorf("failed to stat object: %w", err)
	}

	return true, nil
}
