package bucket

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/One-Minute-Stack/oneminutecloud-storage-bucket-next/internal/validation"
	"github.com/One-Minute-Stack/oneminutecloud-storage-bucket-next/internal/wire"
)

// Preview resolves an object key returned by Upload into a short-lived
// presigned GET URL. The expiration is the provider's, taken verbatim; no
// caching or local expiry checks happen here. Unknown keys and provider
// rejections come back as errors matching ErrPreviewFailed.
func (c *Client) Preview(ctx context.Context, key string) (*PreviewGrant, error) {
	if err := validation.ValidateObjectKey(key); err != nil {
		return nil, newError("preview", ErrInvalidRequest, err).WithKey(key)
	}

	ctx, span := tracer.Start(ctx, "bucket.preview",
		trace.WithAttributes(attribute.String("object_key", key)),
	)
	defer span.End()

	var resp wire.PreviewResponse
	err := c.call(ctx, wire.Request{Op: wire.OpPreview, Key: key}, &resp)
	if err != nil {
		span.RecordError(err)
		return nil, newError("preview", ErrPreviewFailed, err).WithKey(key)
	}

	return &PreviewGrant{Key: key, URL: resp.URL, ExpiresAt: resp.ExpiresAt}, nil
}
