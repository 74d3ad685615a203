package bucket

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/One-Minute-Stack/oneminutecloud-storage-bucket-next/internal/validation"
	"github.com/One-Minute-Stack/oneminutecloud-storage-bucket-next/internal/wire"
)

// abortTimeout bounds the best-effort session abort after a failure.
const abortTimeout = 10 * time.Second

// Upload moves the file behind r into bucketID as a multipart upload and
// returns the object key the provider assigned.
//
// The file is split into fixed-size parts (DefaultPartSize unless
// WithPartSize overrides it). Each part gets a single-use presigned PUT URL
// through the relay and is streamed directly to the storage endpoint; up to
// WithConcurrency parts are in flight at once. After every confirmed part
// the WithProgress callback receives an updated snapshot. Once all parts
// succeed the session is finalized with the parts in ascending part-number
// order.
//
// On any failure — presign, part PUT, or finalize — the session is aborted
// best-effort and the call returns an error matching ErrUploadFailed with
// the cause wrapped. No partial key is ever returned.
func (c *Client) Upload(ctx context.Context, r io.ReaderAt, size int64, bucketID string, opts ...UploadOption) (string, error) {
	cfg := uploadConfig{
		partSize:    DefaultPartSize,
		concurrency: DefaultConcurrency,
		contentType: "application/octet-stream",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := validation.ValidateBucketID(bucketID); err != nil {
		return "", newError("upload", ErrInvalidBucketID, err).WithBucket(bucketID)
	}
	if size < 0 {
		return "", newError("upload", ErrInvalidRequest,
			fmt.Errorf("negative file size %d", size)).WithBucket(bucketID)
	}

	ctx, span := tracer.Start(ctx, "bucket.upload",
		trace.WithAttributes(
			attribute.String("bucket_id", bucketID),
			attribute.Int64("file_size", size),
			attribute.Int64("part_size", cfg.partSize),
		),
	)
	defer span.End()

	var initResp wire.InitResponse
	err := c.call(ctx, wire.Request{
		Op:          wire.OpInit,
		BucketID:    bucketID,
		Size:        size,
		ContentType: cfg.contentType,
	}, &initResp)
	if err != nil {
		span.RecordError(err)
		return "", newError("upload", ErrUploadFailed, err).WithBucket(bucketID)
	}

	span.SetAttributes(attribute.String("object_key", initResp.Key))

	plan := planParts(size, cfg.partSize)
	completed, err := c.uploadParts(ctx, r, size, initResp.SessionToken, plan, &cfg)
	if err != nil {
		span.RecordError(err)
		c.abortSession(ctx, initResp.SessionToken)
		return "", newError("upload", ErrUploadFailed, err).
			WithBucket(bucketID).WithKey(initResp.Key)
	}

	// completed is indexed by part number, so the finalize list is already
	// in ascending order regardless of which part finished first.
	var finResp wire.FinalizeResponse
	err = c.call(ctx, wire.Request{
		Op:           wire.OpFinalize,
		SessionToken: initResp.SessionToken,
		Parts:        completed,
	}, &finResp)
	if err != nil {
		span.RecordError(err)
		c.abortSession(ctx, initResp.SessionToken)
		return "", newError("upload", ErrUploadFailed, err).
			WithBucket(bucketID).WithKey(initResp.Key)
	}

	return finResp.Key, nil
}

// uploadParts runs the part plan with bounded concurrency. Session state
// (the part/ETag list and the progress counter) is mutated only under mu, so
// the progress callback observes a monotonically increasing loaded count and
// each part's bytes are reported only after its PUT resolved.
func (c *Client) uploadParts(
	ctx context.Context,
	r io.ReaderAt,
	size int64,
	sessionToken string,
	plan []partRange,
	cfg *uploadConfig,
) ([]wire.CompletedPart, error) {
	ctx, span := tracer.Start(ctx, "bucket.upload_parts",
		trace.WithAttributes(attribute.Int("part_count", len(plan))),
	)
	defer span.End()

	completed := make([]wire.CompletedPart, len(plan))

	var mu sync.Mutex
	var loaded int64

	sem := make(chan struct{}, cfg.concurrency)
	errChan := make(chan error, len(plan))
	var wg sync.WaitGroup

	for i, pr := range plan {
		wg.Add(1)
		go func(idx int, pr partRange) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			etag, err := c.uploadPart(ctx, r, sessionToken, pr)
			if err != nil {
				errChan <- fmt.Errorf("part %d: %w", pr.Number, err)
				return
			}

			mu.Lock()
			completed[idx] = wire.CompletedPart{PartNumber: pr.Number, ETag: etag}
			loaded += pr.Length
			if cfg.onProgress != nil {
				cfg.onProgress(snapshot(loaded, size))
			}
			mu.Unlock()
		}(i, pr)
	}

	wg.Wait()
	close(errChan)

	if err := <-errChan; err != nil {
		span.RecordError(err)
		return nil, err
	}

	return completed, nil
}

// uploadPart requests a presigned PUT URL for one part and streams exactly
// that byte range to the storage endpoint.
func (c *Client) uploadPart(ctx context.Context, r io.ReaderAt, sessionToken string, pr partRange) (string, error) {
	ctx, span := tracer.Start(ctx, "bucket.upload_part",
		trace.WithAttributes(
			attribute.Int("part_number", pr.Number),
			attribute.Int64("part_size", pr.Length),
		),
	)
	defer span.End()

	var urlResp wire.PartURLResponse
	err := c.call(ctx, wire.Request{
		Op:           wire.OpPartURL,
		SessionToken: sessionToken,
		PartNumber:   pr.Number,
	}, &urlResp)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	etag, err := c.putPart(ctx, urlResp.URL, r, pr)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	return etag, nil
}

// putPart performs the raw PUT against a presigned URL. This is the only
// traffic that bypasses the relay.
func (c *Client) putPart(ctx context.Context, url string, r io.ReaderAt, pr partRange) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url,
		io.NewSectionReader(r, pr.Offset, pr.Length))
	if err != nil {
		return "", fmt.Errorf("failed to build part request: %w", err)
	}
	req.ContentLength = pr.Length
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", newError("put_part", classifyTransport(err), err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("storage endpoint returned %d", resp.StatusCode)
	}

	etag := strings.Trim(resp.Header.Get("ETag"), `"`)
	if etag == "" {
		return "", fmt.Errorf("storage endpoint returned no etag")
	}

	return etag, nil
}

// abortSession tells the relay to abort the multipart session. Best-effort:
// failures are logged, never returned. When the upload context was canceled
// the abort is fired on a detached goroutine so unwinding is not blocked.
func (c *Client) abortSession(ctx context.Context, sessionToken string) {
	abort := func() {
		ctx, cancel := context.WithTimeout(context.Background(), abortTimeout)
		defer cancel()

		err := c.call(ctx, wire.Request{
			Op:           wire.OpAbort,
			SessionToken: sessionToken,
		}, nil)
		if err != nil {
			log.Printf("Warning: failed to abort upload session: %v", err)
		}
	}

	if ctx.Err() != nil {
		go abort()
		return
	}
	abort()
}

// snapshot derives a progress snapshot with percent clamped to 0-100.
func snapshot(loaded, total int64) ProgressSnapshot {
	if loaded > total {
		loaded = total
	}
	percent := 100.0
	if total > 0 {
		percent = float64(loaded) / float64(total) * 100
	}
	if percent > 100 {
		percent = 100
	}
	return ProgressSnapshot{Loaded: loaded, Total: total, Percent: percent}
}
