package bucket

import (
	"net/http"
	"time"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for relay calls and part PUTs.
// Use this to control transport behavior (proxies, TLS, connection pools).
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithProvider selects the relay routing discriminator. Default is
// "oneminutecloud".
func WithProvider(provider string) Option {
	return func(c *Client) {
		if provider != "" {
			c.provider = provider
		}
	}
}

// WithCallTimeout bounds each individual network call (relay request or part
// PUT). Default is 60 seconds. Timeouts surface as ErrTimeout, distinct from
// other transport failures.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// uploadConfig collects per-upload settings.
type uploadConfig struct {
	partSize    int64
	concurrency int
	contentType string
	onProgress  ProgressFunc
}

// UploadOption configures a single Upload call.
type UploadOption func(*uploadConfig)

// WithPartSize overrides the fixed part size for this upload. The part plan
// stays deterministic: every part is this size except a smaller final part.
func WithPartSize(partSize int64) UploadOption {
	return func(cfg *uploadConfig) {
		if partSize > 0 {
			cfg.partSize = partSize
		}
	}
}

// WithConcurrency sets how many part PUTs may run in flight at once.
func WithConcurrency(concurrency int) UploadOption {
	return func(cfg *uploadConfig) {
		if concurrency > 0 {
			cfg.concurrency = concurrency
		}
	}
}

// WithContentType sets the content type recorded for the object. Default is
// application/octet-stream.
func WithContentType(contentType string) UploadOption {
	return func(cfg *uploadConfig) {
		if contentType != "" {
			cfg.contentType = contentType
		}
	}
}

// WithProgress registers a callback invoked after each completed part.
func WithProgress(fn ProgressFunc) UploadOption {
	return func(cfg *uploadConfig) {
		cfg.onProgress = fn
	}
}
