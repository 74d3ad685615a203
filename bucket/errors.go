package bucket

import (
	"errors"
	"fmt"
)

// Sentinel errors for the client surface. Use errors.Is to classify a
// failure returned by Upload or Preview.
var (
	// ErrMissingCredential indicates the relay has no secret API key configured.
	ErrMissingCredential = errors.New("bucket: missing credential")

	// ErrInvalidRequest indicates a malformed or incomplete request.
	ErrInvalidRequest = errors.New("bucket: invalid request")

	// ErrInvalidBucketID indicates the bucket identifier is not a valid
	// DNS-style name.
	ErrInvalidBucketID = errors.New("bucket: invalid bucket id")

	// ErrUploadFailed indicates a part transfer, presign, or finalize failure.
	// The underlying cause is wrapped and reachable through errors.Is/As.
	ErrUploadFailed = errors.New("bucket: upload failed")

	// ErrPreviewFailed indicates the key is unknown or the provider rejected
	// the preview request.
	ErrPreviewFailed = errors.New("bucket: preview failed")

	// ErrTransport indicates a network-level failure talking to the relay or
	// the storage endpoint, as opposed to an application-level rejection.
	ErrTransport = errors.New("bucket: transport error")

	// ErrTimeout indicates a network call exceeded its bounded timeout.
	ErrTimeout = errors.New("bucket: operation timeout")
)

// Error carries the operation, bucket, and key context of a failure along
// with its classification sentinel and underlying cause.
type Error struct {
	// Op is the operation that failed (e.g. "upload", "preview").
	Op string

	// Bucket is the target bucket identifier, if applicable.
	Bucket string

	// Key is the object key, if applicable.
	Key string

	// Kind is the sentinel this error matches under errors.Is.
	Kind error

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Bucket != "" && e.Key != "":
		return fmt.Sprintf("bucket.%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.cause())
	case e.Bucket != "":
		return fmt.Sprintf("bucket.%s %s: %v", e.Op, e.Bucket, e.cause())
	case e.Key != "":
		return fmt.Sprintf("bucket.%s %s: %v", e.Op, e.Key, e.cause())
	default:
		return fmt.Sprintf("bucket.%s: %v", e.Op, e.cause())
	}
}

// Unwrap returns the underlying cause for error chaining.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target matches this error's classification sentinel.
// The underlying cause remains reachable through Unwrap, so errors.Is also
// matches sentinels deeper in the chain.
func (e *Error) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

func (e *Error) cause() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

func newError(op string, kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// WithBucket adds bucket context to the error.
func (e *Error) WithBucket(bucket string) *Error {
	e.Bucket = bucket
	return e
}

// WithKey adds object key context to the error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// IsUploadFailed reports whether err is an upload failure.
func IsUploadFailed(err error) bool {
	return errors.Is(err, ErrUploadFailed)
}

// IsPreviewFailed reports whether err is a preview failure.
func IsPreviewFailed(err error) bool {
	return errors.Is(err, ErrPreviewFailed)
}

// IsTimeout reports whether err was caused by a bounded timeout expiring.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
