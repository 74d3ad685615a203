package bucket

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Classification(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	inner := newError("put_part", ErrTransport, cause)
	outer := newError("upload", ErrUploadFailed, inner).WithBucket("my-bucket").WithKey("my-bucket/object-1")

	assert.True(t, errors.Is(outer, ErrUploadFailed))
	assert.True(t, errors.Is(outer, ErrTransport), "inner classification must stay reachable")
	assert.False(t, errors.Is(outer, ErrPreviewFailed))
	assert.True(t, errors.Is(outer, cause), "root cause must stay reachable")

	var be *Error
	assert.True(t, errors.As(outer, &be))
	assert.Equal(t, "upload", be.Op)
	assert.Equal(t, "my-bucket", be.Bucket)
}

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "bucket and key",
			err:  newError("upload", ErrUploadFailed, fmt.Errorf("boom")).WithBucket("b-1").WithKey("b-1/k"),
			want: "bucket.upload b-1/b-1/k: boom",
		},
		{
			name: "bucket only",
			err:  newError("upload", ErrInvalidBucketID, fmt.Errorf("bad id")).WithBucket("B!"),
			want: "bucket.upload B!: bad id",
		},
		{
			name: "no context falls back to kind",
			err:  newError("preview", ErrPreviewFailed, nil),
			want: "bucket.preview: bucket: preview failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}
