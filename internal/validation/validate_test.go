package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateBucketID(t *testing.T) {
	tests := []struct {
		name     string
		bucketID string
		wantErr  bool
	}{
		{name: "simple", bucketID: "my-bucket", wantErr: false},
		{name: "digits", bucketID: "bucket123", wantErr: false},
		{name: "minimum length", bucketID: "abc", wantErr: false},
		{name: "maximum length", bucketID: strings.Repeat("a", 63), wantErr: false},
		{name: "too short", bucketID: "ab", wantErr: true},
		{name: "too long", bucketID: strings.Repeat("a", 64), wantErr: true},
		{name: "empty", bucketID: "", wantErr: true},
		{name: "uppercase", bucketID: "MyBucket", wantErr: true},
		{name: "spaces", bucketID: "my bucket", wantErr: true},
		{name: "underscore", bucketID: "my_bucket", wantErr: true},
		{name: "leading hyphen", bucketID: "-bucket", wantErr: true},
		{name: "trailing hyphen", bucketID: "bucket-", wantErr: true},
		{name: "double hyphen", bucketID: "my--bucket", wantErr: true},
		{name: "dots", bucketID: "my.bucket", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBucketID(tt.bucketID)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateObjectKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{name: "simple", key: "my-bucket/obj-1", wantErr: false},
		{name: "nested", key: "a/b/c/d.png", wantErr: false},
		{name: "unicode", key: "docs/резюме.pdf", wantErr: false},
		{name: "empty", key: "", wantErr: true},
		{name: "too long", key: strings.Repeat("k", 1025), wantErr: true},
		{name: "parent traversal", key: "a/../b", wantErr: true},
		{name: "leading traversal", key: "../secret", wantErr: true},
		{name: "dot segment", key: "a/./b", wantErr: true},
		{name: "absolute", key: "/etc/passwd", wantErr: true},
		{name: "control characters", key: "a\x00b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateObjectKey(tt.key)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
