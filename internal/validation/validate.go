// Package validation holds input validation shared by the client library and
// the provider API: bucket identifier and object key checks.
package validation

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	minBucketIDLength = 3
	maxBucketIDLength = 63
	maxObjectKeyBytes = 1024
)

// ValidateBucketID checks that a bucket identifier is a DNS-style name:
// 3-63 characters, lowercase letters, digits and hyphens, starting and
// ending with a letter or digit.
func ValidateBucketID(bucketID string) error {
	if len(bucketID) < minBucketIDLength || len(bucketID) > maxBucketIDLength {
		return fmt.Errorf("bucket id must be %d-%d characters, got %d",
			minBucketIDLength, maxBucketIDLength, len(bucketID))
	}

	for _, r := range bucketID {
		if !isBucketIDRune(r) {
			return fmt.Errorf("bucket id contains invalid character %q", r)
		}
	}

	if bucketID[0] == '-' || bucketID[len(bucketID)-1] == '-' {
		return fmt.Errorf("bucket id cannot start or end with a hyphen")
	}

	if strings.Contains(bucketID, "--") {
		return fmt.Errorf("bucket id cannot contain consecutive hyphens")
	}

	return nil
}

// ValidateObjectKey checks that an object key is non-empty, within the
// common object-storage length limit, and free of path traversal sequences
// and control characters.
func ValidateObjectKey(key string) error {
	if key == "" {
		return fmt.Errorf("object key cannot be empty")
	}

	if len(key) > maxObjectKeyBytes {
		return fmt.Errorf("object key cannot exceed %d bytes", maxObjectKeyBytes)
	}

	if hasPathTraversal(key) {
		return fmt.Errorf("object key cannot contain path traversal sequences")
	}

	for _, r := range key {
		if unicode.IsControl(r) {
			return fmt.Errorf("object key cannot contain control characters")
		}
	}

	return nil
}

func isBucketIDRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-'
}

func hasPathTraversal(key string) bool {
	if strings.HasPrefix(key, "/") {
		return true
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." || segment == "." {
			return true
		}
	}
	return false
}
