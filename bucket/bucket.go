// Package bucket is the client library for OneMinuteCloud storage buckets.
//
// It moves files from an untrusted client to an object-storage backend
// through presigned URLs brokered by a trusted relay, so the secret API key
// never reaches the client. Upload splits a file into fixed-size parts,
// requests one presigned PUT URL per part through the relay, uploads the
// parts (concurrently, bounded), and finalizes the multipart session.
// Preview resolves a previously uploaded key into a short-lived GET URL.
//
// Only the raw part bytes travel directly between the client and the storage
// endpoint; every call that needs the secret credential goes through the
// relay.
package bucket

// ProgressSnapshot reports cumulative upload progress. Loaded counts only
// bytes whose part PUT has succeeded, so it is monotonically non-decreasing
// and never exceeds Total.
type ProgressSnapshot struct {
	Loaded  int64
	Total   int64
	Percent float64
}

// ProgressFunc receives a snapshot after each completed part. It is invoked
// with session state serialized, so implementations need no locking of their
// own, but should return quickly.
type ProgressFunc func(ProgressSnapshot)

// PreviewGrant is a short-lived retrieval grant for an object.
type PreviewGrant struct {
	// Key is the object key the grant was issued for.
	Key string

	// URL is a time-limited presigned GET URL.
	URL string

	// ExpiresAt is the absolute expiration in Unix seconds, issued by the
	// provider and never recomputed client-side.
	ExpiresAt int64
}
