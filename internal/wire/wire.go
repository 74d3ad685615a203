// Package wire defines the JSON request/response types exchanged between the
// client library, the trusted relay, and the storage provider API.
package wire

// Operation names accepted by the relay and the provider API.
const (
	OpInit     = "init"
	OpPartURL  = "part-url"
	OpFinalize = "finalize"
	OpAbort    = "abort"
	OpPreview  = "preview"
)

// Request is the single envelope posted to the relay. Op selects the
// operation; the remaining fields are op-specific and omitted when unused.
type Request struct {
	Op string `json:"op"`

	// init
	BucketID    string `json:"bucketId,omitempty"`
	Size        int64  `json:"size,omitempty"`
	ContentType string `json:"contentType,omitempty"`

	// part-url, finalize, abort
	SessionToken string `json:"sessionToken,omitempty"`

	// part-url
	PartNumber int `json:"partNumber,omitempty"`

	// finalize
	Parts []CompletedPart `json:"parts,omitempty"`

	// preview
	Key string `json:"key,omitempty"`
}

// CompletedPart pairs a part number with the ETag the storage endpoint
// returned for that part's PUT.
type CompletedPart struct {
	PartNumber int    `json:"partNumber"`
	ETag       string `json:"etag"`
}

// InitResponse is returned for OpInit.
type InitResponse struct {
	SessionToken string `json:"sessionToken"`
	Key          string `json:"key"`
}

// PartURLResponse is returned for OpPartURL. URL is a single-use presigned
// PUT URL for the requested part number.
type PartURLResponse struct {
	URL       string `json:"url"`
	ExpiresAt int64  `json:"expiresAt"`
}

// FinalizeResponse is returned for OpFinalize.
type FinalizeResponse struct {
	Key string `json:"key"`
}

// AbortResponse is returned for OpAbort.
type AbortResponse struct {
	Aborted bool `json:"aborted"`
}

// PreviewResponse is returned for OpPreview. ExpiresAt is Unix seconds,
// issued by the provider and never recomputed on the client.
type PreviewResponse struct {
	URL       string `json:"url"`
	ExpiresAt int64  `json:"expiresAt"`
}

// ErrorResponse is the body of every non-2xx relay or provider response.
type ErrorResponse struct {
	Error string `json:"error"`
}
