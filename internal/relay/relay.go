// Package relay implements the trusted intermediary between untrusted
// clients and the storage provider API. It attaches the secret API key to
// each forwarded request; clients never see the credential.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/One-Minute-Stack/oneminutecloud-storage-bucket-next/internal/validation"
	"github.com/One-Minute-Stack/oneminutecloud-storage-bucket-next/internal/wire"
)

var tracer = otel.Tracer("oneminutecloud-relay")

// backend paths per operation.
var opPaths = map[string]string{
	wire.OpInit:     "/v1/multipart/init",
	wire.OpPartURL:  "/v1/multipart/part-url",
	wire.OpFinalize: "/v1/multipart/finalize",
	wire.OpAbort:    "/v1/multipart/abort",
	wire.OpPreview:  "/v1/preview",
}

// Handler is the relay endpoint. It is stateless: each request is validated,
// forwarded to the provider backend with the secret credential attached, and
// the backend's answer is re-encoded through the known wire types so
// backend-internal fields never reach the client.
type Handler struct {
	apiKey     string
	providers  map[string]string
	httpClient *http.Client
}

// New creates a relay handler. providers maps a routing discriminator to the
// base URL of that provider's backend API. apiKey is the secret credential;
// requests are rejected, not forwarded, while it is empty.
func New(apiKey string, providers map[string]string) *Handler {
	return &Handler{
		apiKey:     apiKey,
		providers:  providers,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ServeHTTP handles POST /api/storage/{provider}.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ctx, span := tracer.Start(ctx, "relay_request",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	provider := mux.Vars(r)["provider"]
	span.SetAttributes(attribute.String("provider", provider))

	if h.apiKey == "" {
		writeError(w, http.StatusInternalServerError, "storage credential is not configured")
		return
	}

	base, ok := h.providers[provider]
	if !ok {
		writeError(w, http.StatusBadRequest, "missing or invalid provider route")
		return
	}

	var req wire.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	span.SetAttributes(attribute.String("op", req.Op))

	if err := validateRequest(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status, body, err := h.forward(ctx, base, &req)
	if err != nil {
		span.RecordError(err)
		log.Printf("Relay: backend call failed for op %s: %v", req.Op, err)
		writeError(w, http.StatusBadGateway, "storage backend unreachable")
		return
	}

	h.relayResponse(w, span, &req, status, body)
}

// validateRequest checks the operation tag and its required fields. Unknown
// tags are rejected here, never forwarded.
func validateRequest(req *wire.Request) error {
	switch req.Op {
	case wire.OpInit:
		if req.BucketID == "" {
			return fmt.Errorf("init: missing bucketId")
		}
		if err := validation.ValidateBucketID(req.BucketID); err != nil {
			return fmt.Errorf("init: %v", err)
		}
		if req.Size < 0 {
			return fmt.Errorf("init: negative size")
		}
	case wire.OpPartURL:
		if req.SessionToken == "" {
			return fmt.Errorf("part-url: missing sessionToken")
		}
		if req.PartNumber < 1 {
			return fmt.Errorf("part-url: partNumber must be >= 1")
		}
	case wire.OpFinalize:
		if req.SessionToken == "" {
			return fmt.Errorf("finalize: missing sessionToken")
		}
		if len(req.Parts) == 0 {
			return fmt.Errorf("finalize: missing parts")
		}
	case wire.OpAbort:
		if req.SessionToken == "" {
			return fmt.Errorf("abort: missing sessionToken")
		}
	case wire.OpPreview:
		if err := validation.ValidateObjectKey(req.Key); err != nil {
			return fmt.Errorf("preview: %v", err)
		}
	default:
		return fmt.Errorf("missing or invalid operation")
	}
	return nil
}

// forward posts the request to the provider backend with the secret
// credential attached and returns the backend's status and raw body.
func (h *Handler) forward(ctx context.Context, base string, req *wire.Request) (int, []byte, error) {
	ctx, span := tracer.Start(ctx, "backend."+req.Op)
	defer span.End()

	payload, err := json.Marshal(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to encode backend request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+opPaths[req.Op], bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build backend request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+h.apiKey)

	resp, err := h.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return 0, nil, fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return 0, nil, fmt.Errorf("failed to read backend response: %w", err)
	}

	span.SetAttributes(attribute.Int("backend.status", resp.StatusCode))
	return resp.StatusCode, body, nil
}

// relayResponse passes the backend's status through, re-encoding the body
// through the known response type for the operation so only the documented
// fields survive the round trip.
func (h *Handler) relayResponse(w http.ResponseWriter, span trace.Span, req *wire.Request, status int, body []byte) {
	if status < 200 || status > 299 {
		var er wire.ErrorResponse
		if err := json.Unmarshal(body, &er); err != nil || er.Error == "" {
			er.Error = "storage backend rejected the request"
		}
		writeJSON(w, status, er)
		return
	}

	out, err := decodeResult(req.Op, body)
	if err != nil {
		span.RecordError(err)
		log.Printf("Relay: invalid backend response for op %s: %v", req.Op, err)
		writeError(w, http.StatusBadGateway, "invalid storage backend response")
		return
	}

	writeJSON(w, status, out)
}

func decodeResult(op string, body []byte) (any, error) {
	var out any
	switch op {
	case wire.OpInit:
		out = &wire.InitResponse{}
	case wire.OpPartURL:
		out = &wire.PartURLResponse{}
	case wire.OpFinalize:
		out = &wire.FinalizeResponse{}
	case wire.OpAbort:
		out = &wire.AbortResponse{}
	case wire.OpPreview:
		out = &wire.PreviewResponse{}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return out, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, wire.ErrorResponse{Error: msg})
}
