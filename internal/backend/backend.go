// Package backend implements the storage provider API the relay forwards
// to: a presigned-URL broker for multipart uploads and previews, backed by a
// MinIO/S3 bucket. It is the development stand-in for the hosted
// OneMinuteCloud backend and speaks the same wire protocol.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/One-Minute-Stack/oneminutecloud-storage-bucket-next/internal/validation"
	"github.com/One-Minute-Stack/oneminutecloud-storage-bucket-next/internal/wire"
)

// Handler serves the provider API. Sessions live in the SessionStore between
// calls; the handler itself holds no per-upload state.
type Handler struct {
	apiKey     string
	store      ObjectStore
	sessions   SessionStore
	ledger     *UploadLedger
	partURLTTL time.Duration
	previewTTL time.Duration
}

// NewHandler creates the provider API handler. ledger may be nil, in which
// case previews fall back to a storage existence check and finalized uploads
// are not recorded.
func NewHandler(apiKey string, store ObjectStore, sessions SessionStore, ledger *UploadLedger, partURLTTL, previewTTL time.Duration) *Handler {
	return &Handler{
		apiKey:     apiKey,
		store:      store,
		sessions:   sessions,
		ledger:     ledger,
		partURLTTL: partURLTTL,
		previewTTL: previewTTL,
	}
}

// Routes registers the provider API endpoints.
func (h *Handler) Routes(router *mux.Router) {
	router.HandleFunc("/v1/multipart/init", h.auth(h.handleInit)).Methods("POST")
	router.HandleFunc("/v1/multipart/part-url", h.auth(h.handlePartURL)).Methods("POST")
	router.HandleFunc("/v1/multipart/finalize", h.auth(h.handleFinalize)).Methods("POST")
	router.HandleFunc("/v1/multipart/abort", h.auth(h.handleAbort)).Methods("POST")
	router.HandleFunc("/v1/preview", h.auth(h.handlePreview)).Methods("POST")
}

// auth enforces the bearer API key on every endpoint.
func (h *Handler) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+h.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next(w, r)
	}
}

func (h *Handler) handleInit(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "backend.init",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	var req wire.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := validation.ValidateBucketID(req.BucketID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Size < 0 {
		writeError(w, http.StatusBadRequest, "negative size")
		return
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := fmt.Sprintf("%s/%s", req.BucketID, uuid.New().String())
	span.SetAttributes(
		attribute.String("bucket_id", req.BucketID),
		attribute.String("object_key", key),
		attribute.Int64("size", req.Size),
	)

	uploadID, err := h.store.NewMultipartUpload(ctx, key, contentType)
	if err != nil {
		span.RecordError(err)
		writeError(w, http.StatusInternalServerError, "failed to initiate upload session")
		return
	}

	token := uuid.New().String()
	session := &UploadSession{
		BucketID:    req.BucketID,
		Key:         key,
		UploadID:    uploadID,
		Size:        req.Size,
		ContentType: contentType,
		CreatedAt:   time.Now(),
	}

	if err := h.sessions.Put(ctx, token, session); err != nil {
		span.RecordError(err)
		writeError(w, http.StatusInternalServerError, "failed to store upload session")
		return
	}

	log.Printf("Upload session started: key=%s size=%d", key, req.Size)
	writeJSON(w, http.StatusOK, wire.InitResponse{SessionToken: token, Key: key})
}

func (h *Handler) handlePartURL(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "backend.part_url",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	var req wire.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PartNumber < 1 {
		writeError(w, http.StatusBadRequest, "partNumber must be >= 1")
		return
	}

	session, ok := h.loadSession(w, span, r, req.SessionToken)
	if !ok {
		return
	}

	span.SetAttributes(
		attribute.String("object_key", session.Key),
		attribute.Int("part_number", req.PartNumber),
	)

	u, err := h.store.PresignPartURL(ctx, session.Key, session.UploadID, req.PartNumber, h.partURLTTL)
	if err != nil {
		span.RecordError(err)
		writeError(w, http.StatusInternalServerError, "failed to presign part URL")
		return
	}

	writeJSON(w, http.StatusOK, wire.PartURLResponse{
		URL:       u,
		ExpiresAt: time.Now().Add(h.partURLTTL).Unix(),
	})
}

func (h *Handler) handleFinalize(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "backend.finalize",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	var req wire.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Parts) == 0 {
		writeError(w, http.StatusBadRequest, "missing parts")
		return
	}

	session, ok := h.loadSession(w, span, r, req.SessionToken)
	if !ok {
		return
	}

	span.SetAttributes(
		attribute.String("object_key", session.Key),
		attribute.Int("part_count", len(req.Parts)),
	)

	parts := append([]wire.CompletedPart(nil), req.Parts...)
	sort.Slice(parts, func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber })

	if err := h.store.CompleteMultipartUpload(ctx, session.Key, session.UploadID, parts); err != nil {
		span.RecordError(err)
		writeError(w, http.StatusInternalServerError, "failed to finalize upload")
		return
	}

	if err := h.sessions.Delete(ctx, req.SessionToken); err != nil {
		log.Printf("Warning: failed to delete upload session: %v", err)
	}

	if h.ledger != nil {
		rec := &UploadRecord{
			Key:         session.Key,
			BucketID:    session.BucketID,
			Size:        session.Size,
			PartCount:   len(parts),
			ContentType: session.ContentType,
			CompletedAt: time.Now(),
		}
		if err := h.ledger.RecordUpload(ctx, rec); err != nil {
			log.Printf("Warning: failed to record upload in ledger: %v", err)
		}
	}

	log.Printf("Upload finalized: key=%s parts=%d", session.Key, len(parts))
	writeJSON(w, http.StatusOK, wire.FinalizeResponse{Key: session.Key})
}

func (h *Handler) handleAbort(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "backend.abort",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	var req wire.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, ok := h.loadSession(w, span, r, req.SessionToken)
	if !ok {
		return
	}

	span.SetAttributes(attribute.String("object_key", session.Key))

	if err := h.store.AbortMultipartUpload(ctx, session.Key, session.UploadID); err != nil {
		span.RecordError(err)
		writeError(w, http.StatusInternalServerError, "failed to abort upload")
		return
	}

	if err := h.sessions.Delete(ctx, req.SessionToken); err != nil {
		log.Printf("Warning: failed to delete upload session: %v", err)
	}

	log.Printf("Upload aborted: key=%s", session.Key)
	writeJSON(w, http.StatusOK, wire.AbortResponse{Aborted: true})
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "backend.preview",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	var req wire.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validation.ValidateObjectKey(req.Key); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	span.SetAttributes(attribute.String("object_key", req.Key))

	known, err := h.keyExists(r.Context(), req.Key)
	if err != nil {
		span.RecordError(err)
		writeError(w, http.StatusInternalServerError, "failed to look up object")
		return
	}
	if !known {
		writeError(w, http.StatusNotFound, "unknown object key")
		return
	}

	u, err := h.store.PresignGetURL(ctx, req.Key, h.previewTTL)
	if err != nil {
		span.RecordError(err)
		writeError(w, http.StatusInternalServerError, "failed to presign preview URL")
		return
	}

	writeJSON(w, http.StatusOK, wire.PreviewResponse{
		URL:       u,
		ExpiresAt: time.Now().Add(h.previewTTL).Unix(),
	})
}

// keyExists consults the ledger when available, falling back to a storage
// stat.
func (h *Handler) keyExists(ctx context.Context, key string) (bool, error) {
	if h.ledger != nil {
		rec, err := h.ledger.GetUpload(ctx, key)
		if err != nil {
			return false, err
		}
		return rec != nil, nil
	}
	return h.store.ObjectExists(ctx, key)
}

// loadSession resolves a session token, writing the error response on
// failure.
func (h *Handler) loadSession(w http.ResponseWriter, span trace.Span, r *http.Request, token string) (*UploadSession, bool) {
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing sessionToken")
		return nil, false
	}

	session, err := h.sessions.Get(r.Context(), token)
	if err != nil {
		span.RecordError(err)
		writeError(w, http.StatusInternalServerError, "failed to load upload session")
		return nil, false
	}
	if session == nil {
		writeError(w, http.StatusNotFound, "unknown or expired upload session")
		return nil, false
	}

	return session, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, wire.ErrorResponse{Error: msg})
}
