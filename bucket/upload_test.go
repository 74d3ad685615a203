package bucket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/One-Minute-Stack/oneminutecloud-storage-bucket-next/internal/wire"
)

// fakeProvider acts as relay and storage endpoint in one httptest server:
// relay operations arrive on /api/storage/{provider}, presigned part PUTs on
// /put/{partNumber}.
type fakeProvider struct {
	t *testing.T

	mu           sync.Mutex
	server       *httptest.Server
	ops          []string
	partBodies   map[int][]byte
	finalized    []wire.CompletedPart
	aborted      bool
	failPartPut  map[int]bool
	failPartURL  map[int]bool
	failFinalize bool
}

func newFakeProvider(t *testing.T) *fakeProvider {
	fp := &fakeProvider{
		t:           t,
		partBodies:  make(map[int][]byte),
		failPartPut: make(map[int]bool),
		failPartURL: make(map[int]bool),
	}
	fp.server = httptest.NewServer(http.HandlerFunc(fp.serve))
	t.Cleanup(fp.server.Close)
	return fp
}

func (fp *fakeProvider) serve(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasPrefix(r.URL.Path, "/api/storage/"):
		fp.serveRelay(w, r)
	case strings.HasPrefix(r.URL.Path, "/put/"):
		fp.servePut(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (fp *fakeProvider) serveRelay(w http.ResponseWriter, r *http.Request) {
	var req wire.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fp.t.Errorf("fake relay received invalid body: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	fp.mu.Lock()
	fp.ops = append(fp.ops, req.Op)
	fp.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch req.Op {
	case wire.OpInit:
		json.NewEncoder(w).Encode(wire.InitResponse{
			SessionToken: "session-1",
			Key:          req.BucketID + "/object-1",
		})
	case wire.OpPartURL:
		fp.mu.Lock()
		fail := fp.failPartURL[req.PartNumber]
		fp.mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(wire.ErrorResponse{Error: "failed to presign part URL"})
			return
		}
		json.NewEncoder(w).Encode(wire.PartURLResponse{
			URL:       fp.server.URL + "/put/" + strconv.Itoa(req.PartNumber),
			ExpiresAt: time.Now().Add(15 * time.Minute).Unix(),
		})
	case wire.OpFinalize:
		fp.mu.Lock()
		fp.finalized = append([]wire.CompletedPart(nil), req.Parts...)
		fail := fp.failFinalize
		fp.mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(wire.ErrorResponse{Error: "failed to finalize upload"})
			return
		}
		json.NewEncoder(w).Encode(wire.FinalizeResponse{Key: "bx/object-1"})
	case wire.OpAbort:
		fp.mu.Lock()
		fp.aborted = true
		fp.mu.Unlock()
		json.NewEncoder(w).Encode(wire.AbortResponse{Aborted: true})
	default:
		fp.t.Errorf("fake relay received unexpected op %q", req.Op)
		w.WriteHeader(http.StatusBadRequest)
	}
}

func (fp *fakeProvider) servePut(w http.ResponseWriter, r *http.Request) {
	partNumber, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/put/"))
	require.NoError(fp.t, err)

	fp.mu.Lock()
	fail := fp.failPartPut[partNumber]
	fp.mu.Unlock()
	if fail {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	body, err := io.ReadAll(r.Body)
	require.NoError(fp.t, err)

	fp.mu.Lock()
	fp.partBodies[partNumber] = body
	fp.mu.Unlock()

	w.Header().Set("ETag", fmt.Sprintf("%q", "etag-"+strconv.Itoa(partNumber)))
	w.WriteHeader(http.StatusOK)
}

func (fp *fakeProvider) client(opts ...Option) *Client {
	return New(fp.server.URL, opts...)
}

func (fp *fakeProvider) wasAborted() bool {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return fp.aborted
}

func (fp *fakeProvider) finalizedParts() []wire.CompletedPart {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return fp.finalized
}

func TestUpload_FivePartScenario(t *testing.T) {
	const mib = 1024 * 1024

	fp := newFakeProvider(t)
	c := fp.client()

	data := bytes.Repeat([]byte{0xAB}, 25*mib)

	var snapshots []ProgressSnapshot
	key, err := c.Upload(context.Background(), bytes.NewReader(data), int64(len(data)), "my-bucket",
		WithPartSize(5*mib),
		WithConcurrency(2),
		WithProgress(func(s ProgressSnapshot) {
			snapshots = append(snapshots, s)
		}),
	)
	require.NoError(t, err)
	assert.NotEmpty(t, key)

	// One callback per completed part, loaded climbing 5 MiB at a time.
	require.Len(t, snapshots, 5)
	for i, s := range snapshots {
		assert.Equal(t, int64((i+1)*5*mib), s.Loaded)
		assert.Equal(t, int64(25*mib), s.Total)
		assert.InDelta(t, float64((i+1)*20), s.Percent, 0.001)
	}

	// Finalize saw all five parts in ascending order with their ETags.
	parts := fp.finalizedParts()
	require.Len(t, parts, 5)
	for i, p := range parts {
		assert.Equal(t, i+1, p.PartNumber)
		assert.Equal(t, "etag-"+strconv.Itoa(i+1), p.ETag)
	}

	// Each part carried exactly its byte range.
	fp.mu.Lock()
	defer fp.mu.Unlock()
	for n := 1; n <= 5; n++ {
		assert.Len(t, fp.partBodies[n], 5*mib, "part %d", n)
	}
	assert.False(t, fp.aborted)
}

func TestUpload_PartBytesMatchRanges(t *testing.T) {
	fp := newFakeProvider(t)
	c := fp.client()

	data := []byte("abcdefghijklmnopqrstuvwx") // 24 bytes -> parts of 10, 10, 4

	key, err := c.Upload(context.Background(), bytes.NewReader(data), int64(len(data)), "my-bucket",
		WithPartSize(10),
	)
	require.NoError(t, err)
	assert.Equal(t, "bx/object-1", key)

	fp.mu.Lock()
	defer fp.mu.Unlock()
	assert.Equal(t, []byte("abcdefghij"), fp.partBodies[1])
	assert.Equal(t, []byte("klmnopqrst"), fp.partBodies[2])
	assert.Equal(t, []byte("uvwx"), fp.partBodies[3])
}

func TestUpload_ProgressMonotonicUnderConcurrency(t *testing.T) {
	fp := newFakeProvider(t)
	c := fp.client()

	data := bytes.Repeat([]byte{0x01}, 61) // 21 parts of 3 bytes, last is 1

	var snapshots []ProgressSnapshot
	_, err := c.Upload(context.Background(), bytes.NewReader(data), int64(len(data)), "my-bucket",
		WithPartSize(3),
		WithConcurrency(8),
		WithProgress(func(s ProgressSnapshot) {
			snapshots = append(snapshots, s)
		}),
	)
	require.NoError(t, err)

	require.Len(t, snapshots, 21)
	var prev int64
	for _, s := range snapshots {
		assert.GreaterOrEqual(t, s.Loaded, prev, "loaded must never decrease")
		assert.LessOrEqual(t, s.Loaded, s.Total, "loaded must never exceed total")
		prev = s.Loaded
	}
	assert.Equal(t, int64(61), snapshots[len(snapshots)-1].Loaded)

	parts := fp.finalizedParts()
	require.Len(t, parts, 21)
	for i, p := range parts {
		assert.Equal(t, i+1, p.PartNumber, "finalize parts must be sorted")
	}
}

func TestUpload_PartPutFailureAborts(t *testing.T) {
	fp := newFakeProvider(t)
	fp.failPartPut[3] = true
	c := fp.client()

	data := bytes.Repeat([]byte{0x02}, 25)

	key, err := c.Upload(context.Background(), bytes.NewReader(data), int64(len(data)), "my-bucket",
		WithPartSize(5),
	)
	require.Error(t, err)
	assert.True(t, IsUploadFailed(err))
	assert.Empty(t, key)
	assert.True(t, fp.wasAborted(), "a failed part must trigger a session abort")
	assert.Nil(t, fp.finalizedParts(), "finalize must not run after a part failure")
}

func TestUpload_PartURLFailureAborts(t *testing.T) {
	fp := newFakeProvider(t)
	fp.failPartURL[2] = true
	c := fp.client()

	data := bytes.Repeat([]byte{0x03}, 15)

	_, err := c.Upload(context.Background(), bytes.NewReader(data), int64(len(data)), "my-bucket",
		WithPartSize(5),
	)
	require.Error(t, err)
	assert.True(t, IsUploadFailed(err))
	assert.True(t, fp.wasAborted())
}

func TestUpload_FinalizeFailureAborts(t *testing.T) {
	fp := newFakeProvider(t)
	fp.failFinalize = true
	c := fp.client()

	data := bytes.Repeat([]byte{0x04}, 10)

	key, err := c.Upload(context.Background(), bytes.NewReader(data), int64(len(data)), "my-bucket",
		WithPartSize(5),
	)
	require.Error(t, err)
	assert.True(t, IsUploadFailed(err))
	assert.Empty(t, key)
	assert.True(t, fp.wasAborted())
}

func TestUpload_InvalidBucketID(t *testing.T) {
	fp := newFakeProvider(t)
	c := fp.client()

	_, err := c.Upload(context.Background(), bytes.NewReader(nil), 0, "Not A Bucket!")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidBucketID))

	fp.mu.Lock()
	defer fp.mu.Unlock()
	assert.Empty(t, fp.ops, "nothing may reach the relay for an invalid bucket id")
}

func TestUpload_TransportError(t *testing.T) {
	fp := newFakeProvider(t)
	relayURL := fp.server.URL
	fp.server.Close()

	c := New(relayURL, WithCallTimeout(2*time.Second))

	_, err := c.Upload(context.Background(), bytes.NewReader([]byte("x")), 1, "my-bucket")
	require.Error(t, err)
	assert.True(t, IsUploadFailed(err))
	assert.True(t, errors.Is(err, ErrTransport), "network failure must classify as transport error")
}

func TestUpload_ZeroByteFile(t *testing.T) {
	fp := newFakeProvider(t)
	c := fp.client()

	var snapshots []ProgressSnapshot
	key, err := c.Upload(context.Background(), bytes.NewReader(nil), 0, "my-bucket",
		WithProgress(func(s ProgressSnapshot) {
			snapshots = append(snapshots, s)
		}),
	)
	require.NoError(t, err)
	assert.NotEmpty(t, key)

	require.Len(t, snapshots, 1)
	assert.Equal(t, int64(0), snapshots[0].Loaded)
	assert.Equal(t, 100.0, snapshots[0].Percent)

	parts := fp.finalizedParts()
	require.Len(t, parts, 1)
	assert.Equal(t, 1, parts[0].PartNumber)
}
