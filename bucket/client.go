package bucket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/One-Minute-Stack/oneminutecloud-storage-bucket-next/internal/wire"
)

var tracer = otel.Tracer("oneminutecloud-bucket")

// DefaultProvider is the relay routing discriminator used when none is set.
const DefaultProvider = "oneminutecloud"

// DefaultCallTimeout bounds each individual network call.
const DefaultCallTimeout = 60 * time.Second

// Client talks to a trusted relay that brokers presigned URLs. It holds no
// session state; every Upload and Preview call is self-contained. The secret
// API key lives on the relay, never here.
type Client struct {
	relayURL    string
	provider    string
	httpClient  *http.Client
	callTimeout time.Duration
}

// New creates a client pointed at a relay base URL, e.g.
// "https://app.example.com".
func New(relayURL string, opts ...Option) *Client {
	c := &Client{
		relayURL:    strings.TrimRight(relayURL, "/"),
		provider:    DefaultProvider,
		httpClient:  &http.Client{},
		callTimeout: DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// call posts one operation to the relay and decodes the response into out.
// Network failures come back classified as ErrTimeout or ErrTransport;
// application-level rejections come back as plain errors carrying the
// relay's status and message, for the caller to classify.
func (c *Client) call(ctx context.Context, req wire.Request, out any) error {
	ctx, span := tracer.Start(ctx, "relay."+req.Op,
		trace.WithAttributes(attribute.String("provider", c.provider)),
	)
	defer span.End()

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", req.Op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.relayURL+"/api/storage/"+c.provider, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", req.Op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return newError(req.Op, classifyTransport(err), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return newError(req.Op, classifyTransport(err), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		span.SetAttributes(attribute.Int("relay.status", resp.StatusCode))
		return fmt.Errorf("relay returned %d: %s", resp.StatusCode, relayErrorMessage(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", req.Op, err)
		}
	}

	return nil
}

// classifyTransport separates timeout expiry from other network failures.
func classifyTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	return ErrTransport
}

func relayErrorMessage(body []byte) string {
	var er wire.ErrorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error != "" {
		return er.Error
	}
	return strings.TrimSpace(string(body))
}
