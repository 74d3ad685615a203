package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SessionTTL is how long an upload session may stay open before it expires.
// Abandoned sessions disappear after this without an explicit abort.
const SessionTTL = time.Hour

// UploadSession is the server-side state of one multipart upload, keyed by
// the opaque session token issued at init.
type UploadSession struct {
	BucketID    string    `json:"bucket_id"`
	Key         string    `json:"key"`
	UploadID    string    `json:"upload_id"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// SessionStore persists upload sessions between the init, part-url,
// finalize, and abort calls. Get returns (nil, nil) for an unknown or
// expired token.
type SessionStore interface {
	Put(ctx context.Context, token string, session *UploadSession) error
	Get(ctx context.Context, token string) (*UploadSession, error)
	Delete(ctx context.Context, token string) error
}

// MemorySessionStore keeps sessions in process memory. Suitable for a single
// dev backend instance and for tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]memorySession
}

type memorySession struct {
	session   *UploadSession
	expiresAt time.Time
}

// NewMemorySessionStore creates an empty in-memory store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]memorySession)}
}

// Put stores a session under token with the standard TTL.
func (ms *MemorySessionStore) Put(ctx context.Context, token string, session *UploadSession) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.sessions[token] = memorySession{session: session, expiresAt: time.Now().Add(SessionTTL)}
	return nil
}

// Get returns the session for token, or (nil, nil) if unknown or expired.
func (ms *MemorySessionStore) Get(ctx context.Context, token string) (*UploadSession, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	entry, ok := ms.sessions[token]
	if !ok {
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(ms.sessions, token)
		return nil, nil
	}
	return entry.session, nil
}

// Delete removes the session for token. Deleting an unknown token is a
// no-op.
func (ms *MemorySessionStore) Delete(ctx context.Context, token string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.sessions, token)
	return nil
}

// RedisSessionStore keeps sessions in Redis with TTL-based expiry, so
// multiple backend instances can share them.
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore connects to Redis and verifies the connection.
func NewRedisSessionStore(addr, password string, db int) (*RedisSessionStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &RedisSessionStore{client: client}, nil
}

// Close closes the Redis connection.
func (rs *RedisSessionStore) Close() error {
	return rs.client.Close()
}

// Put stores a session under token with the standard TTL.
func (rs *RedisSessionStore) Put(ctx context.Context, token string, session *UploadSession) error {
	ctx, span := tracer.Start(ctx, "redis.put_session",
		trace.WithAttributes(attribute.String("object_key", session.Key)),
	)
	defer span.End()

	data, err := json.Marshal(session)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := rs.client.Set(ctx, sessionKey(token), data, SessionTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to store session: %w", err)
	}

	return nil
}

// Get returns the session for token, or (nil, nil) if unknown or expired.
func (rs *RedisSessionStore) Get(ctx context.Context, token string) (*UploadSession, error) {
	ctx, span := tracer.Start(ctx, "redis.get_session")
	defer span.End()

	data, err := rs.client.Get(ctx, sessionKey(token)).Result()
	if err == redis.Nil {
		span.SetAttributes(attribute.Bool("found", false))
		return nil, nil
	} else if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var session UploadSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}

// Delete removes the session for token.
func (rs *RedisSessionStore) Delete(ctx context.Context, token string) error {
	ctx, span := tracer.Start(ctx, "redis.delete_session")
	defer span.End()

	if err := rs.client.Del(ctx, sessionKey(token)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

func sessionKey(token string) string {
	return fmt.Sprintf("upload-session:%s", token)
}
