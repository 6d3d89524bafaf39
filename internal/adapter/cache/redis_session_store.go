package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Session links a browser session cookie to a resolved identity for the
// website OAuth flow, where no signed request accompanies each navigation.
type Session struct {
	FacebookID string    `json:"facebook_id"`
	UserID     int64     `json:"user_id"`
	TokenID    int64     `json:"token_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// SessionStore persists web OAuth sessions.
type SessionStore interface {
	Save(ctx context.Context, key string, session Session, ttl time.Duration) error
	Get(ctx context.Context, key string) (*Session, error)
	Delete(ctx context.Context, key string) error
}

// RedisSessionStore implements SessionStore backed by Redis.
type RedisSessionStore struct {
	client redis.UniversalClient
}

var _ SessionStore = (*RedisSessionStore)(nil)

// NewRedisSessionStore constructs a Redis-backed session store.
func NewRedisSessionStore(client redis.UniversalClient) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func sessionKey(key string) string {
	return "fandjango:session:" + key
}

// Save stores the encoded session payload with TTL.
func (s *RedisSessionStore) Save(ctx context.Context, key string, session Session, ttl time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(key), payload, ttl).Err(); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// Get loads and decodes the session payload. A missing key yields (nil, nil).
func (s *RedisSessionStore) Get(ctx context.Context, key string) (*Session, error) {
	bytes, err := s.client.Get(ctx, sessionKey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	var session Session
	if err := json.Unmarshal(bytes, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

// Delete removes the persisted session key.
func (s *RedisSessionStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, sessionKey(key)).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
