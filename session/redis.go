package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hupe1980/chatgraph/core"
	"github.com/redis/go-redis/v9"
)

var _ core.SessionStore = (*RedisStore)(nil)

// RedisStoreOptions configure key naming and expiry for the Redis backend.
type RedisStoreOptions struct {
	// KeyPrefix is prepended to session IDs to form Redis keys.
	KeyPrefix string
	// TTL expires idle sessions. Zero means no expiry.
	TTL time.Duration
}

// RedisStore persists sessions as JSON values in Redis. Suitable for
// deployments where multiple instances share conversation state.
type RedisStore struct {
	client *redis.Client
	opts   RedisStoreOptions
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client, optFns ...func(o *RedisStoreOptions)) *RedisStore {
	opts := RedisStoreOptions{
		KeyPrefix: "chatgraph:session:",
		TTL:       30 * 24 * time.Hour,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &RedisStore{client: client, opts: opts}
}

// Load fetches and decodes the session, returning (nil, nil) when the key is absent.
func (s *RedisStore) Load(ctx context.Context, sessionID string) (*core.Session, error) {
	data, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, &core.PersistenceError{SessionID: sessionID, Err: err}
	}
	var sess core.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, &core.PersistenceError{SessionID: sessionID, Err: err}
	}
	return &sess, nil
}

// Save encodes the session and writes it with the configured TTL.
func (s *RedisStore) Save(ctx context.Context, sess *core.Session) error {
	sess.Updated = time.Now().UTC()
	data, err := json.Marshal(sess)
	if err != nil {
		return &core.PersistenceError{SessionID: sess.ID, Err: err}
	}
	if err := s.client.Set(ctx, s.key(sess.ID), data, s.opts.TTL).Err(); err != nil {
		return &core.PersistenceError{SessionID: sess.ID, Err: err}
	}
	return nil
}

// Delete removes the session key, reporting whether it existed.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Del(ctx, s.key(sessionID)).Result()
	if err != nil {
		return false, &core.PersistenceError{SessionID: sessionID, Err: err}
	}
	return n > 0, nil
}

func (s *RedisStore) key(sessionID string) string {
	return s.opts.KeyPrefix + sessionID
}
