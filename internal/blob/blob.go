// Package blob provides the durable key-value store that session state is
// serialized into on change and rehydrated from on start.
package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Store persists opaque JSON blobs under string keys. A missing key loads as
// a nil blob, not an error.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Key builds the canonical key for a store owned by a user.
// Guest sessions use the session id as owner.
func Key(owner, store string) string {
	return fmt.Sprintf("storefront:state:%s:%s", owner, store)
}

// LoadJSON loads and unmarshals a blob into dst. It reports whether the key
// existed.
func LoadJSON(ctx context.Context, s Store, key string, dst any) (bool, error) {
	raw, err := s.Load(ctx, key)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("blob: decode %s: %w", key, err)
	}
	return true, nil
}

// SaveJSON marshals v and stores it under key.
func SaveJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("blob: encode %s: %w", key, err)
	}
	return s.Save(ctx, key, raw)
}

// RedisStore keeps blobs in Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps a Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Load fetches the blob, returning nil when the key does not exist.
func (r *RedisStore) Load(ctx context.Context, key string) ([]byte, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("blob: load %s: %w", key, err)
	}
	return raw, nil
}

// Save writes the blob with no expiry; state lives until replaced or deleted.
func (r *RedisStore) Save(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("blob: save %s: %w", key, err)
	}
	return nil
}

// Delete removes the blob; deleting a missing key is not an error.
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("blob: delete %s: %w", key, err)
	}
	return nil
}

// MemoryStore is an in-process Store for tests and single-node runs.
type MemoryStore struct {
	data map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Load returns a copy of the stored blob, or nil when absent.
func (m *MemoryStore) Load(_ context.Context, key string) ([]byte, error) {
	raw, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return cp, nil
}

// Save stores a copy of the blob.
func (m *MemoryStore) Save(_ context.Context, key string, value []byte) error {
	cp := make([]byte, len(value))
	copy(cp, value)
	m.data[key] = cp
	return nil
}

// Delete removes the key.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}
