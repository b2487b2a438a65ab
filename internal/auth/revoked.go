package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revoker tracks invalidated tokens so logout takes effect before natural
// expiry. A revoked token must never pass the access-control gate again even
// though its signature remains valid.
type Revoker interface {
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// hashToken keys registry entries by digest so raw tokens never land in the
// shared store.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// RedisRevoker is the production registry: a shared keyed store with
// per-entry expiry, so revocation is visible across all server instances and
// entries evict themselves once the token would fail expiry verification
// anyway.
type RedisRevoker struct {
	client *redis.Client
}

func NewRedisRevoker(client *redis.Client) *RedisRevoker {
	return &RedisRevoker{client: client}
}

func (r *RedisRevoker) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// Already past natural expiry; signature verification rejects it.
		return nil
	}
	return r.client.Set(ctx, "revoked:"+hashToken(token), "1", ttl).Err()
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := r.client.Exists(ctx, "revoked:"+hashToken(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MemoryRevoker is a process-local registry for tests and single-node
// development. It has no cross-instance visibility and does not survive
// restarts.
type MemoryRevoker struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{entries: make(map[string]time.Time)}
}

func (m *MemoryRevoker) Revoke(_ context.Context, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purge()
	m.entries[hashToken(token)] = expiresAt
	return nil
}

func (m *MemoryRevoker) IsRevoked(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purge()
	_, ok := m.entries[hashToken(token)]
	return ok, nil
}

// purge drops entries whose tokens have passed natural expiry. Callers hold
// the lock.
func (m *MemoryRevoker) purge() {
	now := time.Now().UTC()
	for k, exp := range m.entries {
		if now.After(exp) {
			delete(m.entries, k)
		}
	}
}
