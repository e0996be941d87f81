package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClaimStore is the atomic check-and-set registry that keeps at most one
// cascade in flight per key. Claims expire after a TTL so a crashed worker
// never wedges a key forever.
type ClaimStore interface {
	// Claim atomically takes the key. Reports false when someone else
	// already holds it.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
	InFlight(ctx context.Context, key string) (bool, error)
}

// RedisClaims backs the registry with SETNX so multiple instances share it.
type RedisClaims struct {
	client *redis.Client
}

func NewRedisClaims(client *redis.Client) *RedisClaims {
	return &RedisClaims{client: client}
}

func (r *RedisClaims) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, "1", ttl).Result()
}

func (r *RedisClaims) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisClaims) InFlight(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MemoryClaims is the single-process fallback, used when Redis is not
// configured and in tests.
type MemoryClaims struct {
	mu     sync.Mutex
	expiry map[string]time.Time
}

func NewMemoryClaims() *MemoryClaims {
	return &MemoryClaims{expiry: make(map[string]time.Time)}
}

func (m *MemoryClaims) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if exp, ok := m.expiry[key]; ok && time.Now().Before(exp) {
		return false, nil
	}
	m.expiry[key] = time.Now().Add(ttl)
	return true, nil
}

func (m *MemoryClaims) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.expiry, key)
	return nil
}

func (m *MemoryClaims) InFlight(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.expiry[key]
	return ok && time.Now().Before(exp), nil
}
