package inflight

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultLeaseTTL bounds how long a crashed client can hold a slot.
const DefaultLeaseTTL = 2 * time.Minute

// releaseScript deletes the lease only if it still belongs to the caller.
// KEYS[1] = lease key
// ARGV[1] = owner token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard implements Guard with SET NX PX leases.
type RedisGuard struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisGuard creates a guard on an existing client.
func NewRedisGuard(client redis.UniversalClient, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	return &RedisGuard{
		client: client,
		prefix: "scalegate:inflight:",
		ttl:    ttl,
		logger: slog.Default().With("component", "inflight"),
	}
}

// NewRedisGuardFromAddr dials addr.
func NewRedisGuardFromAddr(addr, password string, db int) *RedisGuard {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisGuard(rdb, DefaultLeaseTTL)
}

// Close closes the underlying client.
func (g *RedisGuard) Close() error { return g.client.Close() }

// Ping checks connectivity.
func (g *RedisGuard) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}

func (g *RedisGuard) TryAcquire(ctx context.Context, key string) (Release, error) {
	leaseKey := g.prefix + key
	token := uuid.New().String()

	ok, err := g.client.SetNX(ctx, leaseKey, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis inflight acquire: %w", err)
	}
	if !ok {
		return nil, ErrHeld
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's ctx may already be done; release on a short fresh one.
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, g.client, []string{leaseKey}, token).Err(); err != nil {
				g.logger.Warn("inflight release failed", "key", key, "error", err)
			}
		})
	}, nil
}
