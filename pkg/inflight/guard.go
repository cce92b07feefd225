// Package inflight enforces at most one in-flight call per operation slot.
//
// LocalGuard covers a single process. RedisGuard extends the same rule to
// every client sharing a Redis instance, so two operators cannot generate the
// same sector at once.
package inflight

import (
	"context"
	"errors"
	"sync"
)

// ErrHeld is returned when the slot is already taken.
var ErrHeld = errors.New("operation already in flight")

// Release frees an acquired slot. It is safe to call more than once.
type Release func()

// Guard hands out exclusive slots by key.
type Guard interface {
	TryAcquire(ctx context.Context, key string) (Release, error)
}

// LocalGuard is an in-process Guard.
type LocalGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalGuard() *LocalGuard {
	return &LocalGuard{held: make(map[string]struct{})}
}

func (g *LocalGuard) TryAcquire(_ context.Context, key string) (Release, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.held[key]; ok {
		return nil, ErrHeld
	}
	g.held[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, key)
			g.mu.Unlock()
		})
	}, nil
}

// Held reports whether key is currently taken.
func (g *LocalGuard) Held(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.held[key]
	return ok
}
