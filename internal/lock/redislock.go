// Package lock provides single-attempt re-entrancy guards keyed by string.
package lock

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned when the key is already held.
var ErrLocked = errors.New("lock: already held")

const defaultTTL = 30 * time.Second

// Guard runs fn while holding key, failing fast with ErrLocked when another
// holder exists.
type Guard interface {
	TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Locker provides a Redis-backed distributed lock.
type Locker struct {
	R *redis.Client
}

// TryWithLock makes a single SetNX attempt for key and runs fn while holding
// it. The lock is released when fn returns, even on error. ttl bounds how long
// a crashed holder can block the key.
func (l Locker) TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	token := uuid.NewString()
	ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrLocked
	}
	defer l.release(context.Background(), key, token)
	return fn(ctx)
}

func (l Locker) release(ctx context.Context, key, token string) {
	const script = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`
	if err := l.R.Eval(ctx, script, []string{key}, token).Err(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unknown command") {
			_ = l.R.Del(ctx, key).Err()
		}
	}
}

// Local is an in-process Guard for deployments without Redis.
type Local struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

// NewLocal constructs a Local guard.
func NewLocal() *Local {
	return &Local{held: make(map[string]time.Time), now: time.Now}
}

// TryWithLock implements Guard. Expired holds are ignored.
func (l *Local) TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	now := l.now()
	l.mu.Lock()
	if until, ok := l.held[key]; ok && now.Before(until) {
		l.mu.Unlock()
		return ErrLocked
	}
	l.held[key] = now.Add(ttl)
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}()
	return fn(ctx)
}
