// Package ratelimit caps requests per client key on sensitive endpoints.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Limiter decides whether one more request for key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// fixedWindowScript increments the window counter and sets its expiry on
// first use, atomically.
const fixedWindowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
	return 0
end
return 1
`

// RedisFixedWindow counts requests per key in fixed windows shared by every
// instance of the service.
type RedisFixedWindow struct {
	client *redis.Client
	script *redis.Script
	prefix string
	limit  int
	window time.Duration
}

// NewRedisFixedWindow allows limit requests per window for each key.
func NewRedisFixedWindow(client *redis.Client, prefix string, limit int, window time.Duration) *RedisFixedWindow {
	return &RedisFixedWindow{
		client: client,
		script: redis.NewScript(fixedWindowScript),
		prefix: prefix,
		limit:  limit,
		window: window,
	}
}

func (l *RedisFixedWindow) Allow(ctx context.Context, key string) (bool, error) {
	seconds := int(l.window.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	res, err := l.script.Run(ctx, l.client, []string{l.prefix + key}, l.limit, seconds).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// Local keeps one token bucket per key in process memory. Idle buckets are
// dropped after ttl.
type Local struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	now     func() time.Time
	swept   time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewLocal allows bursts of limit requests refilled evenly over window.
func NewLocal(limit int, window time.Duration) *Local {
	if limit < 1 {
		limit = 1
	}
	return &Local{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(float64(limit) / window.Seconds()),
		burst:   limit,
		ttl:     window * 5,
		now:     time.Now,
	}
}

func (l *Local) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.swept) > l.ttl {
		for k, b := range l.buckets {
			if now.Sub(b.seen) > l.ttl {
				delete(l.buckets, k)
			}
		}
		l.swept = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1), nil
}

// Fallback uses primary and switches to secondary for any call where primary
// errors, so an unavailable Redis never blocks traffic outright.
type Fallback struct {
	primary   Limiter
	secondary Limiter
	logger    *zap.Logger
}

// NewFallback composes two limiters.
func NewFallback(primary, secondary Limiter, logger *zap.Logger) *Fallback {
	return &Fallback{primary: primary, secondary: secondary, logger: logger}
}

func (f *Fallback) Allow(ctx context.Context, key string) (bool, error) {
	ok, err := f.primary.Allow(ctx, key)
	if err == nil {
		return ok, nil
	}
	f.logger.Warn("primary rate limiter failed; using local buckets", zap.Error(err))
	return f.secondary.Allow(ctx, key)
}

// New builds the limiter for one endpoint scope. A nil client yields a
// process-local limiter.
func New(client *redis.Client, scope string, limit int, window time.Duration, logger *zap.Logger) Limiter {
	local := NewLocal(limit, window)
	if client == nil {
		return local
	}
	return NewFallback(NewRedisFixedWindow(client, "ratelimit:"+scope+":", limit, window), local, logger)
}
