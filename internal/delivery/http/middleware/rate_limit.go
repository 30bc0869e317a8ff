package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"ekuphumuleni-api/internal/delivery/http/response"
	"ekuphumuleni-api/internal/metrics"
	"ekuphumuleni-api/pkg/apperror"
	"ekuphumuleni-api/pkg/security"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateDecision is the outcome of counting one request against a key.
type RateDecision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RateStore counts requests per key within a fixed window.
type RateStore interface {
	Take(ctx context.Context, key string, limit int, window time.Duration) (RateDecision, error)
	Name() string
}

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// Requests per window
	Limit  int
	Window time.Duration
	// Primary store; nil means in-memory only
	Store RateStore
	// Custom key extractor (default: client IP)
	KeyFunc   func(*gin.Context) string
	KeyPrefix string
	// Reject with 503 instead of falling back when the primary store errors
	FailClosed bool
	Logger     *slog.Logger
	// Security receives rate_limit_triggered events; nil disables them
	Security *security.SecurityLogger
}

// ContactRateLimitConfig limits contact submissions per client IP.
func ContactRateLimitConfig(limit int, window time.Duration, store RateStore, logger *slog.Logger) RateLimitConfig {
	return RateLimitConfig{
		Limit:     limit,
		Window:    window,
		Store:     store,
		KeyPrefix: "rl:contact:",
		Logger:    logger,
	}
}

// RateLimitMiddleware counts requests in the configured store and falls back to
// an in-process limiter when the store is missing or failing.
func RateLimitMiddleware(config RateLimitConfig) gin.HandlerFunc {
	if config.KeyFunc == nil {
		config.KeyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	fallback := NewMemoryRateStore()

	return func(c *gin.Context) {
		if config.Limit <= 0 {
			c.Next()
			return
		}

		key := config.KeyPrefix + config.KeyFunc(c)

		var store RateStore = fallback
		if config.Store != nil {
			store = config.Store
		}

		decision, err := store.Take(c.Request.Context(), key, config.Limit, config.Window)
		if err != nil {
			config.Logger.Warn("rate limit store failed",
				"store", store.Name(),
				"request_id", c.GetString(response.RequestIDKey),
				"error", err,
			)
			if config.FailClosed {
				_ = c.Error(apperror.Unavailable("Service temporarily unavailable. Please try again.", err))
				c.Abort()
				return
			}
			store = fallback
			decision, _ = fallback.Take(c.Request.Context(), key, config.Limit, config.Window)
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(config.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			metrics.RateLimitedTotal.WithLabelValues(store.Name()).Inc()
			config.Logger.Info("rate limit exceeded",
				"store", store.Name(),
				"path", c.FullPath(),
				"request_id", c.GetString(response.RequestIDKey),
			)
			config.Security.LogRateLimitTriggered(c.Request.Context(),
				c.ClientIP(), c.Request.UserAgent(), c.GetString(response.RequestIDKey), c.FullPath(), store.Name(),
			)
			_ = c.Error(apperror.TooManyRequests("Too many messages. Please try again later.", time.Until(decision.ResetAt)))
			c.Abort()
			return
		}

		c.Next()
	}
}

// Atomic increment with TTL on first hit.
// KEYS[1] = counter key, ARGV[1] = window in milliseconds.
// Returns {count, ttl_ms}.
var rateLimitScript = goredis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
return {count, ttl}
`)

// RedisRateStore keeps fixed-window counters in Redis so limits hold across replicas.
type RedisRateStore struct {
	client goredis.Scripter
}

func NewRedisRateStore(client goredis.Scripter) *RedisRateStore {
	return &RedisRateStore{client: client}
}

func (s *RedisRateStore) Name() string { return "redis" }

func (s *RedisRateStore) Take(ctx context.Context, key string, limit int, window time.Duration) (RateDecision, error) {
	result, err := rateLimitScript.Run(ctx, s.client, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return RateDecision{}, fmt.Errorf("redis rate limit script: %w", err)
	}
	if len(result) < 2 {
		return RateDecision{}, fmt.Errorf("unexpected redis result %v", result)
	}

	count, ttl := int(result[0]), time.Duration(result[1])*time.Millisecond
	if ttl < 0 {
		ttl = window
	}

	return decide(count, limit, time.Now().Add(ttl)), nil
}

func decide(count, limit int, resetAt time.Time) RateDecision {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return RateDecision{
		Allowed:   count <= limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

type memoryEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryRateStore is a per-key token bucket. The bucket holds limit tokens and
// refills one every window/limit, so a full burst is followed by a steady trickle.
type MemoryRateStore struct {
	mu        sync.Mutex
	entries   map[string]*memoryEntry
	lastSweep time.Time
	now       func() time.Time
}

func NewMemoryRateStore() *MemoryRateStore {
	return &MemoryRateStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryRateStore) Name() string { return "memory" }

func (s *MemoryRateStore) Take(_ context.Context, key string, limit int, window time.Duration) (RateDecision, error) {
	now := s.now()
	if limit <= 0 {
		return RateDecision{Allowed: true, ResetAt: now}, nil
	}
	interval := window / time.Duration(limit)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep(now, window)

	entry, ok := s.entries[key]
	if !ok {
		entry = &memoryEntry{limiter: rate.NewLimiter(rate.Every(interval), limit)}
		s.entries[key] = entry
	}
	entry.lastSeen = now

	if entry.limiter.AllowN(now, 1) {
		remaining := int(entry.limiter.TokensAt(now))
		missing := time.Duration(limit-remaining) * interval
		return RateDecision{Allowed: true, Remaining: remaining, ResetAt: now.Add(missing)}, nil
	}

	r := entry.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	r.CancelAt(now)

	return RateDecision{Allowed: false, Remaining: 0, ResetAt: now.Add(delay)}, nil
}

// sweep drops keys idle for a full window, at most once per window. Caller holds mu.
func (s *MemoryRateStore) sweep(now time.Time, window time.Duration) {
	if now.Sub(s.lastSweep) < window {
		return
	}
	s.lastSweep = now
	for key, entry := range s.entries {
		if now.Sub(entry.lastSeen) >= window {
			delete(s.entries, key)
		}
	}
}
