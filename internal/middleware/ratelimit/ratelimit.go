package ratelimit

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RateLimiter is a per-client token bucket guarding the events that reach
// the solving service: solve and feedback submission.
type RateLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	capacity   float64
	perToken   time.Duration
	idleExpiry time.Duration
	now        func() time.Time
	logger     *zap.Logger
	stop       chan struct{}
	stopOnce   sync.Once
}

type bucket struct {
	tokens float64
	last   time.Time
}

type Config struct {
	MaxEventsPerMinute int
	Window             time.Duration
	Now                func() time.Time
	Logger             *zap.Logger
}

func New(cfg Config) *RateLimiter {
	if cfg.MaxEventsPerMinute <= 0 {
		cfg.MaxEventsPerMinute = 30
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &RateLimiter{
		buckets:    make(map[string]*bucket),
		capacity:   float64(cfg.MaxEventsPerMinute),
		perToken:   cfg.Window / time.Duration(cfg.MaxEventsPerMinute),
		idleExpiry: 2 * cfg.Window,
		now:        cfg.Now,
		logger:     cfg.Logger,
		stop:       make(chan struct{}),
	}
}

// Allow spends one token from key's bucket.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: rl.capacity, last: now}
		rl.buckets[key] = b
	}

	if elapsed := now.Sub(b.last); elapsed > 0 {
		b.tokens += float64(elapsed) / float64(rl.perToken)
		if b.tokens > rl.capacity {
			b.tokens = rl.capacity
		}
		b.last = now
	}

	if b.tokens < 1 {
		rl.logger.Warn("Rate limit exceeded", zap.String("key", key))
		return false
	}
	b.tokens--
	return true
}

// Middleware limits by client IP.
func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !rl.Allow(c.IP()) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Please wait before trying again.",
			})
		}
		return c.Next()
	}
}

// Sweep drops buckets idle for longer than two windows.
func (rl *RateLimiter) Sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		if now.Sub(b.last) > rl.idleExpiry {
			delete(rl.buckets, key)
		}
	}
}

// StartSweeper runs Sweep every interval until Stop.
func (rl *RateLimiter) StartSweeper(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Sweep()
			case <-rl.stop:
				return
			}
		}
	}()
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}
