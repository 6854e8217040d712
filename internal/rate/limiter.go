package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds sign-in throttle tuning parameters.
type Config struct {
	// Prefix namespaces every key. Defaults to "authstate".
	Prefix           string
	EnableIPThrottle bool
	MaxAttempts      int
	Cooldown         time.Duration
}

// Limiter counts failed sign-ins per email, and optionally per client IP,
// in Redis.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) (*Limiter, error) {
	if redisClient == nil {
		return nil, errors.New("rate: nil redis client")
	}
	if cfg.MaxAttempts <= 0 {
		return nil, errors.New("rate: MaxAttempts must be > 0")
	}
	if cfg.Cooldown <= 0 {
		return nil, errors.New("rate: Cooldown must be > 0")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "authstate"
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}, nil
}

// Check returns ErrRateLimited once the email or IP has used up its budget
// of failed attempts. It does not count an attempt.
func (l *Limiter) Check(ctx context.Context, email, ip string) error {
	if err := l.checkCounter(ctx, l.emailKey(email)); err != nil {
		return err
	}

	if l.config.EnableIPThrottle && ip != "" {
		if err := l.checkCounter(ctx, l.ipKey(ip)); err != nil {
			return err
		}
	}

	return nil
}

// RecordFailure counts a rejected sign-in and reports ErrRateLimited when
// this attempt exhausted the budget.
func (l *Limiter) RecordFailure(ctx context.Context, email, ip string) error {
	count, err := l.incrementWithTTL(ctx, l.emailKey(email))
	if err != nil {
		return err
	}
	limited := count >= int64(l.config.MaxAttempts)

	if l.config.EnableIPThrottle && ip != "" {
		count, err = l.incrementWithTTL(ctx, l.ipKey(ip))
		if err != nil {
			return err
		}
		limited = limited || count >= int64(l.config.MaxAttempts)
	}

	if limited {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the email counter after a successful sign-in. The IP counter
// is kept so one address cannot probe many accounts.
func (l *Limiter) Reset(ctx context.Context, email string) error {
	if err := l.redis.Del(ctx, l.emailKey(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the failed-attempt counter for email. Missing keys
// return zero.
func (l *Limiter) Attempts(ctx context.Context, email string) (int, error) {
	count, err := l.redis.Get(ctx, l.emailKey(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) checkCounter(ctx context.Context, key string) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}

	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed window: the TTL is set on the first hit only.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Cooldown).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func (l *Limiter) emailKey(email string) string {
	return l.config.Prefix + ":si:" + strings.ToLower(strings.TrimSpace(email))
}

func (l *Limiter) ipKey(ip string) string {
	return l.config.Prefix + ":sip:" + ip
}
