package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrBusy is returned when the key is still held by another caller once
	// Wait has elapsed.
	ErrBusy = errors.New("lock: key is busy")

	errNoClient = errors.New("lock: redis client not configured")
)

const (
	defaultTTL     = 30 * time.Second
	defaultBackoff = 50 * time.Millisecond
)

// releaseScript deletes the key only while it still carries our token, so a
// holder whose TTL lapsed cannot free a lock someone else has since taken.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a Redis lock shared by every API instance. Sessions use it to
// serialise read-modify-write cycles, the outbox relay to elect one runner.
type Locker struct {
	R            redis.Cmdable
	RetryBackoff time.Duration
	// Wait bounds how long WithLock polls for the key. Zero waits until ctx
	// is done.
	Wait time.Duration
}

// WithLock runs fn while holding key. The key expires after ttl even if the
// process dies; it is released when fn returns, whatever the outcome.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errNoClient
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	token := uuid.NewString()
	if err := l.acquire(ctx, key, token, ttl); err != nil {
		return err
	}
	defer func() {
		_ = releaseScript.Run(context.WithoutCancel(ctx), l.R, []string{key}, token).Err()
	}()
	return fn(ctx)
}

func (l Locker) acquire(ctx context.Context, key, token string, ttl time.Duration) error {
	backoff := l.RetryBackoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	var deadline <-chan time.Time
	if l.Wait > 0 {
		t := time.NewTimer(l.Wait)
		defer t.Stop()
		deadline = t.C
	}
	ticker := time.NewTicker(backoff)
	defer ticker.Stop()

	for {
		ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return ErrBusy
		case <-ticker.C:
		}
	}
}
