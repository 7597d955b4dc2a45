package ratelimit

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/resto-pricing/internal/common"
)

// Backend counts events for a key inside a window.
type Backend interface {
	Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, reset time.Time, err error)
}

// Config selects the bucket a request counts against and its budget.
// A non-positive Max disables limiting.
type Config struct {
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
}

// Handler is a rate limiting middleware. Backend failures are reported to
// OnError and the request is served anyway.
type Handler struct {
	Limiter Backend
	Config  Config
	OnError func(error)
	Now     func() time.Time
}

func (h Handler) Middleware(next http.Handler) http.Handler {
	if h.Limiter == nil || h.Config.Key == nil || h.Config.Max <= 0 {
		return next
	}
	now := h.Now
	if now == nil {
		now = time.Now
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, remaining, resetAt, err := h.Limiter.Allow(r.Context(), h.Config.Key(r), h.Config.Window, h.Config.Max)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}
		setLimitHeaders(w.Header(), h.Config.Max, remaining, resetAt)
		if allowed {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(resetAt.Sub(now()))))
		common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded", map[string]any{
			"limit":  h.Config.Max,
			"window": h.Config.Window.String(),
		})
	})
}

func setLimitHeaders(hdr http.Header, limit, remaining int, resetAt time.Time) {
	hdr.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	hdr.Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
	hdr.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
}

// retryAfterSeconds rounds up so clients never retry before the window moves.
func retryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

// SessionKey limits per pricing session and client address.
func SessionKey(r *http.Request) string {
	return "submit:" + chi.URLParam(r, "id") + ":" + common.ClientIP(r)
}
