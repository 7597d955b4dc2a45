package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type failingBackend struct{}

func (failingBackend) Allow(context.Context, string, time.Duration, int) (bool, int, time.Time, error) {
	return false, 0, time.Time{}, errors.New("redis down")
}

func created(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusCreated) }

func TestHandlerMiddlewareEnforcesLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	start := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	clock := func() time.Time { return start }
	handler := Handler{
		Limiter: Limiter{Client: client, Prefix: "ratelimit:", Now: clock},
		Config:  Config{Key: func(*http.Request) string { return "static" }, Window: 90 * time.Second, Max: 1},
		Now:     clock,
	}.Middleware(http.HandlerFunc(created))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/sessions/s-1/submit", nil))
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/sessions/s-1/submit", nil))
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.Equal(t, "1", rr.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "90", rr.Header().Get("Retry-After"))
	require.Contains(t, rr.Body.String(), "RATE_LIMITED")
}

func TestHandlerMiddlewareFailsOpen(t *testing.T) {
	var reported error
	handler := Handler{
		Limiter: failingBackend{},
		Config:  Config{Key: func(*http.Request) string { return "err" }, Window: time.Second, Max: 1},
		OnError: func(err error) { reported = err },
	}.Middleware(http.HandlerFunc(created))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))
	require.Equal(t, http.StatusCreated, rr.Code)
	require.EqualError(t, reported, "redis down")
	require.Empty(t, rr.Header().Get("X-RateLimit-Limit"))
}

func TestHandlerMiddlewareDisabledWithoutBudget(t *testing.T) {
	handler := Handler{
		Limiter: failingBackend{},
		Config:  Config{Key: func(*http.Request) string { return "k" }, Window: time.Second},
		OnError: func(error) { t.Fatal("limiter must not be consulted") },
	}.Middleware(http.HandlerFunc(created))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/x", nil))
	require.Equal(t, http.StatusCreated, rr.Code)
}

func TestRetryAfterRoundsUp(t *testing.T) {
	require.Equal(t, 0, retryAfterSeconds(-time.Second))
	require.Equal(t, 1, retryAfterSeconds(10*time.Millisecond))
	require.Equal(t, 3, retryAfterSeconds(2500*time.Millisecond))
}

func TestSessionKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/sessions/abc/submit", nil)
	req.RemoteAddr = "10.0.0.7:5123"
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "abc")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	require.Equal(t, "submit:abc:10.0.0.7", SessionKey(req))
}
