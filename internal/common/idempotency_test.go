package common

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newIdem(t *testing.T) (Idem, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return Idem{R: client, TTL: time.Minute}, mr
}

func submitRequest(key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/s-1/submit", nil)
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req
}

func TestIdemReplaysStoredResponse(t *testing.T) {
	idem, _ := newIdem(t)
	calls := 0
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		JSON(w, http.StatusCreated, map[string]any{"data": map[string]string{"id": "order-1"}})
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, submitRequest("k-1"))
	require.Equal(t, http.StatusCreated, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, submitRequest("k-1"))
	require.Equal(t, http.StatusCreated, second.Code)
	require.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	require.Equal(t, "application/json", second.Header().Get("Content-Type"))
	require.JSONEq(t, first.Body.String(), second.Body.String())
	require.Equal(t, 1, calls)

	other := httptest.NewRecorder()
	h.ServeHTTP(other, submitRequest("k-2"))
	require.Equal(t, 2, calls)
}

func TestIdemReleasesKeyOnFailure(t *testing.T) {
	idem, _ := newIdem(t)
	status := http.StatusUnprocessableEntity
	calls := 0
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(status)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, submitRequest("k-1"))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	status = http.StatusCreated
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, submitRequest("k-1"))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, 2, calls)
}

func TestIdemPendingKeyConflicts(t *testing.T) {
	idem, mr := newIdem(t)
	req := submitRequest("k-1")
	require.NoError(t, mr.Set(hashKey(req, "k-1"), idemPending))

	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run while the key is pending")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "IDEMPOTENT_IN_PROGRESS")
}

func TestIdemWithoutKeyPassesThrough(t *testing.T) {
	idem, mr := newIdem(t)
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, submitRequest(""))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, mr.Keys())
}
