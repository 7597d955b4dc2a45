package security

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/resto-pricing/internal/common"
)

func decodingHandler(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := common.DecodeJSON(r, &body); err != nil {
			common.WriteError(w, err)
			return
		}
		common.JSON(w, http.StatusOK, body)
	})
}

func TestBodyLimitAllowsWithinLimit(t *testing.T) {
	var captured string
	handler := BodyLimit{Max: 10}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		captured = string(data)
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/payload", strings.NewReader(`{"a":1}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, `{"a":1}`, captured)
}

func TestBodyLimitRejectsUndeclaredOversizedBody(t *testing.T) {
	handler := BodyLimit{Max: 5}.Middleware(decodingHandler(t))

	req := httptest.NewRequest(http.MethodPost, "/payload", strings.NewReader(`{"percent":10}`))
	req.ContentLength = -1
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	require.Contains(t, rr.Body.String(), "PAYLOAD_TOO_LARGE")
}

func TestBodyLimitRejectsContentLength(t *testing.T) {
	called := false
	handler := BodyLimit{Max: 5}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodPost, "/payload", strings.NewReader("content"))
	req.ContentLength = 100
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	require.False(t, called)
}

func TestBodyLimitRequiresJSON(t *testing.T) {
	handler := BodyLimit{Max: 100, RequireJSON: true}.Middleware(decodingHandler(t))

	req := httptest.NewRequest(http.MethodPost, "/payload", strings.NewReader(`points=100`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnsupportedMediaType, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/payload", strings.NewReader(`{"points":100}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestBodyLimitSkipsEmptyBody(t *testing.T) {
	handler := BodyLimit{Max: 1, RequireJSON: true}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/sessions/s-1/submit", nil))
	require.Equal(t, http.StatusCreated, rr.Code)
}
