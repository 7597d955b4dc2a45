package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:51234"
	require.Equal(t, "203.0.113.9", ClientIP(req))

	req.RemoteAddr = "[::ffff:10.0.0.7]:80"
	require.Equal(t, "10.0.0.7", ClientIP(req))

	req.RemoteAddr = "10.1.1.1"
	req.Header.Set("X-Forwarded-For", "198.51.100.1")
	require.Equal(t, "10.1.1.1", ClientIP(req), "headers are RealIP's job")
	require.Empty(t, ClientIP(nil))
}

func TestParsePagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/orders?page=3&limit=500", nil)
	page, perPage := ParsePagination(req, 20, 100)
	require.Equal(t, 3, page)
	require.Equal(t, 100, perPage)

	req = httptest.NewRequest(http.MethodGet, "/orders?page=-1&limit=abc", nil)
	page, perPage = ParsePagination(req, 20, 100)
	require.Equal(t, 1, page)
	require.Equal(t, 20, perPage)

	require.Equal(t, 3, NewPagination(1, 20, 41).TotalPages)
	require.Zero(t, NewPagination(1, 20, 0).TotalPages)
}

func TestWriteErrorUsesWrappedAppError(t *testing.T) {
	base := NewAppError("INVALID_PERCENT", "discount percent must be between 0 and 100", http.StatusUnprocessableEntity, errors.New("150"))
	err := fmt.Errorf("set discount: %w", base.WithDetails(map[string]any{"percent": 150}))
	require.True(t, IsAppError(err))
	require.Nil(t, base.Details)

	rec := httptest.NewRecorder()
	WriteError(rec, err)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body struct {
		Error ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "INVALID_PERCENT", body.Error.Code)
	require.Equal(t, map[string]any{"percent": float64(150)}, body.Error.Details)

	rec = httptest.NewRecorder()
	WriteError(rec, errors.New("boom"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
