package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/resto-pricing/internal/common"
	"github.com/noah-isme/resto-pricing/internal/config"
	"github.com/noah-isme/resto-pricing/internal/lock"
	"github.com/noah-isme/resto-pricing/internal/order"
	"github.com/noah-isme/resto-pricing/internal/ratelimit"
	"github.com/noah-isme/resto-pricing/internal/session"
	"github.com/noah-isme/resto-pricing/internal/settings"
)

type staticSettings struct{}

func (staticSettings) Get(_ context.Context, restaurantID string) (settings.Snapshot, error) {
	if restaurantID != "r-1" {
		return settings.Snapshot{}, settings.ErrNotFound
	}
	return settings.Snapshot{
		RestaurantID: restaurantID,
		Tax: settings.TaxSettings{
			GST: settings.TaxToggle{Enabled: true, TaxRate: decimal.NewFromInt(5)},
		},
		Loyalty:  settings.LoyaltySettings{RedeemRate: decimal.NewFromInt(100), RedeemValue: decimal.NewFromInt(1), EarnRate: decimal.NewFromInt(1)},
		Currency: settings.Currency{Code: "CAD", Symbol: "$"},
	}, nil
}

type zeroBalance struct{}

func (zeroBalance) Balance(context.Context, uuid.UUID) (int64, error) { return 0, nil }

type memOrders struct {
	mu         sync.Mutex
	byID       map[uuid.UUID]order.Order
	byExternal map[string]uuid.UUID
}

func (m *memOrders) Create(_ context.Context, p order.Payload) (order.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byExternal[p.ExternalID]; ok {
		return m.byID[id], false, nil
	}
	ord := order.Order{
		ID:           uuid.New(),
		ExternalID:   p.ExternalID,
		RestaurantID: p.RestaurantID,
		Status:       order.StatusSubmitted,
		Items:        p.Items,
		Total:        p.Total,
		DiscountUsed: p.DiscountUsed,
	}
	m.byID[ord.ID] = ord
	m.byExternal[p.ExternalID] = ord.ID
	return ord, true, nil
}

func (m *memOrders) Get(_ context.Context, id uuid.UUID) (order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ord, ok := m.byID[id]
	if !ok {
		return order.Order{}, order.ErrNotFound
	}
	return ord, nil
}

func (m *memOrders) UpdateStatus(_ context.Context, id uuid.UUID, from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ord, ok := m.byID[id]
	if !ok {
		return order.ErrNotFound
	}
	if ord.Status != from {
		return order.ErrStatusConflict
	}
	ord.Status = to
	m.byID[id] = ord
	return nil
}

func (m *memOrders) List(_ context.Context, restaurantID string, limit, offset int) ([]order.Order, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []order.Order
	for _, ord := range m.byID {
		if ord.RestaurantID == restaurantID {
			out = append(out, ord)
		}
	}
	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func newTestDependencies(t *testing.T, submitMax int) *Dependencies {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := &config.Config{
		BodyLimitBytes:        1 << 20,
		SubmitRateLimitMax:    submitMax,
		SubmitRateLimitWindow: time.Minute,
		IdempotencyTTL:        time.Hour,
	}
	d := &Dependencies{Config: cfg, Logger: zerolog.Nop(), Redis: client}

	var err error
	d.Settings, err = settings.NewService(settings.ServiceConfig{
		Store:  staticSettings{},
		Cache:  settings.NewCache(client, time.Minute),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	d.Orders, err = order.NewService(order.ServiceConfig{
		Repo:   &memOrders{byID: map[uuid.UUID]order.Order{}, byExternal: map[string]uuid.UUID{}},
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	d.Sessions, err = session.NewService(session.ServiceConfig{
		Store:         session.NewStore(client, time.Hour),
		Locker:        lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond},
		Settings:      d.Settings,
		Balances:      zeroBalance{},
		Orders:        d.Orders,
		Logger:        zerolog.Nop(),
		SubmitTimeout: time.Minute,
	})
	require.NoError(t, err)
	d.SubmitLimiter = ratelimit.Limiter{Client: client, Prefix: "ratelimit:"}
	d.Idem = common.Idem{R: client, TTL: cfg.IdempotencyTTL}
	return d
}

func send(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func openSession(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := send(t, h, http.MethodPost, "/api/v1/sessions", `{"restaurantId":"r-1"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var body struct {
		Data struct {
			Session struct {
				ID string `json:"id"`
			} `json:"session"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Data.Session.ID)

	base := "/api/v1/sessions/" + body.Data.Session.ID
	rec = send(t, h, http.MethodPost, base+"/items", `{"id":"A","name":"Burger","unitPrice":"12.00","quantity":2}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return base
}

func TestRouterHealthAndFallbacks(t *testing.T) {
	h := NewRouter(newTestDependencies(t, 10))

	rec := send(t, h, http.MethodGet, "/health/live", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())

	rec = send(t, h, http.MethodGet, "/nope", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "NOT_FOUND")

	rec = send(t, h, http.MethodGet, "/api/v1/orders/not-a-uuid", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRouterSubmitReplaysIdempotentRequest(t *testing.T) {
	h := NewRouter(newTestDependencies(t, 10))
	base := openSession(t, h)

	headers := map[string]string{"Idempotency-Key": "till-7-0001"}
	first := send(t, h, http.MethodPost, base+"/submit", "", headers)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := send(t, h, http.MethodPost, base+"/submit", "", headers)
	require.Equal(t, http.StatusCreated, second.Code)
	require.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	require.JSONEq(t, first.Body.String(), second.Body.String())

	var created struct {
		Data struct {
			ID         string `json:"id"`
			ExternalID string `json:"externalId"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &created))
	require.Equal(t, strings.TrimPrefix(base, "/api/v1/sessions/")+":till-7-0001", created.Data.ExternalID)

	rec := send(t, h, http.MethodGet, "/api/v1/orders/"+created.Data.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	statusPath := "/api/v1/admin/orders/" + created.Data.ID + "/status"
	rec = send(t, h, http.MethodPatch, statusPath, `{"status":"served"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = send(t, h, http.MethodPatch, statusPath, `{"status":"VOIDED"}`, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestRouterSubmitRateLimited(t *testing.T) {
	h := NewRouter(newTestDependencies(t, 1))
	base := openSession(t, h)

	rec := send(t, h, http.MethodPost, base+"/submit", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = send(t, h, http.MethodPost, base+"/submit", "", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Contains(t, rec.Body.String(), "RATE_LIMITED")
}

func TestRouterPprofRequiresCredentials(t *testing.T) {
	d := newTestDependencies(t, 10)
	d.Config.Obs.PprofEnabled = true
	d.Config.Obs.PprofUser = "ops"
	d.Config.Obs.PprofPass = "secret"
	h := NewRouter(d)

	rec := send(t, h, http.MethodGet, "/debug/pprof/", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	req.SetBasicAuth("ops", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterSameIdempotencyKeyAcrossSessions(t *testing.T) {
	h := NewRouter(newTestDependencies(t, 10))
	headers := map[string]string{"Idempotency-Key": "1"}

	var ids []string
	for _, base := range []string{openSession(t, h), openSession(t, h)} {
		rec := send(t, h, http.MethodPost, base+"/submit", "", headers)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		require.Empty(t, rec.Header().Get("Idempotent-Replayed"))
		var created struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		ids = append(ids, created.Data.ID)
	}
	require.NotEqual(t, ids[0], ids[1])
}
