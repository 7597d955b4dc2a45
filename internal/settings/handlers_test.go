package settings

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/resto-pricing/internal/events"
)

type recordingEmitter struct {
	topics     []string
	aggregates []uuid.UUID
}

func (r *recordingEmitter) Emit(_ context.Context, topic string, aggregateID uuid.UUID, _ any) (events.Event, error) {
	r.topics = append(r.topics, topic)
	r.aggregates = append(r.aggregates, aggregateID)
	return events.Event{Topic: topic, AggregateID: aggregateID}, nil
}

func newAdminRouter(t *testing.T, loader *countingLoader, emitter Emitter) (http.Handler, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc, err := NewService(ServiceConfig{Store: loader, Cache: NewCache(client, time.Minute), Emitter: emitter, Logger: zerolog.Nop()})
	require.NoError(t, err)

	h := &AdminHandler{Service: svc}
	r := chi.NewRouter()
	r.Get("/admin/settings/{restaurantId}", h.Get)
	r.Post("/admin/settings/{restaurantId}/invalidate", h.Invalidate)
	return r, mr
}

func TestAdminGetAndInvalidate(t *testing.T) {
	emitter := &recordingEmitter{}
	router, mr := newAdminRouter(t, &countingLoader{snap: sampleSnapshot()}, emitter)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/settings/r-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"gst"`)
	require.True(t, mr.Exists("settings:r-1"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/settings/r-1/invalidate", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.False(t, mr.Exists("settings:r-1"))
	require.Equal(t, []string{events.TopicSettingsChanged}, emitter.topics)
	require.Equal(t, AggregateID("r-1"), emitter.aggregates[0])
}

func TestAdminGetErrors(t *testing.T) {
	router, _ := newAdminRouter(t, &countingLoader{err: ErrNotFound}, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/settings/nowhere", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	snap := sampleSnapshot()
	snap.Tax.GST.TaxRate = decimal.NewFromInt(-1)
	router, _ = newAdminRouter(t, &countingLoader{snap: snap}, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/settings/r-1", nil))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "INVALID_SETTINGS")
}

func TestAggregateIDIsStable(t *testing.T) {
	require.Equal(t, AggregateID("r-1"), AggregateID("r-1"))
	require.NotEqual(t, AggregateID("r-1"), AggregateID("r-2"))
}
