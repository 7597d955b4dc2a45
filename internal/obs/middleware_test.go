package obs_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/noah-isme/resto-pricing/internal/obs"
)

func TestHTTPMetricsLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("resto", []float64{1, 10}, registry)
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/health/ready"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rr.Code)
	}

	total := testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/health/ready", "204"))
	if total != 1 {
		t.Fatalf("expected counter to be 1, got %v", total)
	}

	samples := testutil.CollectAndCount(metrics.ReqDur)
	if samples == 0 {
		t.Fatalf("expected histogram sample")
	}

	if metrics.InFlight != nil {
		if val := testutil.ToFloat64(metrics.InFlight); val != 0 {
			t.Fatalf("expected no in-flight requests, got %v", val)
		}
	}
}

func TestDomainMetricsObserveMutation(t *testing.T) {
	registry := prometheus.NewRegistry()
	obs.MustRegisterDomainMetrics("resto", registry)

	obs.ObserveMutation("toggle_comp", nil)
	obs.ObserveMutation("toggle_comp", errors.New("all items free"))
	obs.ObserveMutation("toggle_comp", errors.New("all items free"))
	obs.ObserveQuote()

	if got := testutil.ToFloat64(obs.PricingMutationsTotal.WithLabelValues("toggle_comp", "ok")); got != 1 {
		t.Fatalf("expected 1 accepted mutation, got %v", got)
	}
	if got := testutil.ToFloat64(obs.PricingMutationsTotal.WithLabelValues("toggle_comp", "rejected")); got != 2 {
		t.Fatalf("expected 2 rejected mutations, got %v", got)
	}
	if got := testutil.ToFloat64(obs.PricingQuotesTotal); got < 1 {
		t.Fatalf("expected quote counter to advance, got %v", got)
	}
}

func TestHTTPMetricsUnmatchedRoute(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("resto_unmatched", nil, registry)
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.NotFoundHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/does/not/exist", nil))

	if got := testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "unmatched", "404")); got != 1 {
		t.Fatalf("expected unmatched counter to be 1, got %v", got)
	}
}

func TestNewHTTPMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := obs.NewHTTPMetrics("resto_reuse", nil, registry)
	second := obs.NewHTTPMetrics("resto_reuse", nil, registry)
	if first.ReqTotal != second.ReqTotal || first.RespSize != second.RespSize {
		t.Fatal("expected second registration to reuse existing collectors")
	}
}

func TestHTTPMetricsResponseSize(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("resto_size", nil, registry)
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/orders"))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got := testutil.CollectAndCount(metrics.RespSize); got != 1 {
		t.Fatalf("expected one response size series, got %d", got)
	}
}

func TestParseBucketsCSV(t *testing.T) {
	got := obs.ParseBucketsCSV(" 10, x, -1, 0, 2.5 ,")
	if len(got) != 2 || got[0] != 10 || got[1] != 2.5 {
		t.Fatalf("unexpected buckets %v", got)
	}
	if obs.ParseBucketsCSV("") != nil {
		t.Fatal("expected nil for empty input")
	}
}
