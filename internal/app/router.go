package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/resto-pricing/internal/common"
	"github.com/noah-isme/resto-pricing/internal/health"
	"github.com/noah-isme/resto-pricing/internal/obs"
	"github.com/noah-isme/resto-pricing/internal/order"
	"github.com/noah-isme/resto-pricing/internal/ratelimit"
	"github.com/noah-isme/resto-pricing/internal/security"
	"github.com/noah-isme/resto-pricing/internal/session"
	"github.com/noah-isme/resto-pricing/internal/settings"
)

// NewRouter mounts every HTTP route on a chi router.
func NewRouter(d *Dependencies) http.Handler {
	cfg := d.Config

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if cfg.Obs.TracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if d.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Idempotency-Key", "X-Request-Id"},
		ExposedHeaders: []string{"X-Total-Count", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After", "Idempotent-Replayed"},
		MaxAge:         300,
	}))
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		common.JSONError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})

	if cfg.Obs.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if cfg.Obs.PprofEnabled {
		r.Mount("/debug/pprof", basicAuth(newPprofMux(), cfg.Obs.PprofUser, cfg.Obs.PprofPass, cfg.AppEnv == "development"))
	}
	healthHandler := health.Handler{Probes: d.Probes()}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	sessionHandler := session.NewHandler(session.HandlerConfig{Service: d.Sessions, Validator: d.Validator})
	orderHandler := &order.Handler{Service: d.Orders}
	orderAdmin := &order.AdminHandler{Service: d.Orders}
	settingsAdmin := &settings.AdminHandler{Service: d.Settings}
	limiter := ratelimit.Handler{
		Limiter: d.SubmitLimiter,
		Config: ratelimit.Config{
			Key:    ratelimit.SessionKey,
			Window: cfg.SubmitRateLimitWindow,
			Max:    cfg.SubmitRateLimitMax,
		},
		OnError: func(err error) {
			d.Logger.Warn().Err(err).Msg("submit rate limiter unavailable")
		},
	}
	submit := func(next http.Handler) http.Handler {
		return limiter.Middleware(d.Idem.Middleware(next))
	}

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(security.Headers{Enable: true, EnableHSTS: true, NoStore: true}.Middleware)
		v.Use(security.BodyLimit{Max: cfg.BodyLimitBytes, RequireJSON: true}.Middleware)

		sessionHandler.Routes(v, submit)

		v.Get("/orders", orderHandler.List)
		v.Get("/orders/{id}", orderHandler.Get)

		v.Patch("/admin/orders/{id}/status", orderAdmin.PatchStatus)
		v.Route("/admin/settings/{restaurantId}", func(a chi.Router) {
			a.Get("/", settingsAdmin.Get)
			a.Post("/invalidate", settingsAdmin.Invalidate)
		})
	})
	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
