package obs

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
)

type requestInfoKey struct{}

// RequestInfo carries per-request labels that handlers learn late, such as
// the restaurant a session belongs to, back out to the logging middleware.
type RequestInfo struct {
	mu     sync.Mutex
	route  string
	fields map[string]string
}

// Route returns the matched chi pattern, if any was recorded.
func (i *RequestInfo) Route() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.route
}

// Fields returns a copy of the annotations.
func (i *RequestInfo) Fields() map[string]string {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make(map[string]string, len(i.fields))
	for k, v := range i.fields {
		out[k] = v
	}
	return out
}

// WithRoutePattern stores a route pattern on the context.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestInfoKey{}, &RequestInfo{route: pattern})
}

// Annotate attaches a key/value to the request log line. It is a no-op when
// the request did not pass through RoutePatternMiddleware.
func Annotate(ctx context.Context, key, value string) {
	info, ok := ctx.Value(requestInfoKey{}).(*RequestInfo)
	if !ok || key == "" || value == "" {
		return
	}
	info.mu.Lock()
	defer info.mu.Unlock()
	if info.fields == nil {
		info.fields = map[string]string{}
	}
	info.fields[key] = value
}

// RoutePatternFromContext returns the recorded route pattern.
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if info, ok := ctx.Value(requestInfoKey{}).(*RequestInfo); ok {
		return info.Route()
	}
	return ""
}

func requestInfo(ctx context.Context) *RequestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(*RequestInfo)
	return info
}

// RoutePatternMiddleware installs a RequestInfo and records the chi pattern
// once routing has happened, since top-level middleware runs before chi
// resolves the route.
func RoutePatternMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := &RequestInfo{}
		ctx := context.WithValue(r.Context(), requestInfoKey{}, info)
		next.ServeHTTP(w, r.WithContext(ctx))
		if rc := chi.RouteContext(ctx); rc != nil {
			info.mu.Lock()
			info.route = rc.RoutePattern()
			info.mu.Unlock()
		}
	})
}

// routeLabel resolves the route for metrics and spans after the handler ran.
func routeLabel(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return RoutePatternFromContext(r.Context())
}
