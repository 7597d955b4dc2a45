package security

import (
	"net/http"
	"strconv"
	"strings"
)

// Headers sets the response headers every pricing API response carries.
type Headers struct {
	Enable                bool
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	// NoStore marks responses as uncacheable. Quotes change with every
	// session mutation.
	NoStore bool
	// TrustForwardedProto treats X-Forwarded-Proto: https as TLS when the
	// service sits behind a terminating proxy.
	TrustForwardedProto bool
}

// Middleware attaches the headers before the handler writes.
func (h Headers) Middleware(next http.Handler) http.Handler {
	if !h.Enable {
		return next
	}
	static := http.Header{}
	static.Set("X-Content-Type-Options", "nosniff")
	static.Set("X-Frame-Options", "DENY")
	static.Set("Referrer-Policy", "no-referrer")
	// JSON and plain-text receipts never need to load anything
	static.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
	if h.NoStore {
		static.Set("Cache-Control", "no-store")
	}
	hsts := h.hstsValue()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		for k, v := range static {
			headers[k] = append([]string(nil), v...)
		}
		if hsts != "" && h.secure(r) {
			headers.Set("Strict-Transport-Security", hsts)
		}
		next.ServeHTTP(w, r)
	})
}

func (h Headers) hstsValue() string {
	if !h.EnableHSTS {
		return ""
	}
	maxAge := h.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = 31536000
	}
	value := "max-age=" + strconv.Itoa(maxAge)
	if h.HSTSIncludeSubdomains {
		value += "; includeSubDomains"
	}
	return value
}

func (h Headers) secure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return h.TrustForwardedProto && strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
