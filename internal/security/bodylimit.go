package security

import (
	"mime"
	"net/http"

	"github.com/noah-isme/resto-pricing/internal/common"
)

// BodyLimit caps request bodies. Declared oversize bodies are refused up
// front; undeclared ones are cut off by http.MaxBytesReader and surface as a
// 413 from common.DecodeJSON.
type BodyLimit struct {
	Max int64
	// RequireJSON refuses non-empty bodies that are not application/json.
	RequireJSON bool
}

// Middleware applies the limit.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}
		if b.Max > 0 && r.ContentLength > b.Max {
			common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request entity too large",
				map[string]any{"limit": b.Max})
			return
		}
		if b.RequireJSON && r.ContentLength != 0 && !isJSON(r.Header.Get("Content-Type")) {
			common.JSONError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "request body must be application/json", nil)
			return
		}
		if b.Max > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, b.Max)
		}
		next.ServeHTTP(w, r)
	})
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}
