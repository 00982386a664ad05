package inspect

import (
	"log/slog"
	"net/http"

	"github.com/hazyhaar/fibre/idgen"
	"github.com/hazyhaar/fibre/kit"
)

const csp = "default-src 'none'; style-src 'unsafe-inline'; img-src 'self' data:; frame-ancestors 'none'"

// headToGet lets r.Get routes answer HEAD requests.
func headToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", csp)
		next.ServeHTTP(w, r)
	})
}

// requestID tags each request with an id, echoed in X-Request-ID and
// carried in the context for kit.Logging.
func requestID(logger *slog.Logger) func(http.Handler) http.Handler {
	newID := idgen.Prefixed("req_", idgen.Default)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = newID()
			}
			w.Header().Set("X-Request-ID", id)
			logger.Debug("inspect: request", "request_id", id, "method", r.Method, "path", r.URL.Path)
			ctx := kit.WithTransport(kit.WithRequestID(r.Context(), id), "http")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
