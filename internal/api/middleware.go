// internal/api/middleware.go
package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	stderrors "builder-licensing/internal/common/errors"

	"github.com/go-chi/chi/v5/middleware"
)

// requireInternalKey gates mutating and admin endpoints behind the shared
// secret. Constant-time compare so the key cannot be probed byte by byte.
func (s *Server) requireInternalKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented := r.Header.Get("X-Internal-Key")
		expected := s.cfg.Auth.InternalAPIKey
		if presented == "" ||
			subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) != 1 {
			stderrors.WriteHTTP(w, stderrors.NewUnauthorizedError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request", map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(start).String(),
		})
	})
}
