package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/curasync/portal/pkg/logging"
)

// RequestLogger emits one structured line per completed request and echoes
// the request id back in X-Request-ID.
func RequestLogger(logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.Component("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				reqID = chimw.GetReqID(r.Context())
			}
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", reqID)

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"request_id", reqID,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if status >= http.StatusInternalServerError {
				logger.Warn("request completed", attrs...)
				return
			}
			logger.Info("request completed", attrs...)
		})
	}
}
