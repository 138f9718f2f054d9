package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/zjoart/go-databundle-store/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start)

		fields := logger.Fields{
			logger.RequestIDKey: requestID,
			"method":            r.Method,
			"path":              r.URL.Path,
			"status":            rw.status,
			"duration":          duration.String(),
			"remote":            r.RemoteAddr,
		}
		if rw.status >= http.StatusInternalServerError {
			logger.Error("Request failed", fields)
			return
		}
		logger.Info("Request completed", fields)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
