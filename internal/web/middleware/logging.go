// Package middleware provides HTTP middleware for the fleet API.
package middleware

import (
	"net/http"
	"time"

	"github.com/JonMunkholm/dbfleet/internal/logging"
)

// RunIDHeader is set by handlers that start a run.
const RunIDHeader = "X-Run-ID"

// Logger logs one line per request with status, duration and, for run
// requests, the run id.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(ww, r)

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.status,
			"bytes", ww.written,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", r.RemoteAddr,
		}
		if id := ww.Header().Get(RunIDHeader); id != "" {
			attrs = append(attrs, "run_id", id)
		}

		log := logging.FromContext(r.Context())
		if ww.status >= http.StatusInternalServerError {
			log.Warn("request", attrs...)
			return
		}
		log.Info("request", attrs...)
	})
}

// responseWriter captures status and body size.
type responseWriter struct {
	http.ResponseWriter
	status      int
	written     int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.written += n
	return n, err
}

func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
