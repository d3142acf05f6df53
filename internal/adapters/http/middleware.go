package httpadapter

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-Id"

type requestIDContextKey struct{}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	requestID, _ := ctx.Value(requestIDContextKey{}).(string)
	return requestID
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), requestIDContextKey{}, requestID)
		r = r.WithContext(ctx)
		w.Header().Set(requestIDHeader, requestID)

		next.ServeHTTP(w, r)
	})
}

// RequestMetrics is the slice of the metrics surface the adapter feeds. Nil
// disables recording without changing the middleware chain.
type RequestMetrics interface {
	RecordRequest(method, path string, status int, duration time.Duration)
	TrackInFlight() func()
}

// observeMiddleware produces one access-log line per request and feeds the
// same status/duration observation into the request metrics, so logs and
// metrics cannot disagree about what was served.
func observeMiddleware(m RequestMetrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}
		if m != nil {
			release := m.TrackInFlight()
			defer release()
		}

		next.ServeHTTP(recorder, r)

		duration := time.Since(start)
		if m != nil {
			m.RecordRequest(r.Method, routeTemplate(r.URL.Path), recorder.statusCode, duration)
		}

		remoteAddr := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			remoteAddr = host
		}

		logAttrs := []any{
			"request_id", requestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.statusCode,
			"duration_ms", float64(duration.Microseconds()) / 1000.0,
			"bytes", recorder.bytesWritten,
			"remote_addr", remoteAddr,
			"user_agent", r.UserAgent(),
		}

		switch {
		case recorder.statusCode >= 500:
			slog.Error("http_request", logAttrs...)
		case recorder.statusCode >= 400:
			slog.Warn("http_request", logAttrs...)
		default:
			slog.Info("http_request", logAttrs...)
		}
	})
}

// routeTemplate collapses submission ids so metric label cardinality stays
// bounded.
func routeTemplate(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/submissions/"):
		if strings.HasSuffix(path, "/result") {
			return "/v1/submissions/{submission_id}/result"
		}
		return "/v1/submissions/{submission_id}"
	default:
		return path
	}
}

// statusRecorder captures status and size of the buffered JSON responses
// this API serves; no streaming or connection-takeover passthrough exists.
type statusRecorder struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += n
	return n, err
}
