package api

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linesmerrill/region-chat-api/metrics"
)

// SlowRequestThreshold is the duration above which a request is logged
const SlowRequestThreshold = time.Second

var untracedPaths = map[string]bool{
	"/api/v2/metrics":         true,
	"/api/v2/metrics/summary": true,
	"/metrics":                true,
	"/health":                 true,
}

// MetricsMiddleware tracks request timing for the in-process collector and
// the Prometheus HTTP collectors
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if untracedPaths[path] {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		trace := &RequestTrace{
			RequestID: uuid.New().String(),
			Method:    r.Method,
			Path:      path,
			StartTime: start,
			DBQueries: make([]DBQueryTrace, 0),
		}
		ctx := WithRequestTrace(r.Context(), trace)
		rt := getRequestTraceFromContext(ctx)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r.WithContext(ctx))

		done := rt.snapshot()
		done.EndTime = time.Now()
		done.TotalDuration = done.EndTime.Sub(start)
		done.HandlerTime = done.TotalDuration - done.DBTotalTime
		done.Status = wrapped.statusCode
		if done.Status >= 400 {
			done.Error = http.StatusText(done.Status)
		}
		GetMetrics().RecordTrace(done)

		route := normalizeRoutePath(path)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(done.Status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(done.TotalDuration.Seconds())

		if done.TotalDuration > SlowRequestThreshold {
			zap.S().Warnw("Slow request detected",
				"requestId", done.RequestID,
				"method", r.Method,
				"path", path,
				"duration", done.TotalDuration,
				"status", done.Status,
				"dbQueries", len(done.DBQueries),
				"dbTime", done.DBTotalTime,
			)
		}
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
// It implements http.Hijacker to support WebSocket upgrades
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.wroteHeader = true
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Hijack implements http.Hijacker to support WebSocket upgrades
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		rw.statusCode = http.StatusSwitchingProtocols
		return hijacker.Hijack()
	}
	return nil, nil, fmt.Errorf("underlying ResponseWriter does not implement http.Hijacker")
}
