package api

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TimeoutResponder writes the response sent when a request times out
type TimeoutResponder func(w http.ResponseWriter, r *http.Request)

// TimeoutMiddleware adds request timeout to prevent long-running requests
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return TimeoutMiddlewareWithResponse(timeout, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusRequestTimeout)
		w.Write([]byte(`{"error": "Request timeout", "message": "The request took too long to process"}`))
	})
}

// TimeoutMiddlewareWithResponse is TimeoutMiddleware with a custom timeout
// response. The handler writes into a buffer that is only copied to the
// client when it finishes in time, so a late handler never races the
// timeout response.
func TimeoutMiddlewareWithResponse(timeout time.Duration, onTimeout TimeoutResponder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			r = r.WithContext(ctx)

			tw := &timeoutWriter{header: make(http.Header), code: http.StatusOK}
			done := make(chan struct{})
			panicChan := make(chan interface{}, 1)
			go func() {
				defer func() {
					if p := recover(); p != nil {
						panicChan <- p
					}
				}()
				next.ServeHTTP(tw, r)
				close(done)
			}()

			select {
			case p := <-panicChan:
				panic(p)
			case <-done:
				tw.mu.Lock()
				defer tw.mu.Unlock()
				dst := w.Header()
				for k, vv := range tw.header {
					dst[k] = vv
				}
				w.WriteHeader(tw.code)
				w.Write(tw.buf.Bytes())
			case <-ctx.Done():
				tw.mu.Lock()
				tw.timedOut = true
				tw.mu.Unlock()
				zap.S().Warnw("Request timeout",
					"path", r.URL.Path,
					"method", r.Method,
					"timeout", timeout)
				onTimeout(w, r)
			}
		})
	}
}

type timeoutWriter struct {
	mu          sync.Mutex
	header      http.Header
	buf         bytes.Buffer
	code        int
	wroteHeader bool
	timedOut    bool
}

func (tw *timeoutWriter) Header() http.Header { return tw.header }

func (tw *timeoutWriter) Write(p []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	tw.wroteHeader = true
	return tw.buf.Write(p)
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut || tw.wroteHeader {
		return
	}
	tw.wroteHeader = true
	tw.code = code
}
