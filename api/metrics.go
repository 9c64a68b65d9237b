package api

import (
	"context"
	"regexp"
	"sort"
	"sync"
	"time"
)

// RequestTrace tracks timing for a single request
type RequestTrace struct {
	RequestID     string            `json:"requestId"`
	Method        string            `json:"method"`
	Path          string            `json:"path"`
	Status        int               `json:"status"`
	StartTime     time.Time         `json:"startTime"`
	EndTime       time.Time         `json:"endTime"`
	TotalDuration time.Duration     `json:"totalDuration"`
	HandlerTime   time.Duration     `json:"handlerTime"`
	DBQueries     []DBQueryTrace    `json:"dbQueries"`
	DBTotalTime   time.Duration     `json:"dbTotalTime"`
	Error         string            `json:"error,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// DBQueryTrace tracks a single group directory query
type DBQueryTrace struct {
	Operation  string        `json:"operation"`
	Collection string        `json:"collection"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

// RouteMetrics aggregates metrics for a specific route
type RouteMetrics struct {
	Method      string        `json:"method"`
	Path        string        `json:"path"`
	Count       int64         `json:"count"`
	ErrorCount  int64         `json:"errorCount"`
	TotalTime   time.Duration `json:"totalTime"`
	AvgTime     time.Duration `json:"avgTime"`
	MinTime     time.Duration `json:"minTime"`
	MaxTime     time.Duration `json:"maxTime"`
	P50Time     time.Duration `json:"p50Time"`
	P95Time     time.Duration `json:"p95Time"`
	P99Time     time.Duration `json:"p99Time"`
	DBTotalTime time.Duration `json:"dbTotalTime"`
	LastRequest time.Time     `json:"lastRequest"`
}

// MetricsCollector keeps recent request traces and per-route aggregates.
// Traces arrive over a buffered channel and are dropped when it is full, so
// recording never slows a request down.
type MetricsCollector struct {
	mu             sync.RWMutex
	traces         []RequestTrace
	maxTraces      int
	routeMetrics   map[string]*RouteMetrics
	windowStart    time.Time
	windowDuration time.Duration
	totalRequests  int64
	totalErrors    int64
	totalDBQueries int64
	totalDBTime    time.Duration

	traceChan chan RequestTrace
	stopChan  chan struct{}
	stopOnce  sync.Once
}

var (
	globalMetrics *MetricsCollector
	metricsOnce   sync.Once
)

// NewMetricsCollector starts a collector holding at most maxTraces traces
// from the last windowDuration
func NewMetricsCollector(maxTraces int, windowDuration time.Duration) *MetricsCollector {
	mc := &MetricsCollector{
		traces:         make([]RequestTrace, 0, maxTraces),
		maxTraces:      maxTraces,
		routeMetrics:   make(map[string]*RouteMetrics),
		windowStart:    time.Now(),
		windowDuration: windowDuration,
		traceChan:      make(chan RequestTrace, 1000),
		stopChan:       make(chan struct{}),
	}
	go mc.processTraces()
	go mc.cleanup()
	return mc
}

// GetMetrics returns the process wide collector
func GetMetrics() *MetricsCollector {
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsCollector(10000, time.Hour)
	})
	return globalMetrics
}

// Close stops the collector's background goroutines
func (mc *MetricsCollector) Close() {
	mc.stopOnce.Do(func() { close(mc.stopChan) })
}

// RecordTrace queues a trace without blocking
func (mc *MetricsCollector) RecordTrace(trace RequestTrace) {
	select {
	case mc.traceChan <- trace:
	default:
	}
}

func (mc *MetricsCollector) processTraces() {
	for {
		select {
		case trace := <-mc.traceChan:
			mc.processTrace(trace)
		case <-mc.stopChan:
			return
		}
	}
}

func (mc *MetricsCollector) processTrace(trace RequestTrace) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if len(mc.traces) >= mc.maxTraces && len(mc.traces) > 0 {
		mc.traces = mc.traces[1:]
	}
	mc.traces = append(mc.traces, trace)

	path := normalizeRoutePath(trace.Path)
	key := trace.Method + " " + path
	rm, ok := mc.routeMetrics[key]
	if !ok {
		rm = &RouteMetrics{Method: trace.Method, Path: path, MinTime: trace.TotalDuration}
		mc.routeMetrics[key] = rm
	}

	rm.Count++
	rm.TotalTime += trace.TotalDuration
	rm.AvgTime = rm.TotalTime / time.Duration(rm.Count)
	rm.LastRequest = trace.StartTime
	if trace.TotalDuration < rm.MinTime {
		rm.MinTime = trace.TotalDuration
	}
	if trace.TotalDuration > rm.MaxTime {
		rm.MaxTime = trace.TotalDuration
	}
	if trace.Status >= 400 {
		rm.ErrorCount++
		mc.totalErrors++
	}
	rm.DBTotalTime += trace.DBTotalTime

	mc.totalRequests++
	mc.totalDBQueries += int64(len(trace.DBQueries))
	mc.totalDBTime += trace.DBTotalTime

	if rm.Count%100 == 0 || rm.Count < 100 {
		mc.calculatePercentiles(key, rm)
	}
}

// GetTraces returns up to limit traces started after since, oldest first
func (mc *MetricsCollector) GetTraces(limit int, since time.Time) []RequestTrace {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	var out []RequestTrace
	for i := len(mc.traces) - 1; i >= 0 && len(out) < limit; i-- {
		if mc.traces[i].StartTime.After(since) {
			out = append(out, mc.traces[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// GetRouteMetrics returns a copy of every route's aggregate
func (mc *MetricsCollector) GetRouteMetrics() map[string]*RouteMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	out := make(map[string]*RouteMetrics, len(mc.routeMetrics))
	for k, v := range mc.routeMetrics {
		c := *v
		out[k] = &c
	}
	return out
}

// GetSummary returns totals over the current window
func (mc *MetricsCollector) GetSummary() map[string]interface{} {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	elapsed := time.Since(mc.windowStart)
	if elapsed > mc.windowDuration {
		elapsed = mc.windowDuration
	}
	var tps, errorRate float64
	if elapsed.Seconds() > 0 {
		tps = float64(mc.totalRequests) / elapsed.Seconds()
	}
	if mc.totalRequests > 0 {
		errorRate = float64(mc.totalErrors) / float64(mc.totalRequests)
	}
	var avgDBTime time.Duration
	if mc.totalDBQueries > 0 {
		avgDBTime = mc.totalDBTime / time.Duration(mc.totalDBQueries)
	}

	return map[string]interface{}{
		"totalRequests":  mc.totalRequests,
		"totalErrors":    mc.totalErrors,
		"errorRate":      errorRate,
		"tps":            tps,
		"totalDBQueries": mc.totalDBQueries,
		"totalDBTime":    mc.totalDBTime.String(),
		"avgDBTime":      avgDBTime.String(),
		"windowStart":    mc.windowStart,
		"windowEnd":      mc.windowStart.Add(mc.windowDuration),
		"routeCount":     len(mc.routeMetrics),
		"traceCount":     len(mc.traces),
	}
}

// GetSlowestRoutes returns routes by descending average time
func (mc *MetricsCollector) GetSlowestRoutes(limit, offset int) []*RouteMetrics {
	return mc.sortedRoutes(limit, offset, func(a, b *RouteMetrics) bool { return a.AvgTime > b.AvgTime })
}

// GetMostFrequentRoutes returns routes by descending request count
func (mc *MetricsCollector) GetMostFrequentRoutes(limit, offset int) []*RouteMetrics {
	return mc.sortedRoutes(limit, offset, func(a, b *RouteMetrics) bool { return a.Count > b.Count })
}

// GetRouteCount returns how many distinct routes were seen
func (mc *MetricsCollector) GetRouteCount() int {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return len(mc.routeMetrics)
}

func (mc *MetricsCollector) sortedRoutes(limit, offset int, less func(a, b *RouteMetrics) bool) []*RouteMetrics {
	mc.mu.RLock()
	routes := make([]*RouteMetrics, 0, len(mc.routeMetrics))
	for _, v := range mc.routeMetrics {
		c := *v
		routes = append(routes, &c)
	}
	mc.mu.RUnlock()

	sort.Slice(routes, func(i, j int) bool { return less(routes[i], routes[j]) })
	if offset >= len(routes) {
		return []*RouteMetrics{}
	}
	end := offset + limit
	if end > len(routes) {
		end = len(routes)
	}
	return routes[offset:end]
}

// calculatePercentiles must be called with mc.mu held
func (mc *MetricsCollector) calculatePercentiles(key string, rm *RouteMetrics) {
	var durations []time.Duration
	for _, t := range mc.traces {
		if t.Method+" "+normalizeRoutePath(t.Path) == key {
			durations = append(durations, t.TotalDuration)
		}
	}
	if len(durations) == 0 {
		return
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	rm.P50Time = percentile(durations, 0.50)
	rm.P95Time = percentile(durations, 0.95)
	rm.P99Time = percentile(durations, 0.99)
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func (mc *MetricsCollector) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-mc.stopChan:
			return
		case now := <-ticker.C:
			mc.mu.Lock()
			cutoff := now.Add(-mc.windowDuration)
			kept := mc.traces[:0]
			for _, t := range mc.traces {
				if t.StartTime.After(cutoff) {
					kept = append(kept, t)
				}
			}
			mc.traces = kept
			if now.Sub(mc.windowStart) > mc.windowDuration {
				mc.windowStart = now
			}
			mc.mu.Unlock()
		}
	}
}

var (
	uuidSegment    = regexp.MustCompile(`/[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}(/|$)`)
	numericSegment = regexp.MustCompile(`/\d{10,}(/|$)`)
)

// normalizeRoutePath replaces id segments so that requests for different
// sessions aggregate under one route, e.g.
// /api/v1/chat/sessions/6f1c...e2/messages -> /api/v1/chat/sessions/{id}/messages
func normalizeRoutePath(path string) string {
	path = uuidSegment.ReplaceAllString(path, "/{id}$1")
	path = numericSegment.ReplaceAllString(path, "/{id}$1")
	if len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	return path
}

type requestTraceContextKey struct{}

type requestTraceContext struct {
	trace *RequestTrace
	mu    sync.Mutex
}

func getRequestTraceFromContext(ctx context.Context) *requestTraceContext {
	if v, ok := ctx.Value(requestTraceContextKey{}).(*requestTraceContext); ok {
		return v
	}
	return nil
}

// WithRequestTrace adds request trace to context
func WithRequestTrace(ctx context.Context, trace *RequestTrace) context.Context {
	return context.WithValue(ctx, requestTraceContextKey{}, &requestTraceContext{trace: trace})
}

// RecordDBQueryFromContext attaches a directory query to the request's
// trace. Contexts without a trace are ignored.
func RecordDBQueryFromContext(ctx context.Context, operation, collection string, duration time.Duration, err error) {
	rt := getRequestTraceFromContext(ctx)
	if rt == nil || rt.trace == nil {
		return
	}
	q := DBQueryTrace{
		Operation:  operation,
		Collection: collection,
		Duration:   duration,
		Timestamp:  time.Now(),
	}
	if err != nil {
		q.Error = err.Error()
	}
	rt.mu.Lock()
	rt.trace.DBQueries = append(rt.trace.DBQueries, q)
	rt.trace.DBTotalTime += duration
	rt.mu.Unlock()
}

// snapshot copies the trace under its lock
func (rt *requestTraceContext) snapshot() RequestTrace {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	t := *rt.trace
	t.DBQueries = append([]DBQueryTrace(nil), rt.trace.DBQueries...)
	return t
}
