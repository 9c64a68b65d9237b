package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRoutePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/v1/chat/sessions/6f1c2d3e-4a5b-4c6d-8e9f-0a1b2c3d4e5f", "/api/v1/chat/sessions/{id}"},
		{"/api/v1/chat/sessions/6f1c2d3e-4a5b-4c6d-8e9f-0a1b2c3d4e5f/messages", "/api/v1/chat/sessions/{id}/messages"},
		{"/regions/1099511628032000/agents", "/regions/{id}/agents"},
		{"/api/v1/events/", "/api/v1/events"},
		{"/", "/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeRoutePath(tt.path), tt.path)
	}
}

func TestMetricsCollector_ProcessTrace(t *testing.T) {
	mc := NewMetricsCollector(2, time.Hour)
	defer mc.Close()

	start := time.Now()
	mc.processTrace(RequestTrace{Method: "GET", Path: "/api/v1/events", Status: 200, StartTime: start, TotalDuration: 10 * time.Millisecond})
	mc.processTrace(RequestTrace{Method: "GET", Path: "/api/v1/events", Status: 401, StartTime: start, TotalDuration: 30 * time.Millisecond})
	mc.processTrace(RequestTrace{Method: "POST", Path: "/CAPS/EQMPOSTER", Status: 200, StartTime: start, TotalDuration: 50 * time.Millisecond,
		DBQueries: []DBQueryTrace{{Operation: "findOne"}}, DBTotalTime: 5 * time.Millisecond})

	routes := mc.GetRouteMetrics()
	require.Contains(t, routes, "GET /api/v1/events")
	events := routes["GET /api/v1/events"]
	assert.EqualValues(t, 2, events.Count)
	assert.EqualValues(t, 1, events.ErrorCount)
	assert.Equal(t, 20*time.Millisecond, events.AvgTime)
	assert.Equal(t, 10*time.Millisecond, events.MinTime)
	assert.Equal(t, 30*time.Millisecond, events.MaxTime)

	summary := mc.GetSummary()
	assert.EqualValues(t, 3, summary["totalRequests"])
	assert.EqualValues(t, 1, summary["totalDBQueries"])
	assert.Equal(t, 2, summary["traceCount"], "oldest trace is dropped past maxTraces")

	slowest := mc.GetSlowestRoutes(1, 0)
	require.Len(t, slowest, 1)
	assert.Equal(t, "/CAPS/EQMPOSTER", slowest[0].Path)

	frequent := mc.GetMostFrequentRoutes(10, 0)
	require.Len(t, frequent, 2)
	assert.Equal(t, "/api/v1/events", frequent[0].Path)
	assert.Empty(t, mc.GetMostFrequentRoutes(10, 5))
}

func TestRecordDBQueryFromContext(t *testing.T) {
	trace := &RequestTrace{}
	ctx := WithRequestTrace(context.Background(), trace)

	RecordDBQueryFromContext(ctx, "findOne", "groups", 3*time.Millisecond, nil)
	RecordDBQueryFromContext(ctx, "findOne", "groups", 2*time.Millisecond, errors.New("boom"))
	RecordDBQueryFromContext(context.Background(), "findOne", "groups", time.Second, nil)

	require.Len(t, trace.DBQueries, 2)
	assert.Equal(t, "boom", trace.DBQueries[1].Error)
	assert.Equal(t, 5*time.Millisecond, trace.DBTotalTime)
}

func TestMetricsMiddleware(t *testing.T) {
	var traced bool
	h := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traced = getRequestTraceFromContext(r.Context()) != nil
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.True(t, traced)

	traced = false
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.False(t, traced, "health checks are not traced")
}
