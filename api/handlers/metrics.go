package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/linesmerrill/region-chat-api/api"
)

// formatRouteMetrics converts duration fields to milliseconds for JSON serialization
func formatRouteMetrics(routes []*api.RouteMetrics) []map[string]interface{} {
	result := make([]map[string]interface{}, len(routes))
	for i, route := range routes {
		var dbAvg time.Duration
		if route.Count > 0 {
			dbAvg = route.DBTotalTime / time.Duration(route.Count)
		}
		result[i] = map[string]interface{}{
			"method":      route.Method,
			"path":        route.Path,
			"count":       route.Count,
			"errorCount":  route.ErrorCount,
			"avgTime":     route.AvgTime.Milliseconds(),
			"minTime":     route.MinTime.Milliseconds(),
			"maxTime":     route.MaxTime.Milliseconds(),
			"p50Time":     route.P50Time.Milliseconds(),
			"p95Time":     route.P95Time.Milliseconds(),
			"p99Time":     route.P99Time.Milliseconds(),
			"dbAvgTime":   dbAvg.Milliseconds(),
			"lastRequest": route.LastRequest,
		}
	}
	return result
}

// formatTraces converts trace durations to milliseconds
func formatTraces(traces []api.RequestTrace) []map[string]interface{} {
	result := make([]map[string]interface{}, len(traces))
	for i, trace := range traces {
		lookups := make([]map[string]interface{}, len(trace.DBQueries))
		for j, q := range trace.DBQueries {
			lookups[j] = map[string]interface{}{
				"operation":  q.Operation,
				"collection": q.Collection,
				"duration":   q.Duration.Milliseconds(),
				"error":      q.Error,
			}
		}
		result[i] = map[string]interface{}{
			"requestId":     trace.RequestID,
			"method":        trace.Method,
			"path":          trace.Path,
			"status":        trace.Status,
			"startTime":     trace.StartTime,
			"totalDuration": trace.TotalDuration.Milliseconds(),
			"handlerTime":   trace.HandlerTime.Milliseconds(),
			"dbQueries":     lookups,
			"dbTotalTime":   trace.DBTotalTime.Milliseconds(),
			"error":         trace.Error,
		}
	}
	return result
}

// MetricsHandler handles metrics dashboard requests
type MetricsHandler struct{}

// GetMetricsDashboard returns route aggregates and recent traces
func (m MetricsHandler) GetMetricsDashboard(w http.ResponseWriter, r *http.Request) {
	collector := api.GetMetrics()

	limit := queryInt(r, "limit", 20, 1)
	offset := queryInt(r, "offset", 0, 0)
	since := time.Now().Add(-1 * time.Hour)
	if parsed, err := time.ParseDuration(r.URL.Query().Get("since")); err == nil {
		since = time.Now().Add(-parsed)
	}

	totalRoutes := collector.GetRouteCount()
	response := map[string]interface{}{
		"summary": collector.GetSummary(),
		"routes": map[string]interface{}{
			"slowest":      formatRouteMetrics(collector.GetSlowestRoutes(limit, offset)),
			"mostFrequent": formatRouteMetrics(collector.GetMostFrequentRoutes(limit, offset)),
			"totalCount":   totalRoutes,
		},
		"recentTraces": formatTraces(collector.GetTraces(limit, since)),
		"pagination": map[string]interface{}{
			"limit":   limit,
			"offset":  offset,
			"total":   totalRoutes,
			"hasMore": offset+limit < totalRoutes,
		},
		"filters": map[string]interface{}{
			"since": since,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// GetMetricsSummary returns just the summary metrics (lighter endpoint)
func (m MetricsHandler) GetMetricsSummary(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(api.GetMetrics().GetSummary())
}

func queryInt(r *http.Request, key string, def, min int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < min {
		return def
	}
	return v
}
