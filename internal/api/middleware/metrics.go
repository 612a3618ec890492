package middleware

import (
	"net/http"
	"time"

	"github.com/supporthub/copilot/internal/observability"
)

// servedRoutes is the fixed set of paths the API serves. The route metric
// label only ever takes these values plus routeUnmatched, so request paths
// cannot mint new time series.
var servedRoutes = map[string]struct{}{
	"/health":           {},
	"/metrics":          {},
	"/v1/answers":       {},
	"/v1/index/rebuild": {},
	"/v1/index/stats":   {},
}

// routeUnmatched is the route label for requests outside servedRoutes
// (typically 404s from scanners probing arbitrary paths).
const routeUnmatched = "unmatched"

// Metrics returns middleware that records HTTP request count and duration via HTTPMetrics.
// When metrics is nil, recording is skipped. Put Metrics outermost so duration is full request time.
func Metrics(metrics observability.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if metrics == nil {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}
			next.ServeHTTP(rw, r)
			duration := time.Since(start)
			route := normalizeRoute(r.URL.Path)
			statusClass := statusToClass(rw.statusCode)
			metrics.RecordRequest(r.Context(), r.Method, route, statusClass, duration)
		})
	}
}

// normalizeRoute folds any path outside the served route set into one bucket
// to bound label cardinality.
func normalizeRoute(path string) string {
	if _, ok := servedRoutes[path]; ok {
		return path
	}
	return routeUnmatched
}

// statusToClass maps HTTP status code to 1xx, 2xx, 4xx, 5xx.
func statusToClass(status int) string {
	if status >= 500 {
		return "5xx"
	}
	if status >= 400 {
		return "4xx"
	}
	if status >= 300 {
		return "3xx"
	}
	if status >= 200 {
		return "2xx"
	}
	if status >= 100 {
		return "1xx"
	}
	return "unknown"
}
