// metrics.go — HTTP-метрики sv_http_requests_total и sv_http_request_duration_seconds.
// Лейбл path — шаблон маршрута chi, а не сырой путь.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sv_http_requests_total",
			Help: "Общее количество HTTP-запросов к StudyVibe",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sv_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к StudyVibe в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware считает запросы и их длительность по шаблону маршрута.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := recorderFor(w)
			next.ServeHTTP(rec, r)

			// Шаблон маршрута известен только после роутинга
			path := routePattern(r)
			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// routePattern возвращает шаблон маршрута chi (/api/v1/{collection}/{id}).
// Для запросов вне маршрутов — normalizePath.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return normalizePath(r.URL.Path)
}

// normalizePath сворачивает пути, не сопоставленные ни одному маршруту.
// /files/papers/CBSE/... → /files/*, прочие неизвестные пути → unmatched.
func normalizePath(path string) string {
	switch path {
	case "/", "/health/live", "/health/ready", "/metrics":
		return path
	}
	if strings.HasPrefix(path, "/files/") {
		return "/files/*"
	}
	return "unmatched"
}
