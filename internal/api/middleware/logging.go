// logging.go — журнал HTTP-запросов StudyVibe.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// requestLevel выбирает уровень записи по статусу ответа.
// Успешные пробы и /metrics уходят на DEBUG.
func requestLevel(r *http.Request, status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	}
	switch r.URL.Path {
	case "/health/live", "/health/ready", "/metrics":
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// RequestLogger пишет одну запись на запрос: маршрут, статус, длительность,
// размер ответа и request id (если chi RequestID стоит раньше в цепочке).
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With(slog.String("component", "http"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := recorderFor(w)
			next.ServeHTTP(rec, r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("route", routePattern(r)),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", rec.written),
				slog.String("client", ClientIP(r)),
			}
			if r.URL.RawQuery != "" {
				attrs = append(attrs, slog.String("query", r.URL.RawQuery))
			}
			if id := chimw.GetReqID(r.Context()); id != "" {
				attrs = append(attrs, slog.String("request_id", id))
			}

			logger.LogAttrs(r.Context(), requestLevel(r, rec.status), "HTTP запрос", attrs...)
		})
	}
}
