// ratelimit.go — ограничение частоты запросов по IP клиента (token bucket).
// Лимитеры хранятся в expirable LRU: неактивные клиенты вытесняются.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	apierrors "github.com/shivnayan54/studyvibe/internal/api/errors"
)

var rateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sv_rate_limited_total",
	Help: "Запросы, отклонённые ограничителем частоты (по маршруту).",
}, []string{"scope"})

const (
	limiterCacheSize = 10000
	limiterIdleTTL   = 30 * time.Minute
)

// RateLimiter — ограничитель частоты запросов по IP.
type RateLimiter struct {
	scope    string
	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	limiters *expirable.LRU[string, *rate.Limiter]
}

// NewRateLimiter создаёт ограничитель: perSecond запросов в секунду с запасом burst.
// scope — лейбл метрики.
func NewRateLimiter(scope string, perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		scope:    scope,
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: expirable.NewLRU[string, *rate.Limiter](limiterCacheSize, nil, limiterIdleTTL),
	}
}

// Allow сообщает, может ли клиент выполнить запрос сейчас.
func (rl *RateLimiter) Allow(client string) bool {
	return rl.limiter(client).Allow()
}

// limiter возвращает лимитер клиента, создавая его при первом обращении.
// Параллельные первые запросы одного клиента получают один и тот же лимитер.
func (rl *RateLimiter) limiter(client string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	lim, ok := rl.limiters.Get(client)
	if !ok {
		lim = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters.Add(client, lim)
	}
	return lim
}

// Middleware отклоняет запросы сверх лимита с 429.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(ClientIP(r)) {
				rateLimitedTotal.WithLabelValues(rl.scope).Inc()
				w.Header().Set("Retry-After", "1")
				apierrors.TooManyRequests(w, "Слишком много запросов, повторите позже")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
