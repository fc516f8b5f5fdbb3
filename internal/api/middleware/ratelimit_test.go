package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter("test", 0.001, 2)
	h := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for i := range 2 {
		if rec := call("10.0.0.1:5000"); rec.Code != http.StatusOK {
			t.Fatalf("запрос %d: статус = %d, ожидался 200", i+1, rec.Code)
		}
	}

	rec := call("10.0.0.1:5001")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("статус = %d, ожидался 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("ожидался заголовок Retry-After")
	}

	// Другой клиент имеет собственный лимит
	if rec := call("10.0.0.2:5000"); rec.Code != http.StatusOK {
		t.Errorf("другой клиент: статус = %d, ожидался 200", rec.Code)
	}
}

// TestRateLimiter_IgnoresSpoofedForwardedFor проверяет, что смена
// X-Forwarded-For без доверенного прокси не обходит лимит.
func TestRateLimiter_IgnoresSpoofedForwardedFor(t *testing.T) {
	rl := NewRateLimiter("test", 0.001, 2)
	h := RealIP(nil)(rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	var codes []int
	for i := range 5 {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", nil)
		req.RemoteAddr = "203.0.113.50:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i+1))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	for i, code := range codes {
		want := http.StatusOK
		if i >= 2 {
			want = http.StatusTooManyRequests
		}
		if code != want {
			t.Errorf("запрос %d: статус = %d, ожидался %d (все: %v)", i+1, code, want, codes)
		}
	}
}

// TestRateLimiter_ConcurrentFirstRequests проверяет, что параллельные первые
// запросы одного клиента делят один лимитер.
func TestRateLimiter_ConcurrentFirstRequests(t *testing.T) {
	for range 20 {
		rl := NewRateLimiter("test", 0.001, 1)

		var (
			allowed atomic.Int32
			start   = make(chan struct{})
			wg      sync.WaitGroup
		)
		for range 32 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				if rl.Allow("192.0.2.9") {
					allowed.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()

		if got := allowed.Load(); got != 1 {
			t.Fatalf("пропущено запросов = %d, ожидался 1", got)
		}
	}
}
