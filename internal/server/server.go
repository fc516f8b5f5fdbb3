// Пакет server — HTTP-сервер StudyVibe с graceful shutdown.
// Без TLS — TLS termination на внешнем прокси.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	apierrors "github.com/shivnayan54/studyvibe/internal/api/errors"
	"github.com/shivnayan54/studyvibe/internal/api/handlers"
	"github.com/shivnayan54/studyvibe/internal/api/middleware"
	"github.com/shivnayan54/studyvibe/internal/api/openapi"
	"github.com/shivnayan54/studyvibe/internal/config"
	uihandlers "github.com/shivnayan54/studyvibe/internal/ui/handlers"
)

// Options — необязательные компоненты маршрутизации.
type Options struct {
	// JWTAuth — проверка токенов администратора (nil — /api/v1/admin/* недоступен)
	JWTAuth *middleware.JWTAuth
	// Validator — валидация запросов по OpenAPI (nil — без проверки)
	Validator *openapi.Validator
	// ChatLimiter — ограничение частоты запросов к чату (nil — без ограничения)
	ChatLimiter *middleware.RateLimiter
	// TrustedProxies — прокси, чей X-Forwarded-For принимается (пусто — только RemoteAddr)
	TrustedProxies []netip.Prefix
}

// Server — HTTP-сервер StudyVibe.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
func New(cfg *config.Config, logger *slog.Logger, api *handlers.APIHandler, ui *uihandlers.CatalogHandler, opts Options) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(logger, api, ui, opts),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает маршруты: health, metrics, файлы, HTML-страницы и /api/v1.
func NewRouter(logger *slog.Logger, api *handlers.APIHandler, ui *uihandlers.CatalogHandler, opts Options) http.Handler {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(chimw.RequestID)
	router.Use(middleware.RealIP(opts.TrustedProxies))
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))
	router.Use(chimw.Recoverer)

	// Health и metrics — без аутентификации
	router.Get("/health/live", api.HealthLive)
	router.Get("/health/ready", api.HealthReady)
	router.Get("/metrics", api.GetMetrics)

	router.Get("/files/*", api.ServeFile)

	if ui != nil {
		router.Get("/", ui.HandleHome)
		router.Get("/browse", ui.HandleBrowse)
		router.Get("/pyqs", ui.HandlePYQs)
		router.Get("/gate/{collection}/{id}", ui.HandleGate)
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/yaml")
			_, _ = w.Write(openapi.Spec())
		})

		r.Group(func(r chi.Router) {
			if opts.Validator != nil {
				r.Use(opts.Validator.Middleware())
			}
			apiRoutes(r, api, opts)
		})
	})

	return router
}

// apiRoutes регистрирует endpoints /api/v1, описанные в openapi.yaml.
func apiRoutes(r chi.Router, api *handlers.APIHandler, opts Options) {
	r.Get("/search", api.Search)
	r.Get("/search/suggestions", api.Suggestions)
	r.Get("/boards", api.Boards)
	r.Post("/visits", api.TrackVisit)

	r.Get("/gate", api.GateState)
	r.Post("/gate", api.OpenGate)
	r.Post("/gate/confirm", api.ConfirmGate)
	r.Post("/gate/cancel", api.CancelGate)

	r.Group(func(r chi.Router) {
		if opts.ChatLimiter != nil {
			r.Use(opts.ChatLimiter.Middleware())
		}
		r.Post("/chat", api.Chat)
	})

	r.Post("/auth/login", api.Login)

	r.Route("/admin", func(r chi.Router) {
		if opts.JWTAuth == nil {
			r.HandleFunc("/*", adminDisabled)
			return
		}
		r.Use(opts.JWTAuth.Middleware())
		r.Use(middleware.RequireRole(middleware.RoleAdmin))

		r.Get("/stats", api.AdminStats)
		r.Post("/{collection}", api.CreateRecord)
		r.Patch("/{collection}/{id}", api.UpdateRecord)
		r.Delete("/{collection}/{id}", api.DeleteRecord)
	})

	r.Get("/{collection}", api.ListRecords)
	r.Get("/{collection}/options", api.FilterOptions)
	r.Get("/{collection}/{id}", api.GetRecord)
}

// adminDisabled отвечает на /api/v1/admin/*, когда вход администратора не настроен.
func adminDisabled(w http.ResponseWriter, _ *http.Request) {
	apierrors.Forbidden(w, "Вход администратора не настроен")
}

// Run обслуживает запросы до отмены ctx, затем останавливает сервер,
// давая активным запросам cfg.ShutdownTimeout на завершение.
func (s *Server) Run(ctx context.Context) error {
	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP-сервер запущен", slog.String("addr", s.httpServer.Addr))
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP-сервер: %w", err)
	case <-ctx.Done():
		s.logger.Info("Получен сигнал завершения, graceful shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
