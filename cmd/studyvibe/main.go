// Точка входа StudyVibe — каталог экзаменационных работ и PYQ.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// создаёт хранилище каталога и сервисы, запускает topologymetrics и
// HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/shivnayan54/studyvibe/internal/api/handlers"
	"github.com/shivnayan54/studyvibe/internal/api/middleware"
	"github.com/shivnayan54/studyvibe/internal/api/openapi"
	"github.com/shivnayan54/studyvibe/internal/chatbot"
	"github.com/shivnayan54/studyvibe/internal/config"
	"github.com/shivnayan54/studyvibe/internal/database"
	"github.com/shivnayan54/studyvibe/internal/repository"
	"github.com/shivnayan54/studyvibe/internal/server"
	"github.com/shivnayan54/studyvibe/internal/service"
	"github.com/shivnayan54/studyvibe/internal/storage/blobstore"
	uihandlers "github.com/shivnayan54/studyvibe/internal/ui/handlers"
)

const (
	jwksRefreshInterval = 15 * time.Minute
	jwksClientTimeout   = 10 * time.Second
	jwtLeeway           = 5 * time.Second
	chatTimeout         = 15 * time.Second
)

func main() {
	// 1. Загрузка конфигурации (.env + переменные окружения)
	if err := config.LoadDotEnv(); err != nil {
		slog.Warn("Ошибка чтения .env", slog.String("error", err.Error()))
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("StudyVibe запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// Источник данных считается готовым после миграций и подключения
	initSignal := service.NewInitSignal()

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool); ctx отменяется по SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Хранилище PDF
	blobs, err := blobstore.New(cfg.BlobDir)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища файлов",
			slog.String("dir", cfg.BlobDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// 6. Repositories
	recordRepo := repository.NewRecordRepository(pool)
	visitorRepo := repository.NewVisitorRepository(pool)

	// 7. Services
	store := service.NewCatalogStore(recordRepo, service.NewSnapshotCache(cfg.CatalogTTL), initSignal, logger)
	initSignal.Complete()

	browseSvc := service.NewBrowseService(store, cfg.KnownBoards, logger)
	gateSvc := service.NewGateService(browseSvc, service.GateConfig{
		Duration:    cfg.GateDuration,
		CloseDelay:  cfg.GateCloseDelay,
		SessionTTL:  cfg.GateSessionTTL,
		MaxSessions: cfg.GateMaxSessions,
	}, logger)
	adminSvc := service.NewAdminService(recordRepo, visitorRepo, blobs, store, service.AdminConfig{
		PublicBaseURL:  cfg.PublicBaseURL,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, logger)
	authSvc := service.NewAuthService(service.AuthConfig{
		AdminEmail:        cfg.AdminEmail,
		AdminPasswordHash: cfg.AdminPasswordHash,
		JWTSecret:         []byte(cfg.JWTSecret),
		TTL:               cfg.JWTTTL,
	}, logger)
	visitorSvc := service.NewVisitorService(visitorRepo, logger)

	// 8. Чат-ассистент: Gemini при наличии ключа, иначе сценарные ответы
	var gen chatbot.Generator
	if cfg.GeminiAPIKey != "" {
		gemini, gErr := chatbot.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if gErr != nil {
			logger.Warn("Gemini недоступен, используются сценарные ответы",
				slog.String("error", gErr.Error()),
			)
		} else {
			defer gemini.Close()
			gen = gemini
			logger.Info("Gemini подключён", slog.String("model", cfg.GeminiModel))
		}
	}
	assistant := chatbot.NewAssistant(gen, chatTimeout, logger)

	// 9. JWT middleware (только если вход администратора настроен)
	var jwtAuth *middleware.JWTAuth
	var jwksChecker handlers.ReadinessChecker
	if cfg.AdminEnabled() {
		jwtAuth, err = middleware.NewJWTAuth(middleware.JWTAuthOptions{
			Secret:              []byte(cfg.JWTSecret),
			Issuer:              service.Issuer,
			JWKSURL:             cfg.JWKSURL,
			JWKSIssuer:          cfg.JWKSIssuer,
			JWKSAudience:        cfg.JWKSAudience,
			JWKSRefreshInterval: jwksRefreshInterval,
			JWKSClientTimeout:   jwksClientTimeout,
			Leeway:              jwtLeeway,
		}, logger)
		if err != nil {
			logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if cfg.JWKSURL != "" {
			jwksChecker = middleware.NewJWKSReadinessChecker(cfg.JWKSURL, jwksClientTimeout)
		}
		logger.Info("JWT middleware инициализирован",
			slog.String("jwks_url", cfg.JWKSURL),
			slog.String("jwks_issuer", cfg.JWKSIssuer),
		)
	} else {
		logger.Warn("Вход администратора не настроен, /api/v1/admin/* недоступен")
	}

	// 10. Валидация запросов по OpenAPI
	doc, err := openapi.Load(ctx)
	if err != nil {
		logger.Error("Ошибка загрузки OpenAPI-спецификации", slog.String("error", err.Error()))
		os.Exit(1)
	}
	validator, err := openapi.NewValidator(doc, logger)
	if err != nil {
		logger.Error("Ошибка создания OpenAPI-валидатора", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 11. Handlers
	healthHandler := handlers.NewHealthHandler(database.NewPoolChecker(pool), jwksChecker, store)
	apiHandler := handlers.NewAPIHandler(healthHandler, handlers.Services{
		Browse:         browseSvc,
		Gates:          gateSvc,
		Admin:          adminSvc,
		Auth:           authSvc,
		Visitors:       visitorSvc,
		Assistant:      assistant,
		Blobs:          blobs,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, logger)
	uiHandler := uihandlers.NewCatalogHandler(browseSvc, visitorSvc, cfg.GateDuration, logger)

	// 12. topologymetrics — мониторинг PostgreSQL
	dephealthSvc, dephealthErr := service.NewDephealthService(service.DephealthConfig{
		ServiceID: "studyvibe",
		Group:     cfg.DephealthGroup,
		DB:        pgDB,
		ConnURL:   cfg.DatabaseURL(),
		Interval:  cfg.DephealthCheckInterval,
	}, logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
		dephealthSvc = nil
	}

	// 13. HTTP-сервер
	trustedProxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		logger.Error("Ошибка разбора SV_TRUSTED_PROXIES", slog.String("error", err.Error()))
		os.Exit(1)
	}
	srv := server.New(cfg, logger, apiHandler, uiHandler, server.Options{
		JWTAuth:        jwtAuth,
		Validator:      validator,
		ChatLimiter:    middleware.NewRateLimiter("chat", cfg.ChatRate, cfg.ChatBurst),
		TrustedProxies: trustedProxies,
	})

	runErr := srv.Run(ctx)

	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	if runErr != nil {
		logger.Error("Ошибка сервера", slog.String("error", runErr.Error()))
		os.Exit(1)
	}

	logger.Info("StudyVibe остановлен")
}
