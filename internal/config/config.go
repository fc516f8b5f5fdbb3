// Пакет config — загрузка и валидация конфигурации StudyVibe
// из переменных окружения (префикс SV_).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации сервиса.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// PublicBaseURL — внешний адрес сервиса для ссылок на загруженные файлы
	PublicBaseURL string

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// --- Каталог ---

	// CatalogTTL — время жизни снимка каталога в кэше
	CatalogTTL time.Duration
	// KnownBoards — советы, всегда отображаемые на главной странице
	KnownBoards []string

	// --- Шлюз скачивания ---

	// GateDuration — длительность отсчёта (секунд)
	GateDuration int
	// GateCloseDelay — задержка между подтверждением и выдачей ссылки
	GateCloseDelay time.Duration
	// GateSessionTTL — время жизни неактивной сессии шлюза
	GateSessionTTL time.Duration
	// GateMaxSessions — максимум одновременных сессий шлюза
	GateMaxSessions int

	// --- Blob-хранилище ---

	// BlobDir — корневой каталог загруженных файлов
	BlobDir string
	// MaxUploadBytes — максимальный размер загружаемого PDF
	MaxUploadBytes int64

	// --- Администратор ---

	// AdminEmail — email единственного администратора (пусто — вход отключён)
	AdminEmail string
	// AdminPasswordHash — bcrypt-хеш пароля администратора
	AdminPasswordHash string
	// JWTSecret — ключ подписи HS256-токенов
	JWTSecret string
	// JWTTTL — время жизни токена администратора
	JWTTTL time.Duration
	// JWKSURL — JWKS внешнего провайдера (опционально, RS256)
	JWKSURL string
	// JWKSIssuer — ожидаемый iss токенов внешнего провайдера
	JWKSIssuer string
	// JWKSAudience — ожидаемый aud токенов внешнего провайдера (пусто — не проверяется)
	JWKSAudience string

	// --- Чат-бот ---

	// GeminiAPIKey — ключ Gemini API (пусто — только сценарные ответы)
	GeminiAPIKey string
	// GeminiModel — имя модели
	GeminiModel string
	// ChatRate — допустимая частота запросов к чату на клиента (в секунду)
	ChatRate float64
	// ChatBurst — размер всплеска запросов к чату
	ChatBurst int

	// --- Мониторинг зависимостей ---

	// DephealthCheckInterval — интервал проверки зависимостей
	DephealthCheckInterval time.Duration
	// DephealthGroup — имя группы в метриках dephealth
	DephealthGroup string

	// --- HTTP Server Timeouts ---

	// TrustedProxies — IP и CIDR обратных прокси, которым доверяется X-Forwarded-For
	TrustedProxies []string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// ShutdownTimeout — таймаут graceful shutdown
	ShutdownTimeout time.Duration
}

// LoadDotEnv загружает переменные из файлов .env (если существуют).
// Уже заданные переменные окружения не перезаписываются.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("загрузка %s: %w", f, err)
		}
	}
	return nil
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	cfg.Port, err = getEnvInt("SV_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("SV_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("SV_PORT: значение %d вне диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("SV_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("SV_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("SV_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("SV_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	cfg.PublicBaseURL = strings.TrimRight(
		getEnvDefault("SV_PUBLIC_BASE_URL", fmt.Sprintf("http://localhost:%d", cfg.Port)), "/")

	// --- PostgreSQL ---

	cfg.DBHost, err = getEnvRequired("SV_DB_HOST")
	if err != nil {
		return nil, err
	}
	cfg.DBPort, err = getEnvInt("SV_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("SV_DB_PORT: %w", err)
	}
	cfg.DBName, err = getEnvRequired("SV_DB_NAME")
	if err != nil {
		return nil, err
	}
	cfg.DBUser, err = getEnvRequired("SV_DB_USER")
	if err != nil {
		return nil, err
	}
	cfg.DBPassword, err = getEnvRequired("SV_DB_PASSWORD")
	if err != nil {
		return nil, err
	}
	cfg.DBSSLMode = getEnvDefault("SV_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("SV_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Каталог ---

	cfg.CatalogTTL, err = getEnvPositiveDuration("SV_CATALOG_TTL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("SV_CATALOG_TTL: %w", err)
	}
	cfg.KnownBoards = getEnvList("SV_KNOWN_BOARDS", []string{"CBSE", "ICSE", "UP Board", "Bihar Board"})

	// --- Шлюз скачивания ---

	cfg.GateDuration, err = getEnvInt("SV_GATE_DURATION", 8)
	if err != nil {
		return nil, fmt.Errorf("SV_GATE_DURATION: %w", err)
	}
	if cfg.GateDuration < 0 {
		return nil, fmt.Errorf("SV_GATE_DURATION: значение должно быть >= 0")
	}
	cfg.GateCloseDelay, err = getEnvDuration("SV_GATE_CLOSE_DELAY", 300*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("SV_GATE_CLOSE_DELAY: %w", err)
	}
	cfg.GateSessionTTL, err = getEnvPositiveDuration("SV_GATE_SESSION_TTL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("SV_GATE_SESSION_TTL: %w", err)
	}
	cfg.GateMaxSessions, err = getEnvInt("SV_GATE_MAX_SESSIONS", 10000)
	if err != nil {
		return nil, fmt.Errorf("SV_GATE_MAX_SESSIONS: %w", err)
	}

	// --- Blob-хранилище ---

	cfg.BlobDir = getEnvDefault("SV_BLOB_DIR", "./data/blobs")
	cfg.MaxUploadBytes, err = getEnvInt64("SV_MAX_UPLOAD_BYTES", 10<<20)
	if err != nil {
		return nil, fmt.Errorf("SV_MAX_UPLOAD_BYTES: %w", err)
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("SV_MAX_UPLOAD_BYTES: значение должно быть > 0")
	}

	// --- Администратор ---

	cfg.AdminEmail = getEnvDefault("SV_ADMIN_EMAIL", "")
	cfg.AdminPasswordHash = getEnvDefault("SV_ADMIN_PASSWORD_HASH", "")
	cfg.JWTSecret = getEnvDefault("SV_JWT_SECRET", "")
	cfg.JWKSURL = getEnvDefault("SV_JWKS_URL", "")
	cfg.JWKSIssuer = getEnvDefault("SV_JWKS_ISSUER", "")
	cfg.JWKSAudience = getEnvDefault("SV_JWKS_AUDIENCE", "")
	cfg.JWTTTL, err = getEnvPositiveDuration("SV_JWT_TTL", 12*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("SV_JWT_TTL: %w", err)
	}
	if cfg.AdminEmail != "" {
		if cfg.AdminPasswordHash == "" {
			return nil, fmt.Errorf("SV_ADMIN_PASSWORD_HASH: обязателен при заданном SV_ADMIN_EMAIL")
		}
		if len(cfg.JWTSecret) < 32 {
			return nil, fmt.Errorf("SV_JWT_SECRET: требуется не менее 32 байт при заданном SV_ADMIN_EMAIL")
		}
	}
	if cfg.JWKSURL != "" && cfg.JWKSIssuer == "" {
		return nil, fmt.Errorf("SV_JWKS_ISSUER: обязателен при заданном SV_JWKS_URL")
	}

	// --- Чат-бот ---

	cfg.GeminiAPIKey = getEnvDefault("SV_GEMINI_API_KEY", "")
	cfg.GeminiModel = getEnvDefault("SV_GEMINI_MODEL", "gemini-1.5-flash")
	cfg.ChatRate, err = getEnvFloat("SV_CHAT_RATE", 0.5)
	if err != nil {
		return nil, fmt.Errorf("SV_CHAT_RATE: %w", err)
	}
	cfg.ChatBurst, err = getEnvInt("SV_CHAT_BURST", 5)
	if err != nil {
		return nil, fmt.Errorf("SV_CHAT_BURST: %w", err)
	}

	// --- Мониторинг зависимостей ---

	cfg.DephealthCheckInterval, err = getEnvPositiveDuration("SV_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SV_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	cfg.DephealthGroup = getEnvDefault("SV_DEPHEALTH_GROUP", "studyvibe")

	// --- HTTP Server Timeouts ---

	cfg.TrustedProxies = getEnvList("SV_TRUSTED_PROXIES", nil)
	cfg.HTTPReadTimeout, err = getEnvDuration("SV_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SV_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("SV_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SV_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("SV_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SV_HTTP_IDLE_TIMEOUT: %w", err)
	}
	cfg.ShutdownTimeout, err = getEnvDuration("SV_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SV_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// AdminEnabled возвращает true, если настроен вход администратора
// (локальная учётная запись или внешний JWKS).
func (c *Config) AdminEnabled() bool {
	return c.AdminEmail != "" || c.JWKSURL != ""
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения (для метрик dephealth, без пароля).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvList разбирает список через запятую, пустые элементы отбрасываются.
func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("некорректное положительное число: %q", val)
	}
	return f, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// getEnvPositiveDuration — как getEnvDuration, но значение должно быть > 0.
func getEnvPositiveDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	d, err := getEnvDuration(key, defaultVal)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("значение должно быть > 0")
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
