// auth.go — вход администратора: проверка пароля (bcrypt) и выпуск JWT (HS256).
// Учётная запись одна и задаётся конфигурацией.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/crypto/bcrypt"
)

// Issuer — значение iss в токенах администратора.
const Issuer = "studyvibe"

// RoleAdmin — роль администратора в токене.
const RoleAdmin = "admin"

var loginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sv_admin_logins_total",
	Help: "Попытки входа администратора (по результату).",
}, []string{"status"})

// AdminClaims — claims токена администратора.
type AdminClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Token — выпущенный токен доступа.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// AuthConfig — параметры входа.
type AuthConfig struct {
	AdminEmail        string
	AdminPasswordHash string
	JWTSecret         []byte
	TTL               time.Duration
}

// AuthService — вход администратора.
type AuthService struct {
	cfg    AuthConfig
	now    func() time.Time
	logger *slog.Logger
}

// NewAuthService создаёт сервис входа.
func NewAuthService(cfg AuthConfig, logger *slog.Logger) *AuthService {
	return &AuthService{
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With(slog.String("component", "auth_service")),
	}
}

// Enabled сообщает, настроен ли вход администратора.
func (s *AuthService) Enabled() bool {
	return s.cfg.AdminEmail != "" && s.cfg.AdminPasswordHash != "" && len(s.cfg.JWTSecret) > 0
}

// Login проверяет учётные данные и выпускает токен.
// Неверный email и неверный пароль неразличимы для вызывающего.
func (s *AuthService) Login(_ context.Context, email, password string) (*Token, error) {
	if !s.Enabled() {
		loginsTotal.WithLabelValues("disabled").Inc()
		return nil, ErrAdminDisabled
	}

	emailOK := strings.EqualFold(strings.TrimSpace(email), s.cfg.AdminEmail)
	// bcrypt выполняется всегда, чтобы время ответа не зависело от email.
	passErr := bcrypt.CompareHashAndPassword([]byte(s.cfg.AdminPasswordHash), []byte(password))
	if !emailOK || passErr != nil {
		loginsTotal.WithLabelValues("rejected").Inc()
		s.logger.Warn("Неудачная попытка входа", slog.String("email", email))
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	expiresAt := now.Add(s.cfg.TTL)
	claims := AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   s.cfg.AdminEmail,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
		Email: s.cfg.AdminEmail,
		Role:  RoleAdmin,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.JWTSecret)
	if err != nil {
		loginsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("подпись токена: %w", err)
	}

	loginsTotal.WithLabelValues("ok").Inc()
	s.logger.Info("Администратор вошёл", slog.String("email", s.cfg.AdminEmail))
	return &Token{AccessToken: signed, ExpiresAt: expiresAt}, nil
}

// HashPassword возвращает bcrypt-хеш пароля для SV_ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", &ValidationError{Field: "password", Message: "обязательное поле"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("хеширование пароля: %w", err)
	}
	return string(hash), nil
}
