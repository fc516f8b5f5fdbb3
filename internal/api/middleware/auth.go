// auth.go — JWT middleware для защиты административных endpoints.
//
// Принимаются два вида токенов:
//   - HS256, выпущенные самим сервисом при входе администратора;
//   - RS256 внешнего IdP, если задан SV_JWKS_URL (ключи через JWKS).
//     Для них обязателен iss = SV_JWKS_ISSUER, а при заданном
//     SV_JWKS_AUDIENCE в aud должен присутствовать этот получатель.
//
// Роль берётся из claim role либо из realm_access.roles (Keycloak).
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/shivnayan54/studyvibe/internal/api/errors"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyClaims — извлечённые claims в контексте запроса.
	ContextKeyClaims contextKey = "jwt_claims"
)

// RoleAdmin — роль, требуемая для административных endpoints.
const RoleAdmin = "admin"

// AuthClaims — claims аутентифицированного субъекта.
type AuthClaims struct {
	// Subject — sub из JWT.
	Subject string
	// Email — email из JWT.
	Email string
	// Roles — роль из claim role и роли realm_access.roles.
	Roles []string
	// External — токен выпущен внешним IdP (RS256).
	External bool
}

// HasRole проверяет наличие роли.
func (c *AuthClaims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// tokenClaims — raw claims для парсинга.
type tokenClaims struct {
	jwt.RegisteredClaims
	Email       string       `json:"email"`
	Role        string       `json:"role,omitempty"`
	RealmAccess *realmAccess `json:"realm_access,omitempty"`
}

// realmAccess — вложенная структура realm_access в JWT Keycloak.
type realmAccess struct {
	Roles []string `json:"roles"`
}

// JWTAuth — middleware для JWT-аутентификации.
type JWTAuth struct {
	secret    []byte
	issuer    string
	jwks      keyfunc.Keyfunc
	extIssuer string
	extAud    string
	jwtLeeway time.Duration
	logger    *slog.Logger
}

// JWTAuthOptions — параметры JWTAuth.
type JWTAuthOptions struct {
	// Secret — ключ HS256 (SV_JWT_SECRET)
	Secret []byte
	// Issuer — ожидаемый iss токенов HS256
	Issuer string
	// JWKSURL — JWKS внешнего IdP (пусто — только HS256)
	JWKSURL string
	// JWKSIssuer — ожидаемый iss токенов RS256, обязателен при JWKSURL
	JWKSIssuer string
	// JWKSAudience — ожидаемый aud токенов RS256 (пусто — не проверяется)
	JWKSAudience string
	// JWKSRefreshInterval — интервал обновления ключей JWKS
	JWKSRefreshInterval time.Duration
	// JWKSClientTimeout — таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration
	// Leeway — допустимое отклонение часов
	Leeway time.Duration
}

// NewJWTAuth создаёт JWT middleware.
func NewJWTAuth(opts JWTAuthOptions, logger *slog.Logger) (*JWTAuth, error) {
	if len(opts.Secret) == 0 && opts.JWKSURL == "" {
		return nil, errors.New("не задан ни SV_JWT_SECRET, ни SV_JWKS_URL")
	}
	if opts.JWKSURL != "" && opts.JWKSIssuer == "" {
		return nil, errors.New("SV_JWKS_ISSUER обязателен при заданном SV_JWKS_URL")
	}

	j := &JWTAuth{
		secret:    opts.Secret,
		issuer:    opts.Issuer,
		extIssuer: opts.JWKSIssuer,
		extAud:    opts.JWKSAudience,
		jwtLeeway: opts.Leeway,
		logger:    logger.With(slog.String("component", "jwt_auth")),
	}

	if opts.JWKSURL != "" {
		// NoErrorReturnFirstHTTPReq — стартуем даже если IdP ещё недоступен.
		storage, err := jwkset.NewStorageFromHTTP(opts.JWKSURL, jwkset.HTTPClientStorageOptions{
			Client:                    &http.Client{Timeout: opts.JWKSClientTimeout},
			NoErrorReturnFirstHTTPReq: true,
			RefreshInterval:           opts.JWKSRefreshInterval,
			RefreshErrorHandler: func(_ context.Context, err error) {
				logger.Error("Ошибка обновления JWKS",
					slog.String("error", err.Error()),
					slog.String("url", opts.JWKSURL),
				)
			},
		})
		if err != nil {
			return nil, fmt.Errorf("создание JWKS storage: %w", err)
		}
		k, err := keyfunc.New(keyfunc.Options{Storage: storage})
		if err != nil {
			return nil, fmt.Errorf("создание keyfunc: %w", err)
		}
		j.jwks = k
	}

	return j, nil
}

// keyFor выбирает ключ проверки по алгоритму токена.
func (j *JWTAuth) keyFor(ctx context.Context) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodHMAC:
			if len(j.secret) == 0 {
				return nil, errors.New("токены HS256 не принимаются")
			}
			return j.secret, nil
		case *jwt.SigningMethodRSA:
			if j.jwks == nil {
				return nil, errors.New("токены RS256 не принимаются: JWKS не настроен")
			}
			return j.jwks.KeyfuncCtx(ctx)(token)
		default:
			return nil, fmt.Errorf("неподдерживаемый алгоритм %s", token.Method.Alg())
		}
	}
}

// Middleware извлекает Bearer token, проверяет подпись и срок действия
// и помещает AuthClaims в контекст.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}

			tokenString := strings.TrimSpace(parts[1])
			if tokenString == "" {
				apierrors.Unauthorized(w, "Пустой Bearer token")
				return
			}

			raw := &tokenClaims{}
			token, err := jwt.ParseWithClaims(tokenString, raw, j.keyFor(r.Context()),
				jwt.WithValidMethods([]string{"HS256", "RS256"}),
				jwt.WithExpirationRequired(),
				jwt.WithLeeway(j.jwtLeeway),
			)
			if err != nil || !token.Valid {
				j.logger.Debug("JWT валидация не пройдена",
					slog.Any("error", err),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			external := token.Method.Alg() == "RS256"
			if reason := j.checkIssuer(raw, external); reason != "" {
				j.logger.Debug("JWT отклонён",
					slog.String("reason", reason),
					slog.String("issuer", raw.Issuer),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, reason)
				return
			}
			if raw.Subject == "" {
				apierrors.Unauthorized(w, "Отсутствует sub в токене")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyClaims, buildAuthClaims(raw, external))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// checkIssuer сверяет iss и aud с настройками для вида токена.
// Возвращает причину отказа или пустую строку.
func (j *JWTAuth) checkIssuer(raw *tokenClaims, external bool) string {
	if !external {
		if j.issuer != "" && raw.Issuer != j.issuer {
			return "Неверный issuer токена"
		}
		return ""
	}
	if raw.Issuer != j.extIssuer {
		return "Неверный issuer токена"
	}
	if j.extAud != "" && !slices.Contains(raw.Audience, j.extAud) {
		return "Токен выпущен для другого получателя"
	}
	return ""
}

// buildAuthClaims формирует AuthClaims из raw claims.
func buildAuthClaims(raw *tokenClaims, external bool) *AuthClaims {
	claims := &AuthClaims{
		Subject:  raw.Subject,
		Email:    raw.Email,
		External: external,
	}
	if raw.Role != "" {
		claims.Roles = append(claims.Roles, raw.Role)
	}
	if raw.RealmAccess != nil {
		claims.Roles = append(claims.Roles, raw.RealmAccess.Roles...)
	}
	return claims
}

// RequireRole пропускает только субъектов с указанной ролью.
// Должен использоваться ПОСЛЕ JWTAuth.Middleware().
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				apierrors.Unauthorized(w, "Отсутствуют claims в контексте")
				return
			}
			if !claims.HasRole(role) {
				apierrors.Forbidden(w, fmt.Sprintf("Недостаточно прав: требуется роль %s", role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext извлекает AuthClaims из контекста запроса.
// Возвращает nil, если claims не найдены.
func ClaimsFromContext(ctx context.Context) *AuthClaims {
	claims, _ := ctx.Value(ContextKeyClaims).(*AuthClaims)
	return claims
}

// SubjectFromContext извлекает sub из контекста запроса.
func SubjectFromContext(ctx context.Context) string {
	claims := ClaimsFromContext(ctx)
	if claims == nil {
		return ""
	}
	return claims.Subject
}

// --- ReadinessChecker для внешнего IdP ---

// JWKSReadinessChecker — проверка доступности JWKS внешнего IdP.
type JWKSReadinessChecker struct {
	jwksURL string
	client  *http.Client
}

// NewJWKSReadinessChecker создаёт checker доступности JWKS.
func NewJWKSReadinessChecker(jwksURL string, timeout time.Duration) *JWKSReadinessChecker {
	return &JWKSReadinessChecker{
		jwksURL: jwksURL,
		client:  &http.Client{Timeout: timeout},
	}
}

const statusFail = "fail"

// CheckReady проверяет, что JWKS endpoint отвечает и содержит ключи.
func (k *JWKSReadinessChecker) CheckReady() (status, message string) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, k.jwksURL, http.NoBody)
	if err != nil {
		return statusFail, "ошибка создания запроса: " + err.Error()
	}
	resp, err := k.client.Do(req) //nolint:gosec // URL из конфигурации
	if err != nil {
		return statusFail, fmt.Sprintf("JWKS недоступен: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusFail, fmt.Sprintf("JWKS вернул статус %d", resp.StatusCode)
	}

	var jwksResp struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwksResp); err != nil {
		return "degraded", fmt.Sprintf("JWKS: невалидный JSON: %v", err)
	}
	if len(jwksResp.Keys) == 0 {
		return "degraded", "JWKS: нет ключей"
	}
	return "ok", fmt.Sprintf("JWKS доступен, ключей: %d", len(jwksResp.Keys))
}
