package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testSecret = "test-secret"
	testIssuer = "studyvibe"
	testKeyID  = "test-key"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newHSAuth создаёт JWTAuth только для токенов HS256.
func newHSAuth(t *testing.T) *JWTAuth {
	t.Helper()
	auth, err := NewJWTAuth(JWTAuthOptions{
		Secret: []byte(testSecret),
		Issuer: testIssuer,
	}, testLogger())
	if err != nil {
		t.Fatalf("NewJWTAuth: %v", err)
	}
	return auth
}

func signHS(t *testing.T, claims tokenClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func validClaims(role string) tokenClaims {
	return tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin@studyvibe.test",
			Issuer:    testIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Role: role,
	}
}

// protected оборачивает обработчик в JWT + RequireRole(admin).
func protected(auth *JWTAuth, next http.HandlerFunc) http.Handler {
	return auth.Middleware()(RequireRole(RoleAdmin)(next))
}

func TestJWTAuth_HS256(t *testing.T) {
	auth := newHSAuth(t)

	expired := validClaims(RoleAdmin)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	wrongIssuer := validClaims(RoleAdmin)
	wrongIssuer.Issuer = "someone-else"

	noSubject := validClaims(RoleAdmin)
	noSubject.Subject = ""

	noExp := validClaims(RoleAdmin)
	noExp.ExpiresAt = nil

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "валидный токен", header: "Bearer " + signHS(t, validClaims(RoleAdmin)), want: http.StatusOK},
		{name: "bearer в нижнем регистре", header: "bearer " + signHS(t, validClaims(RoleAdmin)), want: http.StatusOK},
		{name: "без заголовка", header: "", want: http.StatusUnauthorized},
		{name: "не Bearer", header: "Basic YWRtaW46cGFzcw==", want: http.StatusUnauthorized},
		{name: "пустой токен", header: "Bearer  ", want: http.StatusUnauthorized},
		{name: "мусор", header: "Bearer not-a-jwt", want: http.StatusUnauthorized},
		{name: "просрочен", header: "Bearer " + signHS(t, expired), want: http.StatusUnauthorized},
		{name: "чужой issuer", header: "Bearer " + signHS(t, wrongIssuer), want: http.StatusUnauthorized},
		{name: "без sub", header: "Bearer " + signHS(t, noSubject), want: http.StatusUnauthorized},
		{name: "без exp", header: "Bearer " + signHS(t, noExp), want: http.StatusUnauthorized},
		{name: "без роли", header: "Bearer " + signHS(t, validClaims("")), want: http.StatusForbidden},
		{name: "другая роль", header: "Bearer " + signHS(t, validClaims("viewer")), want: http.StatusForbidden},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := protected(auth, func(w http.ResponseWriter, r *http.Request) {
				if SubjectFromContext(r.Context()) != "admin@studyvibe.test" {
					t.Errorf("sub = %q", SubjectFromContext(r.Context()))
				}
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Errorf("статус = %d, ожидался %d (тело: %s)", rec.Code, tc.want, rec.Body.String())
			}
		})
	}
}

func TestJWTAuth_WrongSecret(t *testing.T) {
	auth := newHSAuth(t)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims(RoleAdmin)).SignedString([]byte("other"))
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	protected(auth, func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("статус = %d, ожидался 401", rec.Code)
	}
}

func TestNewJWTAuth_RequiresKeySource(t *testing.T) {
	if _, err := NewJWTAuth(JWTAuthOptions{}, testLogger()); err == nil {
		t.Fatal("ожидалась ошибка без секрета и JWKS")
	}
}

// jwksServer отдаёт JWKS с публичным ключом key.
func jwksServer(t *testing.T, key *rsa.PublicKey) *httptest.Server {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"keys": []map[string]any{{
			"kty": "RSA",
			"kid": testKeyID,
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

const (
	testExtIssuer   = "https://idp.example.com/realms/studyvibe"
	testExtAudience = "studyvibe-admin"
)

// newExternalAuth создаёт JWTAuth только для RS256 и ключ подписи к нему.
func newExternalAuth(t *testing.T) (*JWTAuth, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	srv := jwksServer(t, &key.PublicKey)

	auth, err := NewJWTAuth(JWTAuthOptions{
		Issuer:              testIssuer,
		JWKSURL:             srv.URL,
		JWKSIssuer:          testExtIssuer,
		JWKSAudience:        testExtAudience,
		JWKSRefreshInterval: time.Hour,
		JWKSClientTimeout:   time.Second,
	}, testLogger())
	if err != nil {
		t.Fatalf("NewJWTAuth: %v", err)
	}
	return auth, key
}

func signRS(t *testing.T, key *rsa.PrivateKey, claims tokenClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func externalClaims() tokenClaims {
	claims := validClaims("")
	claims.Issuer = testExtIssuer
	claims.Audience = jwt.ClaimStrings{"account", testExtAudience}
	claims.RealmAccess = &realmAccess{Roles: []string{"offline_access", RoleAdmin}}
	return claims
}

// TestJWTAuth_ExternalRealmRoles проверяет RS256-токен внешнего IdP с ролью в realm_access.
func TestJWTAuth_ExternalRealmRoles(t *testing.T) {
	auth, key := newExternalAuth(t)

	var got *AuthClaims
	h := protected(auth, func(w http.ResponseWriter, r *http.Request) {
		got = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signRS(t, key, externalClaims()))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, тело: %s", rec.Code, rec.Body.String())
	}
	if got == nil || !got.External || !got.HasRole(RoleAdmin) {
		t.Errorf("claims = %+v", got)
	}

	// HS256 не принимается без секрета
	hsReq := httptest.NewRequest(http.MethodGet, "/", nil)
	hsReq.Header.Set("Authorization", "Bearer "+signHS(t, validClaims(RoleAdmin)))
	hsRec := httptest.NewRecorder()
	h.ServeHTTP(hsRec, hsReq)
	if hsRec.Code != http.StatusUnauthorized {
		t.Errorf("HS256 без секрета: статус = %d, ожидался 401", hsRec.Code)
	}
}

// TestJWTAuth_ExternalIssuerAudience проверяет сверку iss и aud у токенов RS256.
func TestJWTAuth_ExternalIssuerAudience(t *testing.T) {
	auth, key := newExternalAuth(t)
	h := protected(auth, func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name   string
		mutate func(c *tokenClaims)
	}{
		{name: "чужой issuer", mutate: func(c *tokenClaims) { c.Issuer = "https://other-idp.example.com/realms/x" }},
		{name: "собственный issuer сервиса", mutate: func(c *tokenClaims) { c.Issuer = testIssuer }},
		{name: "нет issuer", mutate: func(c *tokenClaims) { c.Issuer = "" }},
		{name: "чужой audience", mutate: func(c *tokenClaims) { c.Audience = jwt.ClaimStrings{"other-app"} }},
		{name: "нет audience", mutate: func(c *tokenClaims) { c.Audience = nil }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			claims := externalClaims()
			tc.mutate(&claims)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+signRS(t, key, claims))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("статус = %d, ожидался 401", rec.Code)
			}
		})
	}
}

func TestNewJWTAuth_JWKSRequiresIssuer(t *testing.T) {
	_, err := NewJWTAuth(JWTAuthOptions{
		JWKSURL:             "http://127.0.0.1:1/jwks",
		JWKSRefreshInterval: time.Hour,
		JWKSClientTimeout:   time.Second,
	}, testLogger())
	if err == nil {
		t.Fatal("ожидалась ошибка без SV_JWKS_ISSUER")
	}
}

func TestRequireRole_NoClaims(t *testing.T) {
	h := RequireRole(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("статус = %d, ожидался 401", rec.Code)
	}
}

func TestJWKSReadinessChecker(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	srv := jwksServer(t, &key.PublicKey)

	if status, msg := NewJWKSReadinessChecker(srv.URL, time.Second).CheckReady(); status != "ok" {
		t.Errorf("status = %s (%s), ожидался ok", status, msg)
	}

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"keys":[]}`))
	}))
	defer empty.Close()
	if status, _ := NewJWKSReadinessChecker(empty.URL, time.Second).CheckReady(); status != "degraded" {
		t.Errorf("пустой JWKS: status = %s, ожидался degraded", status)
	}

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()
	if status, _ := NewJWKSReadinessChecker(broken.URL, time.Second).CheckReady(); status != statusFail {
		t.Errorf("502: status = %s, ожидался fail", status)
	}
}
