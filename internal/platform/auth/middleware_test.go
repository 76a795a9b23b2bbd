package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func testConfig() JWTConfig {
	return JWTConfig{Issuer: "doclogs", SigningKey: testSigningKey, TTL: time.Hour}
}

func runMiddleware(t *testing.T, mw echo.MiddlewareFunc, headers map[string]string) (string, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen string
	h := mw(func(c echo.Context) error {
		seen = DoctorIDFromContext(c.Request().Context())
		return c.String(http.StatusOK, "ok")
	})
	err := h(c)
	return seen, err
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with status %d", code)
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestTokenIssuer_IssueAndParse(t *testing.T) {
	issuer := NewTokenIssuer(testConfig())
	tok, exp, err := issuer.Issue("D1", "drsmith")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Error("expected expiry in the future")
	}

	claims, err := issuer.Parse(tok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Subject != "D1" {
		t.Errorf("expected subject D1, got %s", claims.Subject)
	}
	if claims.Username != "drsmith" {
		t.Errorf("expected username drsmith, got %s", claims.Username)
	}
	if claims.ID == "" {
		t.Error("expected a token id")
	}
}

func TestTokenIssuer_NoKey(t *testing.T) {
	issuer := NewTokenIssuer(JWTConfig{})
	if _, _, err := issuer.Issue("D1", "u"); err == nil {
		t.Error("expected error without a signing key")
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	_, err := runMiddleware(t, JWTMiddleware(testConfig()), nil)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runMiddleware(t, JWTMiddleware(testConfig()), map[string]string{"Authorization": tt.header})
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	tok, _, _ := NewTokenIssuer(testConfig()).Issue("D1", "drsmith")
	seen, err := runMiddleware(t, JWTMiddleware(testConfig()), map[string]string{"Authorization": "Bearer " + tok})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen != "D1" {
		t.Errorf("expected D1 in context, got %q", seen)
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "D1",
		Issuer:    "doclogs",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}}
	tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSigningKey)

	_, err := runMiddleware(t, JWTMiddleware(testConfig()), map[string]string{"Authorization": "Bearer " + tok})
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_WrongKeyOrIssuer(t *testing.T) {
	other := NewTokenIssuer(JWTConfig{Issuer: "doclogs", SigningKey: []byte("another-key")})
	tok, _, _ := other.Issue("D1", "u")
	_, err := runMiddleware(t, JWTMiddleware(testConfig()), map[string]string{"Authorization": "Bearer " + tok})
	expectStatus(t, err, http.StatusUnauthorized)

	foreign := NewTokenIssuer(JWTConfig{Issuer: "elsewhere", SigningKey: testSigningKey})
	tok, _, _ = foreign.Issue("D1", "u")
	_, err = runMiddleware(t, JWTMiddleware(testConfig()), map[string]string{"Authorization": "Bearer " + tok})
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_Skipper(t *testing.T) {
	cfg := testConfig()
	cfg.Skipper = func(echo.Context) bool { return true }
	if _, err := runMiddleware(t, JWTMiddleware(cfg), nil); err != nil {
		t.Errorf("expected skipped request to pass, got %v", err)
	}
}

func TestDevAuthMiddleware_Header(t *testing.T) {
	seen, err := runMiddleware(t, DevAuthMiddleware(testConfig()), map[string]string{DevDoctorHeader: "D7"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen != "D7" {
		t.Errorf("expected D7, got %q", seen)
	}
}

func TestDevAuthMiddleware_TokenStillValidated(t *testing.T) {
	_, err := runMiddleware(t, DevAuthMiddleware(testConfig()), map[string]string{
		"Authorization":  "Bearer garbage",
		DevDoctorHeader: "D7",
	})
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestDevAuthMiddleware_NothingSent(t *testing.T) {
	_, err := runMiddleware(t, DevAuthMiddleware(testConfig()), nil)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestIsPublicPath(t *testing.T) {
	if !IsPublicPath("/health") || IsPublicPath("/doctors/add_slot") {
		t.Error("unexpected public path classification")
	}
}
