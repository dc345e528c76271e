package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"users-api/internal/domain"
	"users-api/internal/service"
)

func protectedRouter(jwtSvc *service.JWTService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", JWTAuthMiddleware(jwtSvc), WithClaims(func(c *gin.Context, claims service.Claims) {
		if claims.UserID != "u1" {
			c.Status(http.StatusForbidden)
			return
		}
		c.Status(http.StatusOK)
	}))
	return r
}

func TestJWTAuthMiddleware_AllowsValidAccessToken(t *testing.T) {
	jwtSvc := service.NewJWTService("secret", 15*time.Minute, "users-api")
	tok, err := jwtSvc.Issue(domain.User{ID: "u1", Email: "user@example.com"})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	for _, scheme := range []string{"Bearer ", "bearer ", "BEARER "} {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", scheme+tok.AccessToken)
		rec := httptest.NewRecorder()
		protectedRouter(jwtSvc).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 for scheme %q, got %d", scheme, rec.Code)
		}
	}
}

func TestJWTAuthMiddleware_RejectsMissingToken(t *testing.T) {
	jwtSvc := service.NewJWTService("secret", 15*time.Minute, "users-api")

	for _, header := range []string{"", "Bearer", "Basic dXNlcjpwYXNz", "Bearer    "} {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		protectedRouter(jwtSvc).ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for header %q, got %d", header, rec.Code)
		}
	}
}

func TestJWTAuthMiddleware_RejectsForeignToken(t *testing.T) {
	other := service.NewJWTService("other", 15*time.Minute, "users-api")
	tok, err := other.Issue(domain.User{ID: "u1"})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	rec := httptest.NewRecorder()
	protectedRouter(service.NewJWTService("secret", 15*time.Minute, "users-api")).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestJWTAuthMiddleware_NotConfigured(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer x")
	rec := httptest.NewRecorder()
	protectedRouter(nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestWithClaims_RejectsWithoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	called := false
	r := gin.New()
	r.GET("/unguarded", WithClaims(func(c *gin.Context, _ service.Claims) {
		called = true
		c.Status(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/unguarded", nil))

	if rec.Code != http.StatusUnauthorized || called {
		t.Fatalf("expected 401 without invoking handler, got %d (called=%v)", rec.Code, called)
	}
}
