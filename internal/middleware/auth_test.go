package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/siterank/siterank-api/internal/middleware"
	"github.com/siterank/siterank-api/internal/pkg/jwt"
)

func TestAuthMissingHeader(t *testing.T) {
	svc := jwt.NewService("test-secret", 15*time.Minute)
	handler := middleware.Auth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthInvalidToken(t *testing.T) {
	svc := jwt.NewService("test-secret", 15*time.Minute)
	handler := middleware.Auth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthValidToken(t *testing.T) {
	svc := jwt.NewService("test-secret", 15*time.Minute)
	userID := uuid.New()

	token, err := svc.GenerateAccessToken(userID, jwt.RoleManager)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	var gotID uuid.UUID
	var gotRole string
	handler := middleware.Auth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = middleware.GetUserID(r.Context())
		gotRole = middleware.GetRole(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotID != userID {
		t.Fatalf("expected user %s in context, got %s", userID, gotID)
	}
	if gotRole != jwt.RoleManager {
		t.Fatalf("expected role manager in context, got %s", gotRole)
	}
}

func TestRequireModerator(t *testing.T) {
	svc := jwt.NewService("test-secret", 15*time.Minute)

	chain := func(role string) int {
		token, err := svc.GenerateAccessToken(uuid.New(), role)
		if err != nil {
			t.Fatalf("generate failed: %v", err)
		}

		handler := middleware.Auth(svc)(middleware.RequireModerator()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := chain(jwt.RoleUser); code != http.StatusForbidden {
		t.Fatalf("user: expected 403, got %d", code)
	}
	if code := chain(jwt.RoleManager); code != http.StatusOK {
		t.Fatalf("manager: expected 200, got %d", code)
	}
	if code := chain(jwt.RoleAdmin); code != http.StatusOK {
		t.Fatalf("admin: expected 200, got %d", code)
	}
}
