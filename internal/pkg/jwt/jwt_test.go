package jwt_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/siterank/siterank-api/internal/pkg/jwt"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := jwt.NewService("test-secret", 15*time.Minute)
	userID := uuid.New()

	token, err := svc.GenerateAccessToken(userID, jwt.RoleManager)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	claims, err := svc.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if claims.UserID != userID {
		t.Fatalf("expected user %s, got %s", userID, claims.UserID)
	}
	if claims.Role != jwt.RoleManager {
		t.Fatalf("expected role manager, got %s", claims.Role)
	}
}

func TestValidateWrongSecret(t *testing.T) {
	svc := jwt.NewService("secret-a", 15*time.Minute)
	other := jwt.NewService("secret-b", 15*time.Minute)

	token, err := svc.GenerateAccessToken(uuid.New(), jwt.RoleUser)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	if _, err := other.ValidateAccessToken(token); !errors.Is(err, jwt.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateExpired(t *testing.T) {
	svc := jwt.NewService("test-secret", -time.Minute)

	token, err := svc.GenerateAccessToken(uuid.New(), jwt.RoleUser)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	if _, err := svc.ValidateAccessToken(token); !errors.Is(err, jwt.ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestValidateGarbage(t *testing.T) {
	svc := jwt.NewService("test-secret", 15*time.Minute)

	if _, err := svc.ValidateAccessToken("not.a.token"); !errors.Is(err, jwt.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
