package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestCitizenTokenRoundTrip(t *testing.T) {
	svc, err := NewTokenService("test-secret-value", time.Hour)
	if err != nil {
		t.Fatalf("Failed to create token service: %v", err)
	}

	token, expiresAt, err := svc.GenerateCitizenToken("citizen-42")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	if time.Until(expiresAt) > time.Hour || time.Until(expiresAt) < 59*time.Minute {
		t.Errorf("Expected expiry about an hour away, got %s", expiresAt)
	}

	claims, err := svc.ValidateCitizenToken(token)
	if err != nil {
		t.Fatalf("Expected valid token, got %v", err)
	}
	if claims.UserID != "citizen-42" {
		t.Errorf("Expected user citizen-42, got %s", claims.UserID)
	}
	if claims.Role != RoleCitizen {
		t.Errorf("Expected role %s, got %s", RoleCitizen, claims.Role)
	}
}

func TestValidateTokenRejectsOtherSecret(t *testing.T) {
	issuer, _ := NewTokenService("first-secret-value", time.Hour)
	verifier, _ := NewTokenService("second-secret-value", time.Hour)

	token, _, err := issuer.GenerateCitizenToken("citizen-1")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	if _, err := verifier.ValidateToken(token); err == nil {
		t.Error("Expected token signed with another secret to be rejected")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc, _ := NewTokenService("test-secret-value", time.Minute)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := svc.GenerateCitizenToken("citizen-1")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	svc.now = time.Now
	if _, err := svc.ValidateToken(token); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Errorf("Expected ErrTokenExpired, got %v", err)
	}
}

func TestValidateCitizenTokenRejectsOtherRoles(t *testing.T) {
	svc, _ := NewTokenService("test-secret-value", time.Hour)
	claims := &JWTClaims{
		UserID: "device-1",
		Role:   "device",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret-value"))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	if _, err := svc.ValidateCitizenToken(token); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("Expected ErrInvalidRole, got %v", err)
	}
}

func TestValidateTokenMissing(t *testing.T) {
	svc, _ := NewTokenService("test-secret-value", time.Hour)
	if _, err := svc.ValidateToken(""); !errors.Is(err, ErrMissingToken) {
		t.Errorf("Expected ErrMissingToken, got %v", err)
	}
}

func TestNewTokenServiceRequiresSecret(t *testing.T) {
	if _, err := NewTokenService("", time.Hour); !errors.Is(err, ErrEmptySecret) {
		t.Errorf("Expected ErrEmptySecret, got %v", err)
	}
}
