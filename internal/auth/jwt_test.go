package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

func TestNewTokenService_ShortSecret(t *testing.T) {
	_, err := NewTokenService("short", time.Hour)
	if err == nil {
		t.Fatal("NewTokenService() should reject secrets shorter than 16 chars")
	}
}

func TestNewTokenService_DefaultTTL(t *testing.T) {
	ts, err := NewTokenService("this-is-16-chars", 0)
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	if ts.TTL() != DefaultSessionTTL {
		t.Errorf("TTL() = %v, want %v", ts.TTL(), DefaultSessionTTL)
	}
}

func TestGenerate_LooksLikeJWT(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("u1", false)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("token %q is not header.payload.signature", token)
	}
}

func TestValidate_RoundTrip(t *testing.T) {
	tests := []struct {
		name        string
		tenantReady bool
	}{
		{name: "tenant not ready", tenantReady: false},
		{name: "tenant ready", tenantReady: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestTokenService(t)

			token, err := ts.Generate("cnsd7g2v0l5c73f4ug8g", tt.tenantReady)
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}

			sess, err := ts.Validate(token)
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if sess.UserID != "cnsd7g2v0l5c73f4ug8g" {
				t.Errorf("UserID = %q", sess.UserID)
			}
			if sess.TenantReady != tt.tenantReady {
				t.Errorf("TenantReady = %v, want %v", sess.TenantReady, tt.tenantReady)
			}
			if until := time.Until(sess.ExpiresAt); until < 59*time.Minute || until > time.Hour {
				t.Errorf("ExpiresAt in %v, want about 1h", until)
			}
		})
	}
}

func TestValidate_Rejects(t *testing.T) {
	ts := newTestTokenService(t)
	other, _ := NewTokenService("wrong-secret-32-chars-long!!!!!!", time.Hour)

	expired, _ := ts.GenerateWithDuration("u1", true, -time.Second)
	valid, _ := ts.Generate("u1", true)
	foreign, _ := other.Generate("u1", true)
	noSubject, _ := ts.Generate("", false)

	otherIssuer, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("test-secret-at-least-16-chars!!"))

	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "u1",
		Issuer:  Issuer,
	}).SignedString([]byte("test-secret-at-least-16-chars!!"))

	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "u1",
		Issuer:    Issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not-a-jwt"},
		{name: "expired", token: expired},
		{name: "tampered signature", token: valid[:len(valid)-3] + "xxx"},
		{name: "wrong secret", token: foreign},
		{name: "no subject", token: noSubject},
		{name: "other issuer", token: otherIssuer},
		{name: "no expiry", token: noExpiry},
		{name: "alg none", token: unsigned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ts.Validate(tt.token); err == nil {
				t.Fatal("Validate() should have returned an error")
			}
		})
	}
}
