package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

const testSecret = "test-jwt-secret"

// forgeToken builds an HS256 JWT for tests.
func forgeToken(t *testing.T, secret string, claims map[string]any) string {
	t.Helper()

	header, _ := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatal(err)
	}

	signing := base64.RawURLEncoding.EncodeToString(header) + "." +
		base64.RawURLEncoding.EncodeToString(payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signing))
	return signing + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// TestVerifyJWT covers signature, expiry, and claim validation.
func TestVerifyJWT(t *testing.T) {
	now := time.Now()
	userID := uuid.New()

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{
			name:  "valid token",
			token: forgeToken(t, testSecret, map[string]any{"sub": userID.String(), "exp": now.Add(time.Hour).Unix()}),
		},
		{
			name:  "no expiry claim",
			token: forgeToken(t, testSecret, map[string]any{"sub": userID.String()}),
		},
		{
			name:    "expired",
			token:   forgeToken(t, testSecret, map[string]any{"sub": userID.String(), "exp": now.Add(-time.Minute).Unix()}),
			wantErr: true,
		},
		{
			name:    "wrong secret",
			token:   forgeToken(t, "other-secret", map[string]any{"sub": userID.String(), "exp": now.Add(time.Hour).Unix()}),
			wantErr: true,
		},
		{
			name:    "subject not a uuid",
			token:   forgeToken(t, testSecret, map[string]any{"sub": "player-one", "exp": now.Add(time.Hour).Unix()}),
			wantErr: true,
		},
		{name: "malformed", token: "abc.def", wantErr: true},
		{name: "empty", token: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := VerifyJWT(tt.token, testSecret, now)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("VerifyJWT: %v", err)
			}
			got, err := claims.UserID()
			if err != nil || got != userID {
				t.Fatalf("user id = %v, want %v", got, userID)
			}
		})
	}
}

// TestVerifyJWTRejectsAlgNone verifies algorithm confusion is blocked even
// with a matching signature layout.
func TestVerifyJWTRejectsAlgNone(t *testing.T) {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf(`{"sub":%q}`, uuid.New())))
	token := header + "." + payload + "."

	if _, err := VerifyJWT(token, testSecret, time.Now()); err == nil {
		t.Fatal("alg=none must be rejected")
	}
}

// TestTokenFromRequest verifies header and query extraction.
func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Authorization", "Bearer header-token")
	if got := TokenFromRequest(r); got != "header-token" {
		t.Fatalf("got %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/ws?token=query-token", nil)
	if got := TokenFromRequest(r); got != "query-token" {
		t.Fatalf("got %q", got)
	}
}

// TestRequireAuth verifies the middleware gate and context propagation.
func TestRequireAuth(t *testing.T) {
	userID := uuid.New()
	token := forgeToken(t, testSecret, map[string]any{
		"sub": userID.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	var gotID uuid.UUID
	handler := RequireAuth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = UserIDFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	// Valid token passes and claims reach the handler.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/inventory", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || gotID != userID {
		t.Fatalf("status = %d, user = %v", rec.Code, gotID)
	}

	// Missing token is rejected.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inventory", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	// Garbage token is rejected.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/inventory", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
