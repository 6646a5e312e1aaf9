package api

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/teknokapsul/lease-service/internal/app"
)

const testKID = "test-key"

func newJWKSServer(t *testing.T, key *rsa.PrivateKey) *httptest.Server {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"keys": []map[string]string{{
			"kid": testKID,
			"kty": "RSA",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}},
	})
	if err != nil {
		t.Fatalf("failed to encode jwks: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKID
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func callerEcho(t *testing.T, got *app.Caller) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := CallerFromContext(r.Context())
		if !ok {
			t.Fatal("expected caller in context")
		}
		*got = caller
		w.WriteHeader(http.StatusOK)
	})
}

func TestClerkAuthMiddleware(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	srv := newJWKSServer(t, key)
	cfg := AuthConfig{JWKSURL: srv.URL, Audience: "lease-app", Issuer: "https://clerk.example.com"}

	valid := jwt.MapClaims{
		"sub":   "user_123",
		"email": " tenant@example.com ",
		"aud":   []string{"lease-app"},
		"iss":   "https://clerk.example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	with := func(overrides jwt.MapClaims) jwt.MapClaims {
		claims := jwt.MapClaims{}
		for k, v := range valid {
			claims[k] = v
		}
		for k, v := range overrides {
			claims[k] = v
		}
		return claims
	}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not a bearer token", "Token abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"valid", "Bearer " + signToken(t, key, valid), http.StatusOK},
		{"expired", "Bearer " + signToken(t, key, with(jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()})), http.StatusUnauthorized},
		{"wrong audience", "Bearer " + signToken(t, key, with(jwt.MapClaims{"aud": "other-app"})), http.StatusUnauthorized},
		{"wrong issuer", "Bearer " + signToken(t, key, with(jwt.MapClaims{"iss": "https://evil.example.com"})), http.StatusUnauthorized},
		{"missing subject", "Bearer " + signToken(t, key, with(jwt.MapClaims{"sub": ""})), http.StatusUnauthorized},
		{"foreign signature", "Bearer " + signToken(t, otherKey, valid), http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got app.Caller
			handler := ClerkAuthMiddleware(cfg)(callerEcho(t, &got))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rr.Code, rr.Body.String())
			}
			if tt.want == http.StatusOK && (got.ID != "user_123" || got.Email != "tenant@example.com") {
				t.Fatalf("unexpected caller: %+v", got)
			}
		})
	}
}

func TestInternalAuthMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name     string
		required string
		provided string
		want     int
	}{
		{"matching key", "secret", "secret", http.StatusOK},
		{"wrong key", "secret", "guess", http.StatusUnauthorized},
		{"missing key", "secret", "", http.StatusUnauthorized},
		{"unconfigured key", "", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/internal/leases/overdue/run", nil)
			if tt.provided != "" {
				req.Header.Set("X-Internal-API-Key", tt.provided)
			}
			rr := httptest.NewRecorder()
			InternalAuthMiddleware(tt.required)(ok).ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestAdminOnlyMiddleware(t *testing.T) {
	isAdmin := func(c app.Caller) bool { return c.ID == "admin-1" }
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name   string
		caller *app.Caller
		want   int
	}{
		{"no caller", nil, http.StatusUnauthorized},
		{"regular user", &app.Caller{ID: "user-1"}, http.StatusForbidden},
		{"admin", &app.Caller{ID: "admin-1"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.caller != nil {
				req = withCaller(req, *tt.caller)
			}
			rr := httptest.NewRecorder()
			AdminOnlyMiddleware(isAdmin)(ok).ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestParseRSAPublicKey(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	pub, err := parseRSAPublicKey(
		base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
		base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pub.E != key.E || pub.N.Cmp(key.N) != 0 {
		t.Fatal("parsed key does not match")
	}
	if _, err := parseRSAPublicKey("!!", "AQAB"); err == nil {
		t.Fatal("expected invalid modulus to fail")
	}
}
