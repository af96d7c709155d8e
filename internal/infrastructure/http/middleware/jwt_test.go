package middleware

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

	"3tcapital/ms_cartaporte_core/internal/infrastructure/config"
	"3tcapital/ms_cartaporte_core/internal/testutil"
)

const (
	testIssuer = "https://issuer.example.com"
	testKID    = "test-key"
)

// newJWKSServer serves a single RSA verification key and returns the
// matching private key for signing test tokens.
func newJWKSServer(t *testing.T) (*httptest.Server, *rsa.PrivateKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	jwks := map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": testKID,
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
		}},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	}))
	t.Cleanup(srv.Close)
	return srv, key
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKID
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func newEnabledAuthenticator(t *testing.T, jwksURL string, bypass ...string) *JWTAuthenticator {
	t.Helper()
	auth, err := NewJWTAuthenticator(config.AuthSettings{
		Enabled:     true,
		IssuerURI:   testIssuer,
		JWKSetURI:   jwksURL,
		ClockSkew:   time.Minute,
		BypassPaths: bypass,
	}, testutil.NewNullLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(auth.Close)
	return auth
}

func TestNewJWTAuthenticator_AuthDisabled(t *testing.T) {
	auth, err := NewJWTAuthenticator(config.AuthSettings{Enabled: false}, testutil.NewTestLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if auth == nil {
		t.Fatal("expected authenticator to be created, got nil")
	}
	if auth.cfg.Enabled {
		t.Error("expected auth to be disabled")
	}
}

func TestNewJWTAuthenticator_AuthEnabled_InvalidJWKSetURI(t *testing.T) {
	cfg := config.AuthSettings{
		Enabled:   true,
		IssuerURI: testIssuer,
		JWKSetURI: "invalid-uri",
	}

	_, err := NewJWTAuthenticator(cfg, testutil.NewTestLogger())
	if err == nil {
		t.Fatal("expected error for invalid JWKSetURI")
	}
}

func TestJWTAuthenticator_Middleware_AuthDisabled(t *testing.T) {
	auth, _ := NewJWTAuthenticator(config.AuthSettings{Enabled: false}, testutil.NewTestLogger())
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/carta-porte/timbrar", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}

func TestJWTAuthenticator_Middleware(t *testing.T) {
	srv, key := newJWKSServer(t)
	auth := newEnabledAuthenticator(t, srv.URL, "/health", "/metrics")

	var gotSubject string
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject = Subject(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	now := time.Now()
	valid := signToken(t, key, jwt.MapClaims{
		"iss": testIssuer,
		"sub": "svc-logistica",
		"exp": now.Add(time.Hour).Unix(),
	})
	expired := signToken(t, key, jwt.MapClaims{
		"iss": testIssuer,
		"sub": "svc-logistica",
		"exp": now.Add(-time.Hour).Unix(),
	})
	wrongIssuer := signToken(t, key, jwt.MapClaims{
		"iss": "https://other.example.com",
		"exp": now.Add(time.Hour).Unix(),
	})
	noExpiry := signToken(t, key, jwt.MapClaims{
		"iss": testIssuer,
	})

	tests := []struct {
		name        string
		path        string
		header      string
		wantStatus  int
		wantSubject string
	}{
		{"bypass health", "/health", "", http.StatusOK, ""},
		{"bypass health sub path", "/health/ready", "", http.StatusOK, ""},
		{"missing header", "/api/v1/carta-porte/validar", "", http.StatusUnauthorized, ""},
		{"malformed token", "/api/v1/carta-porte/validar", "Bearer invalid.token.here", http.StatusUnauthorized, ""},
		{"expired token", "/api/v1/carta-porte/validar", "Bearer " + expired, http.StatusUnauthorized, ""},
		{"wrong issuer", "/api/v1/carta-porte/validar", "Bearer " + wrongIssuer, http.StatusUnauthorized, ""},
		{"missing expiry", "/api/v1/carta-porte/validar", "Bearer " + noExpiry, http.StatusUnauthorized, ""},
		{"valid token", "/api/v1/carta-porte/validar", "Bearer " + valid, http.StatusOK, "svc-logistica"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotSubject = ""
			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if gotSubject != tt.wantSubject {
				t.Errorf("expected subject %q, got %q", tt.wantSubject, gotSubject)
			}
		})
	}
}

func TestJWTAuthenticator_shouldBypass(t *testing.T) {
	auth, _ := NewJWTAuthenticator(config.AuthSettings{
		BypassPaths: []string{"/health", "/metrics/"},
	}, testutil.NewTestLogger())

	tests := []struct {
		path     string
		expected bool
	}{
		{"/health", true},
		{"/health/", true},
		{"/health/ready", true},
		{"/metrics", true},
		{"/healthz", false},
		{"/api/v1/carta-porte/validar", false},
		{"/", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := auth.shouldBypass(tt.path); got != tt.expected {
				t.Errorf("expected shouldBypass(%q)=%v, got %v", tt.path, tt.expected, got)
			}
		})
	}
}

func TestSubject_NoToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := Subject(req.Context()); got != "" {
		t.Errorf("expected empty subject, got %q", got)
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name        string
		header      string
		expectedTok string
		expectedErr bool
	}{
		{
			name:        "empty header",
			header:      "",
			expectedErr: true,
		},
		{
			name:        "no Bearer prefix",
			header:      "token123",
			expectedErr: true,
		},
		{
			name:        "invalid format - no space",
			header:      "Bearertoken",
			expectedErr: true,
		},
		{
			name:        "invalid format - too many parts",
			header:      "Bearer token extra",
			expectedErr: true,
		},
		{
			name:        "valid Bearer token",
			header:      "Bearer token123",
			expectedTok: "token123",
			expectedErr: false,
		},
		{
			name:        "valid Bearer token - case insensitive",
			header:      "bearer token123",
			expectedTok: "token123",
			expectedErr: false,
		},
		{
			name:        "valid Bearer token - mixed case",
			header:      "BeArEr token123",
			expectedTok: "token123",
			expectedErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := extractBearerToken(tt.header)

			if tt.expectedErr {
				if err == nil {
					t.Errorf("expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			if token != tt.expectedTok {
				t.Errorf("expected token %q, got %q", tt.expectedTok, token)
			}
		})
	}
}

func TestJWTAuthenticator_Close(t *testing.T) {
	auth, _ := NewJWTAuthenticator(config.AuthSettings{Enabled: false}, testutil.NewTestLogger())
	auth.Close()
}
