package pac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"3tcapital/ms_cartaporte_core/internal/testutil"
)

func TestAuthManager_GetToken(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantToken string
		wantErr   string
	}{
		{
			name:      "token with expiry",
			status:    http.StatusOK,
			body:      `{"access_token":"abc","expires_in":3600}`,
			wantToken: "abc",
		},
		{
			name:      "token without expiry uses default ttl",
			status:    http.StatusOK,
			body:      `{"access_token":"def"}`,
			wantToken: "def",
		},
		{
			name:    "empty token",
			status:  http.StatusOK,
			body:    `{"access_token":""}`,
			wantErr: "empty token",
		},
		{
			name:    "malformed body",
			status:  http.StatusOK,
			body:    `not json`,
			wantErr: "unmarshal token response",
		},
		{
			name:    "rejected credentials",
			status:  http.StatusForbidden,
			body:    `{"message":"usuario bloqueado"}`,
			wantErr: "usuario bloqueado",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/v1/token" || r.Method != http.MethodPost {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			auth := NewAuthManager(srv.URL, "user", "pass", time.Hour, http.DefaultClient, testutil.NewNullLogger())
			token, err := auth.GetToken(context.Background())

			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if token != tt.wantToken {
				t.Errorf("expected %q, got %q", tt.wantToken, token)
			}
		})
	}
}

func TestAuthManager_ConcurrentRefreshHitsPACOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		w.Write([]byte(`{"access_token":"shared","expires_in":3600}`))
	}))
	defer srv.Close()

	auth := NewAuthManager(srv.URL, "user", "pass", time.Hour, http.DefaultClient, testutil.NewNullLogger())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if token, err := auth.GetToken(context.Background()); err != nil || token != "shared" {
				t.Errorf("unexpected token %q, err %v", token, err)
			}
		}()
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 token request, got %d", got)
	}

	auth.ClearToken()
	if _, err := auth.GetToken(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("expected refresh after clear, got %d requests", got)
	}
}
