package pac

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"3tcapital/ms_cartaporte_core/internal/infrastructure/cache"
)

const tokenSkew = 30 * time.Second

// HTTPClient interface allows using both standard and traced HTTP clients.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// AuthManager obtains PAC bearer tokens and caches them until shortly before
// they expire.
type AuthManager struct {
	baseURL    string
	username   string
	password   string
	defaultTTL time.Duration
	cache      *cache.TokenCache
	client     HTTPClient
	log        *slog.Logger
	mu         sync.Mutex // serializes refreshes
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// NewAuthManager creates a PAC authentication manager. defaultTTL is used
// when the PAC does not report an expiry.
func NewAuthManager(baseURL, username, password string, defaultTTL time.Duration, client HTTPClient, log *slog.Logger) *AuthManager {
	return &AuthManager{
		baseURL:    baseURL,
		username:   username,
		password:   password,
		defaultTTL: defaultTTL,
		cache:      cache.NewTokenCache(cache.WithSkew(tokenSkew)),
		client:     client,
		log:        log,
	}
}

// GetToken returns a valid token, refreshing it if necessary.
func (a *AuthManager) GetToken(ctx context.Context) (string, error) {
	if token, ok := a.cache.Get(); ok {
		return token, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Another goroutine may have refreshed while we waited.
	if token, ok := a.cache.Get(); ok {
		return token, nil
	}

	token, ttl, err := a.authenticate(ctx)
	if err != nil {
		a.log.ErrorContext(ctx, "PAC authentication failed", "error", err)
		return "", fmt.Errorf("pac authentication failed: %w", err)
	}

	a.cache.Set(token, ttl)
	a.log.DebugContext(ctx, "PAC token refreshed and cached", "ttl", ttl)
	return token, nil
}

func (a *AuthManager) authenticate(ctx context.Context) (string, time.Duration, error) {
	jsonData, err := json.Marshal(tokenRequest{Username: a.username, Password: a.password})
	if err != nil {
		return "", 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/v1/token", bytes.NewReader(jsonData))
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, parseError(resp.StatusCode, body)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", 0, fmt.Errorf("unmarshal token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", 0, fmt.Errorf("empty token in response")
	}

	ttl := a.defaultTTL
	if tr.ExpiresIn > 0 {
		ttl = time.Duration(tr.ExpiresIn) * time.Second
	}
	return tr.AccessToken, ttl, nil
}

// ClearToken removes the cached token, forcing a refresh on next request.
func (a *AuthManager) ClearToken() {
	a.cache.Clear()
}
