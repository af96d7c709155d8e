package cache

import (
	"sync"
	"time"
)

// TokenCache holds one bearer token until shortly before it expires.
type TokenCache struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	skew      time.Duration
	now       func() time.Time
}

// Option customizes a TokenCache.
type Option func(*TokenCache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *TokenCache) {
		c.now = now
	}
}

// WithSkew treats tokens as expired skew before their real expiry.
func WithSkew(skew time.Duration) Option {
	return func(c *TokenCache) {
		c.skew = skew
	}
}

// NewTokenCache creates an empty token cache.
func NewTokenCache(opts ...Option) *TokenCache {
	c := &TokenCache{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached token while it is still usable.
func (c *TokenCache) Get() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.token == "" || !c.now().Before(c.expiresAt.Add(-c.skew)) {
		return "", false
	}
	return c.token, true
}

// Set stores token for ttl.
func (c *TokenCache) Set(token string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = token
	c.expiresAt = c.now().Add(ttl)
}

// Clear drops the cached token, e.g. after the PAC rejects it.
func (c *TokenCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = ""
	c.expiresAt = time.Time{}
}
