package cache

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestTokenCache_Get(t *testing.T) {
	tests := []struct {
		name        string
		setupCache  func(clock *fakeClock) *TokenCache
		expectedOk  bool
		expectedTok string
	}{
		{
			name: "empty cache",
			setupCache: func(clock *fakeClock) *TokenCache {
				return NewTokenCache(WithClock(clock.Now))
			},
		},
		{
			name: "valid token",
			setupCache: func(clock *fakeClock) *TokenCache {
				c := NewTokenCache(WithClock(clock.Now))
				c.Set("pac-token", time.Hour)
				return c
			},
			expectedOk:  true,
			expectedTok: "pac-token",
		},
		{
			name: "expired token",
			setupCache: func(clock *fakeClock) *TokenCache {
				c := NewTokenCache(WithClock(clock.Now))
				c.Set("pac-token", time.Hour)
				clock.Advance(time.Hour)
				return c
			},
		},
		{
			name: "token inside skew window",
			setupCache: func(clock *fakeClock) *TokenCache {
				c := NewTokenCache(WithClock(clock.Now), WithSkew(time.Minute))
				c.Set("pac-token", time.Hour)
				clock.Advance(59*time.Minute + time.Second)
				return c
			},
		},
		{
			name: "cleared token",
			setupCache: func(clock *fakeClock) *TokenCache {
				c := NewTokenCache(WithClock(clock.Now))
				c.Set("pac-token", time.Hour)
				c.Clear()
				return c
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{now: time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)}
			c := tt.setupCache(clock)

			token, ok := c.Get()
			if ok != tt.expectedOk {
				t.Errorf("expected ok=%v, got %v", tt.expectedOk, ok)
			}
			if token != tt.expectedTok {
				t.Errorf("expected token %q, got %q", tt.expectedTok, token)
			}
		})
	}
}

func TestTokenCache_ConcurrentAccess(t *testing.T) {
	c := NewTokenCache()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Set("pac-token", time.Minute)
		}()
		go func() {
			defer wg.Done()
			c.Get()
		}()
	}
	wg.Wait()

	if token, ok := c.Get(); !ok || token != "pac-token" {
		t.Errorf("expected cached token, got %q, %v", token, ok)
	}
}
