// Package token holds server-side token state shared by the development
// backend's session endpoints.
package token

import (
	"sync"
	"time"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// RevokedTokenCache tracks access token IDs invalidated by logout until they
// would have expired anyway.
type RevokedTokenCache interface {
	Add(jti string, exp time.Time)
	IsRevoked(jti string) bool
	Cleanup() int
}

// InMemoryRevokedTokenCache is a map guarded by a RWMutex.
type InMemoryRevokedTokenCache struct {
	revoked map[string]time.Time
	mu      sync.RWMutex
}

var _ RevokedTokenCache = (*InMemoryRevokedTokenCache)(nil)

func NewInMemoryRevokedTokenCache() *InMemoryRevokedTokenCache {
	return &InMemoryRevokedTokenCache{
		revoked: make(map[string]time.Time),
	}
}

func (c *InMemoryRevokedTokenCache) Add(jti string, exp time.Time) {
	if jti == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[jti] = exp
}

func (c *InMemoryRevokedTokenCache) IsRevoked(jti string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.revoked[jti]
	return exists
}

// Cleanup drops entries whose token has expired and returns how many were
// removed.
func (c *InMemoryRevokedTokenCache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := NowTimeFunc()
	removed := 0
	for jti, exp := range c.revoked {
		if now.After(exp) {
			delete(c.revoked, jti)
			removed++
		}
	}
	return removed
}
