package devapi

import (
	"sync"
	"time"
)

// revocationList remembers blacklisted refresh token ids until they expire
type revocationList struct {
	revoked map[string]time.Time
	mu      sync.RWMutex
}

func newRevocationList() *revocationList {
	return &revocationList{revoked: make(map[string]time.Time)}
}

func (c *revocationList) Add(jti string, exp time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[jti] = exp
}

func (c *revocationList) IsRevoked(jti string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.revoked[jti]
	return exists
}

// Cleanup drops entries whose token would have expired anyway
func (c *revocationList) Cleanup(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for jti, exp := range c.revoked {
		if now.After(exp) {
			delete(c.revoked, jti)
		}
	}
}
