package driver

import (
	"sync"
)

// ModuleCache is the in-process layer in front of DiskCache, keyed by
// module name and cache key.
type ModuleCache struct {
	mu    sync.RWMutex
	byMod map[string]cached
}

type cached struct {
	key     Digest
	payload *DiskPayload
}

// NewModuleCache creates a ModuleCache with the given capacity hint.
func NewModuleCache(capHint int) *ModuleCache {
	return &ModuleCache{byMod: make(map[string]cached, capHint)}
}

// Get returns the payload stored for name if it was stored under key.
func (c *ModuleCache) Get(name string, key Digest) (*DiskPayload, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	rec, ok := c.byMod[name]
	c.mu.RUnlock()
	if !ok || rec.key != key {
		return nil, false
	}
	return rec.payload, true
}

// Put replaces the entry of name.
func (c *ModuleCache) Put(name string, key Digest, payload *DiskPayload) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.byMod[name] = cached{key: key, payload: payload}
	c.mu.Unlock()
}
