package orchestrator

import (
	"sync"

	"github.com/opsvigil/vigil/internal/monitor"
)

// ResultCache is a thread-safe cache of the latest result per check
type ResultCache struct {
	mu      sync.RWMutex
	results map[string]monitor.CheckResult
}

// NewResultCache creates an empty result cache
func NewResultCache() *ResultCache {
	return &ResultCache{
		results: make(map[string]monitor.CheckResult),
	}
}

// Get retrieves the latest result for a check
func (c *ResultCache) Get(checkName string) (monitor.CheckResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result, exists := c.results[checkName]
	return result, exists
}

// Set stores the latest result for its check
func (c *ResultCache) Set(result monitor.CheckResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.results[result.CheckName] = result
}

// GetAll returns a copy of every cached result
func (c *ResultCache) GetAll() map[string]monitor.CheckResult {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := make(map[string]monitor.CheckResult, len(c.results))
	for k, v := range c.results {
		snapshot[k] = v
	}

	return snapshot
}

// Clear removes all cached results
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.results = make(map[string]monitor.CheckResult)
}

// Size returns the number of cached results
func (c *ResultCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.results)
}
