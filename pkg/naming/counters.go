package naming

import (
	"sync"

	"github.com/cubbit/meshfs/pkg/fspath"
)

// accessCounters tracks shared-lock acquisitions per file path. The
// counts drive replication: a file read often enough earns another
// replica, and a write clears the slate.
type accessCounters struct {
	mu     sync.Mutex
	counts map[string]int
}

func newAccessCounters() *accessCounters {
	return &accessCounters{counts: make(map[string]int)}
}

// bump increments the counter for p and returns the new value.
func (c *accessCounters) bump(p fspath.Path) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := p.String()
	c.counts[key]++
	return c.counts[key]
}

// take returns the current value and resets the counter to zero.
func (c *accessCounters) take(p fspath.Path) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := p.String()
	v := c.counts[key]
	c.counts[key] = 0
	return v
}

// restore puts a previously taken value back, for tasks that failed
// and want the trigger to fire again.
func (c *accessCounters) restore(p fspath.Path, v int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[p.String()] = v
}
