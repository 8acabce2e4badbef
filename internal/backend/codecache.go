package backend

import (
	"fmt"
	"sync"

	"fortio.org/safecast"
)

// DefaultCodeCacheBytes is the size of a code cache when none is given.
const DefaultCodeCacheBytes = 1 << 20

// CodeCache is the executable memory shared by all workers. Space is handed
// out by a bump allocator and only reclaimed by Reset.
type CodeCache struct {
	mu    sync.Mutex
	base  uint64
	mem   []byte
	used  int
	count int
}

// NewCodeCache returns a cache of size bytes mapped at base.
func NewCodeCache(base uint64, size int) *CodeCache {
	if size <= 0 {
		size = DefaultCodeCacheBytes
	}
	return &CodeCache{base: base, mem: make([]byte, size)}
}

// Install copies code into the cache and returns its address.
func (c *CodeCache) Install(code []byte) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// keep translations word aligned
	n := (len(code) + 3) &^ 3
	if c.used+n > len(c.mem) {
		return 0, fmt.Errorf("%w: need %d bytes, %d of %d used", ErrCacheFull, n, c.used, len(c.mem))
	}
	off, err := safecast.Conv[uint64](c.used)
	if err != nil {
		return 0, err
	}
	copy(c.mem[c.used:], code)
	c.used += n
	c.count++
	return c.base + off, nil
}

// Read returns a copy of n bytes at addr.
func (c *CodeCache) Read(addr uint64, n int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if addr < c.base || addr-c.base > uint64(c.used) || int(addr-c.base)+n > c.used {
		return nil, fmt.Errorf("backend: %#x+%d outside installed code", addr, n)
	}
	start := int(addr - c.base)
	out := make([]byte, n)
	copy(out, c.mem[start:start+n])
	return out, nil
}

// Reset discards every translation.
func (c *CodeCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.mem[:c.used])
	c.used = 0
	c.count = 0
}

// CacheStats is a snapshot of cache usage.
type CacheStats struct {
	Used         int
	Capacity     int
	Translations int
}

// Stats returns current usage.
func (c *CodeCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Used: c.used, Capacity: len(c.mem), Translations: c.count}
}
