package artwork

import "sync"

// lruCapacity is the fixed capacity of the in-memory cover LRU.
const lruCapacity = 20

// lru is a fixed-capacity, linear-scan LRU keyed by track filepath.
// At N<=20 a linear scan is the simplest correct choice; it would not
// scale to a much larger capacity.
type lru struct {
	mu    sync.Mutex
	slots [lruCapacity]*CoverInfo
	clock int64
}

func newLRU() *lru {
	return &lru{}
}

// lookup returns the cached CoverInfo for filePath, refreshing its
// recency timestamp on hit. The returned CoverInfo carries an extra
// reference the caller must Release.
func (c *lru) lookup(filePath string) *CoverInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ci := range c.slots {
		if ci != nil && ci.FilePath == filePath {
			c.clock++
			ci.Timestamp = c.clock
			return ci.Retain()
		}
	}
	return nil
}

// insert installs ci into the LRU, evicting the slot with the smallest
// Timestamp if no empty slot remains. The LRU takes one
// reference on ci; the evicted CoverInfo (if any) has its reference
// released.
func (c *lru) insert(ci *CoverInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clock++
	ci.Timestamp = c.clock
	ci.Retain()

	for i, s := range c.slots {
		if s == nil {
			c.slots[i] = ci
			return
		}
	}

	victim := 0
	for i := 1; i < lruCapacity; i++ {
		if c.slots[i].Timestamp < c.slots[victim].Timestamp {
			victim = i
		}
	}
	c.slots[victim].Release()
	c.slots[victim] = ci
}

// len returns the number of occupied slots, for tests.
func (c *lru) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, s := range c.slots {
		if s != nil {
			n++
		}
	}
	return n
}
