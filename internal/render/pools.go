package render

import "sync"

// Marker is a pooled render object reused across update cycles. The host
// fills in whatever per-marker state it renders; the pool only tracks reuse.
type Marker struct {
	ID       string
	Position LatLng
	inUse    bool
}

// MarkerPool is a bounded free list of Marker objects. The quality
// controller shrinks or grows the bound on tier changes.
type MarkerPool struct {
	mu         sync.Mutex
	free       []*Marker
	maxMarkers int
	allocated  int
}

// NewMarkerPool creates a pool bounded by maxMarkers.
func NewMarkerPool(maxMarkers int) *MarkerPool {
	return &MarkerPool{maxMarkers: maxMarkers}
}

// Configure applies new limits. Excess free markers are dropped so a shrink
// takes effect immediately.
func (p *MarkerPool) Configure(limits PoolLimits) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maxMarkers = limits.MaxMarkers
	for len(p.free) > 0 && p.allocated > p.maxMarkers {
		p.free = p.free[:len(p.free)-1]
		p.allocated--
	}
}

// Acquire returns a marker, reusing a free one if available. Returns nil
// when the pool is exhausted; the host skips rendering that marker.
func (p *MarkerPool) Acquire() *Marker {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.free); n > 0 {
		m := p.free[n-1]
		p.free = p.free[:n-1]
		m.inUse = true
		return m
	}
	if p.allocated >= p.maxMarkers {
		return nil
	}
	p.allocated++
	return &Marker{inUse: true}
}

// Release returns a marker to the free list. Markers past the current bound
// are discarded instead of pooled.
func (p *MarkerPool) Release(m *Marker) {
	if m == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	m.inUse = false
	m.ID = ""
	if p.allocated > p.maxMarkers {
		p.allocated--
		return
	}
	p.free = append(p.free, m)
}

// Stats returns (allocated, free) counts.
func (p *MarkerPool) Stats() (allocated, free int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocated, len(p.free)
}

// bitmapNode is a node in the cache's doubly-linked recency list. The head
// is most recently used, the tail least.
type bitmapNode struct {
	key   string
	size  int64
	value []byte
	prev  *bitmapNode
	next  *bitmapNode
}

// BitmapCache is an LRU cache for decoded marker bitmaps, bounded by both
// entry count and total bytes. The quality controller tightens both bounds
// on degraded tiers.
type BitmapCache struct {
	mu         sync.Mutex
	entries    map[string]*bitmapNode
	head       *bitmapNode
	tail       *bitmapNode
	totalBytes int64
	maxEntries int
	maxBytes   int64
}

// NewBitmapCache creates a cache with the given bounds.
func NewBitmapCache(maxEntries int, maxBytes int64) *BitmapCache {
	return &BitmapCache{
		entries:    make(map[string]*bitmapNode),
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
	}
}

// Configure applies new limits and evicts until the cache fits them.
func (c *BitmapCache) Configure(limits PoolLimits) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxEntries = limits.BitmapCacheMaxEntries
	c.maxBytes = limits.BitmapCacheMaxBytes
	c.evictLocked()
}

// Put stores a bitmap, evicting least-recently-used entries as needed.
// Values larger than the byte bound are not cached at all; a previous value
// under the same key is dropped rather than left stale.
func (c *BitmapCache) Put(key string, value []byte) {
	size := int64(len(value))
	c.mu.Lock()
	defer c.mu.Unlock()
	if size > c.maxBytes {
		if node, ok := c.entries[key]; ok {
			c.unlinkLocked(node)
			delete(c.entries, key)
			c.totalBytes -= node.size
		}
		return
	}
	if node, ok := c.entries[key]; ok {
		c.totalBytes += size - node.size
		node.value = value
		node.size = size
		c.moveToFrontLocked(node)
		c.evictLocked()
		return
	}
	node := &bitmapNode{key: key, size: size, value: value}
	c.entries[key] = node
	c.totalBytes += size
	c.pushFrontLocked(node)
	c.evictLocked()
}

// Get returns a cached bitmap and marks it recently used.
func (c *BitmapCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	node, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFrontLocked(node)
	return node.value, true
}

// Trim evicts down to the current bounds. Cheap when already within them;
// suitable as an idle maintenance task.
func (c *BitmapCache) Trim() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictLocked()
}

// Stats returns (entries, totalBytes).
func (c *BitmapCache) Stats() (entries int, totalBytes int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries), c.totalBytes
}

func (c *BitmapCache) evictLocked() {
	for c.tail != nil && (len(c.entries) > c.maxEntries || c.totalBytes > c.maxBytes) {
		oldest := c.tail
		c.unlinkLocked(oldest)
		delete(c.entries, oldest.key)
		c.totalBytes -= oldest.size
	}
}

func (c *BitmapCache) pushFrontLocked(node *bitmapNode) {
	node.prev = nil
	node.next = c.head
	if c.head != nil {
		c.head.prev = node
	}
	c.head = node
	if c.tail == nil {
		c.tail = node
	}
}

func (c *BitmapCache) moveToFrontLocked(node *bitmapNode) {
	if node == c.head {
		return
	}
	c.unlinkLocked(node)
	c.pushFrontLocked(node)
}

func (c *BitmapCache) unlinkLocked(node *bitmapNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		c.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		c.tail = node.prev
	}
	node.prev = nil
	node.next = nil
}

// Verify at compile time that both pools satisfy PoolManager.
var (
	_ PoolManager = (*MarkerPool)(nil)
	_ PoolManager = (*BitmapCache)(nil)
)
