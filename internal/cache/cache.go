// Package cache implements the proxy's bounded, in-memory object cache:
// a doubly-linked recency list with a free node pool, guarded by a
// single reader/writer lock, enforcing a total-bytes ceiling via
// eviction from the tail.
//
// Unlike a general-purpose cache, lookup is a deliberate linear scan
// from MRU toward LRU rather than a hash map: the cache is small
// (≤ a few hundred entries at the default 20 MiB / 100 KiB-per-object
// budget) and write contention, not lookup cost, dominates. See
// original_source/proxy/proxy.c's cache_list/cache_start/cache_lru for
// the reference algorithm this package is grounded on.
package cache

import "sync"

// entry is a node in the doubly-linked recency list. An entry is either
// on the in-use list (head sentinel -> MRU -> ... -> LRU) with size > 0,
// or on the free pool (singly reachable via next) with size == 0 and
// body == nil. Never both.
type entry struct {
    key  string
    body []byte
    size int

    prev, next *entry
}

// Stats is a point-in-time snapshot of cache occupancy, used by callers
// that want to report gauges without taking the write lock themselves.
type Stats struct {
    Entries     int
    BytesUsed   int
    FreePoolLen int
}

// Cache is the LRU object cache described by spec.md §3/§4.4.
// Time Complexity: O(n) for lookup/insert/promote (n = in-use entry
// count, bounded by MaxTotalBytes/typical-object-size), O(1) per evict.
// Space Complexity: O(MaxTotalBytes) for bodies plus O(peak entries) for
// node records, amortised via the free pool.
type Cache struct {
    mu sync.RWMutex

    head *entry // dummy sentinel; head.next is MRU
    lru  *entry // least recently used in-use entry, nil if list empty

    free *entry // singly-linked free pool, reachable via next

    total    int
    maxTotal int
    maxObj   int

    onEvict func(freedBytes int)
}

// New creates an empty cache with the given per-object and total byte
// ceilings. Time Complexity: O(1).
func New(maxObjectBytes, maxTotalBytes int) *Cache {
    head := &entry{}
    return &Cache{
        head:     head,
        maxTotal: maxTotalBytes,
        maxObj:   maxObjectBytes,
    }
}

// OnEvict registers a callback invoked (under the write lock) each time
// an entry is evicted, with the number of bytes freed. Used to drive
// eviction-counter metrics without the cache package depending on the
// metrics package.
func (c *Cache) OnEvict(fn func(freedBytes int)) {
    c.mu.Lock()
    defer c.mu.Unlock()
    c.onEvict = fn
}

// MaxObjectBytes returns the per-object cacheability ceiling.
func (c *Cache) MaxObjectBytes() int { return c.maxObj }

// Lookup performs a read-locked linear scan from MRU to LRU, returning a
// copy of the matched body and true on hit, or (nil, false) on miss.
// Copying under the read lock (rather than returning the live slice)
// keeps the body stable after the lock is released, since a concurrent
// writer may otherwise mutate or evict the entry.
// Time Complexity: O(n) worst case.
func (c *Cache) Lookup(key string) ([]byte, bool) {
    c.mu.RLock()
    defer c.mu.RUnlock()

    for e := c.head.next; e != nil; e = e.next {
        if e.key == key {
            body := make([]byte, e.size)
            copy(body, e.body)
            return body, true
        }
    }
    return nil, false
}

// Promote moves the entry matching key to MRU position, but only if it
// is still live (size > 0) at the moment the write lock is held. A
// lookup and a promote are never atomic with each other: the caller is
// expected to look up under a read lock, release it, then promote under
// the write lock, so a concurrent eviction may have already claimed the
// node. Re-finding by key (rather than trusting a pointer captured
// earlier) makes that race safe without reloading any stale state.
// Time Complexity: O(n).
func (c *Cache) Promote(key string) {
    c.mu.Lock()
    defer c.mu.Unlock()

    for e := c.head.next; e != nil; e = e.next {
        if e.key == key {
            if e.size > 0 {
                c.unlink(e)
                c.linkAtHead(e)
            }
            return
        }
    }
}

// Insert copies body into a freshly sized buffer, links it at MRU, and
// evicts from the tail while the total exceeds maxTotalBytes. If an
// entry with the same key already exists it is evicted first, since
// spec.md's invariant I4 forbids duplicate URIs in the in-use list.
// Time Complexity: O(n) amortised (existing-key scan plus eviction
// scan), O(1) for the free-pool pop/push.
func (c *Cache) Insert(key string, body []byte) {
    c.mu.Lock()
    defer c.mu.Unlock()

    for e := c.head.next; e != nil; e = e.next {
        if e.key == key {
            c.evict(e)
            break
        }
    }

    node := c.popFree()
    node.key = key
    node.body = make([]byte, len(body))
    copy(node.body, body)
    node.size = len(body)

    c.linkAtHead(node)
    if c.lru == nil {
        c.lru = node
    }
    c.total += node.size

    for c.total > c.maxTotal && c.lru != nil {
        c.evict(c.lru)
    }
}

// Stats returns a point-in-time occupancy snapshot under the read lock.
func (c *Cache) Stats() Stats {
    c.mu.RLock()
    defer c.mu.RUnlock()

    n := 0
    for e := c.head.next; e != nil; e = e.next {
        n++
    }
    free := 0
    for e := c.free; e != nil; e = e.next {
        free++
    }
    return Stats{Entries: n, BytesUsed: c.total, FreePoolLen: free}
}

// linkAtHead splices node in immediately after the head sentinel.
// Caller must hold the write lock.
func (c *Cache) linkAtHead(node *entry) {
    node.prev = c.head
    node.next = c.head.next
    if c.head.next != nil {
        c.head.next.prev = node
    }
    c.head.next = node
}

// unlink detaches node from the in-use list without touching size or
// body, used both by promote (re-splice elsewhere) and by evict (before
// returning the node to the free pool). Caller must hold the write lock.
func (c *Cache) unlink(node *entry) {
    if node.prev != nil {
        node.prev.next = node.next
    }
    if node.next != nil {
        node.next.prev = node.prev
    }
    if c.lru == node {
        c.lru = node.prev
        if c.lru == c.head {
            c.lru = nil
        }
    }
}

// evict detaches node from the in-use list, frees its body, and pushes
// it onto the head of the free pool. Caller must hold the write lock.
func (c *Cache) evict(node *entry) {
    c.unlink(node)
    c.total -= node.size
    freed := node.size

    node.body = nil
    node.size = 0
    node.key = ""
    node.prev = nil
    node.next = c.free
    c.free = node

    if c.onEvict != nil {
        c.onEvict(freed)
    }
}

// popFree pops the first free-pool node, or heap-allocates a fresh one
// if the pool is empty. Node records are pooled; body buffers are not
// (they vary widely in size and are always sized exactly to the
// captured length, so pooling them would waste memory).
// Caller must hold the write lock.
func (c *Cache) popFree() *entry {
    if c.free == nil {
        return &entry{}
    }
    node := c.free
    c.free = node.next
    node.next = nil
    return node
}
