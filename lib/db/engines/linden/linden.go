package linden

import (
	"sort"
	"time"

	"github.com/ValentinKolb/cKV/lib/db"
	"github.com/ValentinKolb/cKV/lib/db/util"
)

// --------------------------------------------------------------------------
// Core Linden cache structure
// --------------------------------------------------------------------------

// node is one cache entry linked into the recency list.
// prev/next are never nil for a linked node: the list runs between the
// head and tail sentinels.
type node struct {
	qk        db.QualifiedKey
	value     string
	expiresAt time.Time // zero value = no expiry
	prev      *node
	next      *node
}

// expired reports whether the entry's expiry instant has passed at now.
func (n *node) expired(now time.Time) bool {
	return !n.expiresAt.IsZero() && !n.expiresAt.After(now)
}

// maxInfoSamples bounds the recency list walk in GetInfo.
const maxInfoSamples = 512

// lindenImpl implements an LRU-ordered, TTL-aware, namespace-partitioned
// cache with O(1) access, insert, delete and eviction.
type lindenImpl struct {
	capacity int
	entries  map[db.QualifiedKey]*node
	head     *node // sentinel, head.next = most recently used
	tail     *node // sentinel, tail.prev = eviction candidate
	nsCounts map[string]int
	expiry   *util.MapHeap[db.QualifiedKey]
}

// NewLindenCache creates a new Linden cache with the given capacity.
// The capacity must be at least 1; callers validate this at configuration
// time.
//
// Thread-safety: The returned cache is not safe for concurrent use; the
// owning store serializes all access.
func NewLindenCache(capacity int) db.KVCache {
	head := &node{}
	tail := &node{}
	head.next = tail
	tail.prev = head

	return &lindenImpl{
		capacity: capacity,
		entries:  make(map[db.QualifiedKey]*node),
		head:     head,
		tail:     tail,
		nsCounts: make(map[string]int),
		expiry:   util.NewMapHeap[db.QualifiedKey](),
	}
}

// --------------------------------------------------------------------------
// Recency list helpers
// --------------------------------------------------------------------------

// unlink removes a node from the recency list
func (c *lindenImpl) unlink(n *node) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev = nil
	n.next = nil
}

// pushFront links a node directly behind the head sentinel
func (c *lindenImpl) pushFront(n *node) {
	n.next = c.head.next
	n.prev = c.head
	c.head.next.prev = n
	c.head.next = n
}

// moveToFront promotes a linked node to the head of the recency list
func (c *lindenImpl) moveToFront(n *node) {
	c.unlink(n)
	c.pushFront(n)
}

// remove unlinks a node and drops it from all indexes
func (c *lindenImpl) remove(n *node) {
	c.unlink(n)
	delete(c.entries, n.qk)
	c.expiry.RemoveByKey(n.qk)

	ns := n.qk.Namespace
	if c.nsCounts[ns] <= 1 {
		delete(c.nsCounts, ns)
	} else {
		c.nsCounts[ns]--
	}
}

// trackExpiry registers or clears the expiry index entry for a node
func (c *lindenImpl) trackExpiry(n *node) {
	if n.expiresAt.IsZero() {
		c.expiry.RemoveByKey(n.qk)
	} else {
		c.expiry.AddItem(n.qk, n.expiresAt.UnixNano())
	}
}

// --------------------------------------------------------------------------
// KVCache Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Put inserts or updates an entry and promotes it to the head of the
// recency order. Updating an existing key never evicts, even if the new
// expiry is already in the past; expiry is enforced on read. Inserting a
// new key at capacity unlinks the tail entry first and returns it.
func (c *lindenImpl) Put(qk db.QualifiedKey, value string, expiresAt time.Time) *db.Eviction {
	if n, ok := c.entries[qk]; ok {
		n.value = value
		n.expiresAt = expiresAt
		c.trackExpiry(n)
		c.moveToFront(n)
		return nil
	}

	var evicted *db.Eviction
	if len(c.entries) >= c.capacity {
		lru := c.tail.prev
		evicted = &db.Eviction{QualifiedKey: lru.qk, Value: lru.value}
		c.remove(lru)
	}

	n := &node{qk: qk, value: value, expiresAt: expiresAt}
	c.entries[qk] = n
	c.nsCounts[qk.Namespace]++
	c.trackExpiry(n)
	c.pushFront(n)

	return evicted
}

// Delete removes an entry and returns whether the key existed.
func (c *lindenImpl) Delete(qk db.QualifiedKey) bool {
	n, ok := c.entries[qk]
	if !ok {
		return false
	}
	c.remove(n)
	return true
}

// ClearNamespace removes every entry whose namespace equals ns and returns
// how many were removed.
func (c *lindenImpl) ClearNamespace(ns string) int {
	removed := 0
	for n := c.head.next; n != c.tail; {
		next := n.next
		if n.qk.Namespace == ns {
			c.remove(n)
			removed++
		}
		n = next
	}
	return removed
}

// --------------------------------------------------------------------------
// KVCache Interface Methods - Query Operations
// --------------------------------------------------------------------------

// Get looks up an entry. Expired entries are returned flagged and not
// promoted; the caller removes them. Live hits are promoted to the head.
func (c *lindenImpl) Get(qk db.QualifiedKey, now time.Time) (string, bool, bool) {
	n, ok := c.entries[qk]
	if !ok {
		return "", false, false
	}

	if n.expired(now) {
		return n.value, true, true
	}

	c.moveToFront(n)
	return n.value, false, true
}

// Len returns the current entry count.
func (c *lindenImpl) Len() int {
	return len(c.entries)
}

// Capacity returns the configured capacity.
func (c *lindenImpl) Capacity() int {
	return c.capacity
}

// Namespaces returns the sorted labels of all namespaces holding at least
// one entry.
func (c *lindenImpl) Namespaces() []string {
	labels := make([]string, 0, len(c.nsCounts))
	for ns := range c.nsCounts {
		labels = append(labels, db.QualifiedKey{Namespace: ns}.NamespaceLabel())
	}
	sort.Strings(labels)
	return labels
}

// NamespaceLen returns the number of entries whose namespace equals ns.
func (c *lindenImpl) NamespaceLen(ns string) int {
	return c.nsCounts[ns]
}

// KeysInNamespace returns the qualified keys of all entries in ns, most
// recently used first.
func (c *lindenImpl) KeysInNamespace(ns string) []db.QualifiedKey {
	keys := make([]db.QualifiedKey, 0, c.nsCounts[ns])
	for n := c.head.next; n != c.tail; n = n.next {
		if n.qk.Namespace == ns {
			keys = append(keys, n.qk)
		}
	}
	return keys
}

// ExpiredKeys returns the qualified keys of all entries whose expiry is at
// or before now. The expiry index makes this proportional to the number of
// due entries, not the cache size.
func (c *lindenImpl) ExpiredKeys(now time.Time) []db.QualifiedKey {
	return c.expiry.CollectLE(now.UnixNano())
}

// Snapshot returns all entries live at now in recency order without
// promoting any of them.
func (c *lindenImpl) Snapshot(now time.Time) []db.SnapshotEntry {
	snap := make([]db.SnapshotEntry, 0, len(c.entries))
	for n := c.head.next; n != c.tail; n = n.next {
		if n.expired(now) {
			continue
		}
		snap = append(snap, db.SnapshotEntry{
			QualifiedKey: n.qk,
			Value:        n.value,
			ExpiresAt:    n.expiresAt,
		})
	}
	return snap
}

// --------------------------------------------------------------------------
// KVCache Interface Methods - Replay Operations
// --------------------------------------------------------------------------

// Load inserts or updates an entry without evicting. The cache may exceed
// its capacity until TrimToCapacity is called.
func (c *lindenImpl) Load(qk db.QualifiedKey, value string, expiresAt time.Time) {
	if n, ok := c.entries[qk]; ok {
		n.value = value
		n.expiresAt = expiresAt
		c.trackExpiry(n)
		c.moveToFront(n)
		return
	}

	n := &node{qk: qk, value: value, expiresAt: expiresAt}
	c.entries[qk] = n
	c.nsCounts[qk.Namespace]++
	c.trackExpiry(n)
	c.pushFront(n)
}

// TrimToCapacity removes tail entries until the size fits the capacity and
// returns how many were removed.
func (c *lindenImpl) TrimToCapacity() int {
	removed := 0
	for len(c.entries) > c.capacity {
		c.remove(c.tail.prev)
		removed++
	}
	return removed
}

// --------------------------------------------------------------------------
// KVCache Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// SupportsFeature checks if this implementation supports a specific
// KVCache feature
func (c *lindenImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeaturePut |
		db.FeatureGet |
		db.FeatureDelete |
		db.FeatureExpiry |
		db.FeatureClearNamespace |
		db.FeatureSnapshot
	return supportedFeatures&feature == feature
}

// GetInfo returns statistics about the cache. Value sizes are estimated
// from a bounded sample of the recency list.
func (c *lindenImpl) GetInfo() db.CacheInfo {
	histogram := util.NewSizeHistogram()
	samples := 0
	for n := c.head.next; n != c.tail && samples < maxInfoSamples; n = n.next {
		histogram.AddSample(len(n.value))
		samples++
	}

	meta := &struct {
		Namespaces        int `json:"namespaces"`
		ScheduledExpiries int `json:"scheduled_expiries"`
		AvgValueBytes     int `json:"avg_value_bytes"`
		MedianValueBytes  int `json:"median_value_bytes"`
	}{
		Namespaces:        len(c.nsCounts),
		ScheduledExpiries: c.expiry.Len(),
		AvgValueBytes:     histogram.AverageSize(),
		MedianValueBytes:  histogram.MedianEstimate(),
	}

	return db.CacheInfo{
		Entries:   len(c.entries),
		Capacity:  c.capacity,
		CacheType: db.ImplLinden,
		SupportedFeatures: []db.Feature{
			db.FeaturePut, db.FeatureGet, db.FeatureDelete,
			db.FeatureExpiry, db.FeatureClearNamespace, db.FeatureSnapshot,
		},
		Metadata: meta,
	}
}

// Close releases the cache's indexes.
func (c *lindenImpl) Close() error {
	c.entries = nil
	c.nsCounts = nil
	c.expiry = nil
	return nil
}
