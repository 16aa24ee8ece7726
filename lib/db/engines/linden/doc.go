// Package linden implements the standard cache engine behind the cKV
// store: a namespace-aware key-value map with LRU recency ordering,
// per-entry expiry, and O(1) access, insert, delete, and eviction. It
// provides a complete implementation of the db.KVCache interface.
//
// The package focuses on:
//   - Constant-time operations through a hash map combined with an
//     intrusive doubly-linked recency list
//   - Lazy expiry: expired entries are detected on read and reported to
//     the caller for removal, never silently resurrected
//   - An expiry index that finds due entries in time proportional to how
//     many are due, not to the cache size
//   - Replay support so a write-ahead log can be restored without
//     triggering eviction mid-replay
//
// Key Components:
//
//   - lindenImpl: The central cache structure implementing db.KVCache. It
//     owns the entry map, the recency list sentinels, the per-namespace
//     entry counts, and the expiry index.
//
//   - node: The core structure for storing values and metadata. Each node
//     carries its qualified key, the value, the optional expiry instant,
//     and its links in the recency list. Nodes are linked between two
//     sentinel nodes so that unlink and push-front never branch on list
//     boundaries.
//
//   - Expiry Index: A util.MapHeap keyed by qualified key and prioritized
//     by expiry instant (unix nanoseconds). Entries without expiry are not
//     indexed. The index is updated on every Put, Load, and Delete so it
//     never holds stale keys.
//
// Internal Mechanisms:
//
//   - Recency Ordering: head.next is the most recently used entry and
//     tail.prev the eviction candidate. Put and live Get promote to the
//     head; expired reads leave the order untouched so a dead entry cannot
//     displace live ones.
//
//   - Namespace Accounting: A per-namespace entry counter is maintained
//     inline with every insert and remove, making NamespaceLen and the
//     namespace listing cheap. Namespace-scoped scans (KeysInNamespace,
//     ClearNamespace, Snapshot) walk the recency list, which is permitted
//     to be linear in the cache size.
//
// The cache is not safe for concurrent use; the owning store serializes
// all access behind its mutex.
package linden
