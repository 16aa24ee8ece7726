// Package db provides a standardized interface for LRU cache engine
// implementations. It defines the KVCache interface that allows consistent
// interaction with cache backends while abstracting implementation details.
//
// The package focuses on:
//   - A unified interface for namespace-aware cache operations
//   - Feature discovery through capability flags
//   - Explicit time handling for deterministic expiry evaluation
//   - Standardized metadata reporting
//
// Key Components:
//
//   - KVCache Interface: The core interface that all cache implementations
//     must satisfy. It provides methods for basic operations (Put, Get,
//     Delete), namespace operations (Namespaces, NamespaceLen,
//     KeysInNamespace, ClearNamespace), expiry handling (ExpiredKeys), and
//     replay support for log recovery (Snapshot, Load, TrimToCapacity).
//
//   - QualifiedKey: The pair of namespace and key that is the sole identity
//     of an entry. The empty namespace is the distinguished default; it is
//     reported as "default" in namespace listings.
//
//   - Feature Flags: The Feature type defines capability flags that
//     implementations can advertise through the SupportsFeature method.
//     This allows clients to discover supported operations at runtime.
//
//   - Cache Information: The CacheInfo structure provides standardized
//     reporting on cache state, including the entry count, capacity,
//     implementation type, and implementation-specific metadata.
//
// Note on Time-Based Operations:
//
// All time-dependent methods (Get, ExpiredKeys, Snapshot) take the current
// instant as an explicit parameter. A caller that serializes operations can
// therefore evaluate one consistent "now" per critical section, and tests
// can drive expiry deterministically without sleeping. An entry whose
// expiry instant has passed is treated as absent by reads but may still be
// physically present until the caller removes it; expired reads never
// promote an entry in the recency order.
//
// Note on Replay:
//
// Load and TrimToCapacity exist for write-ahead log recovery. Load inserts
// without evicting, so a replayed history may momentarily exceed the
// capacity; once replay completes, TrimToCapacity drops entries from the
// tail of the recency order until the size fits. Trimming from the tail
// means the most recently replayed (and therefore most recently written)
// entries survive.
//
// Related Packages:
//
// The engines/linden package (github.com/ValentinKolb/cKV/lib/db/engines/linden)
// provides the standard implementation of the KVCache interface: a hash map
// combined with a doubly-linked recency list and a heap-based expiry index,
// giving O(1) access, insert, delete, and eviction.
//
// The util package (github.com/ValentinKolb/cKV/lib/db/util) provides the
// MapHeap priority queue used for expiry tracking.
//
// The testing package (github.com/ValentinKolb/cKV/lib/db/testing) provides
// standardized tests and benchmarks for implementations of the KVCache
// interface.
package db
