// Package store provides a high-level interface for namespaced key-value
// storage with LRU-bounded capacity, per-key expiry, statistics, and
// unified error handling. It serves as an abstraction layer over the
// lower-level db.KVCache implementations.
//
// The package focuses on:
//   - A unified interface (IStore) for key-value operations
//   - Pluggable cache backend architecture through the db.CacheFactory
//     pattern
//   - A structured error system using typed error codes
//
// Key Components:
//
//   - IStore Interface: The core abstraction defining the store's
//     operation set: Set, Get, Delete, namespace operations
//     (ListNamespaces, NamespaceSize, ClearNamespace), Stats, and Compact.
//     Lookups report absence through boolean returns; errors carry typed
//     codes so callers can map them to transport-level responses.
//
//   - Error System: A structured error reporting mechanism using typed
//     error codes and descriptive messages. Validation failures
//     (RetCValidation) and log I/O failures (RetCIOError) are
//     distinguishable without string matching.
//
//   - Statistics: The Stats and NamespaceStats snapshot types returned by
//     IStore.Stats. Key counts are always derived from the live cache;
//     hit/miss/eviction counters accumulate for the process lifetime.
//
// Implementations:
//
//	The cstore package (github.com/ValentinKolb/cKV/lib/store/cstore)
//	provides the standard implementation: a write-ahead-logged, LRU-bounded
//	cache guarded by a single mutex, with background expiry sweeping and
//	log compaction. See that package for the concurrency and recovery
//	semantics.
package store
