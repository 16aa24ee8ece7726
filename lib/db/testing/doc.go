// Package testing provides standardized tests and benchmarks for cache
// engines that satisfy the db.KVCache interface.
//
//   - RunKVCacheTests: Runs a standardized test suite to validate
//     implementations (round trips, recency ordering, eviction, lazy
//     expiry, namespace isolation, replay support)
//   - RunKVCacheBenchmarks: Provides performance benchmarks for comparing
//     implementations
//
// Both entry points take a CacheFactory so that every subtest runs against
// a fresh cache with a capacity of its choosing.
package testing
