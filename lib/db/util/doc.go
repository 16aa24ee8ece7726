// Package util provides utility components for cache engines that satisfy
// the db.KVCache interface.
//
// The package contains:
//   - mapheap: A generic min-priority queue that also supports key-based
//     access, used by engines to track entry expiry instants
//   - statistics: A bucketed size histogram engines use to estimate value
//     size characteristics without keeping every sample
//
// Each component is designed to work with any implementation of the
// db.KVCache interface, allowing for consistent behavior across different
// cache backends.
package util
