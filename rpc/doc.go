// Package rpc provides the HTTP communication layer of the cKV store. It
// acts as a thin adapter between network clients and the store core,
// translating requests into store operations and results into JSON
// responses.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures shared across the layer, including the
//     request/response message types, configuration structures, and the
//     logger factory.
//
//   - server: The HTTP API server exposing the store's operation set
//     (set, get, delete, namespace operations, statistics, compaction,
//     health, performance) plus the Prometheus metrics endpoint.
//
//   - client: An HTTP client implementing the same operation set for
//     programs and the command line interface.
package rpc
