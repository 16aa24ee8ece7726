// Package server implements the HTTP API in front of the store core.
//
// The adapter is deliberately thin: handlers decode the request, apply the
// namespace precedence rule (query parameter over body field), invoke one
// store operation, and encode the result. All storage semantics -
// capacity, expiry, logging, recovery - live behind the store.IStore
// interface.
//
// Endpoints:
//
//	POST   /set                     store a key-value pair (optional ttl, namespace)
//	GET    /get/{key}               look up a key
//	DELETE /delete/{key}            remove a key
//	GET    /namespaces              list live namespaces
//	GET    /namespaces/{ns}/keys    key count of one namespace
//	DELETE /namespaces/{ns}         clear one namespace
//	GET    /stats                   counters, optionally ?ns= focused
//	GET    /health                  liveness and store size
//	POST   /compact                 trigger log compaction
//	GET    /performance             latency/throughput summary
//	GET    /performance/errors      per-operation error counts
//	GET    /metrics                 Prometheus text format
//
// Every response body except /metrics is JSON; failures carry a structured {"error": ...}
// body with 400 for validation, 404 for missing keys, and 500 for log I/O
// failures. Requests are instrumented with latency timers and request
// counters; access logging happens at debug level.
package server
