// Package client provides an HTTP client for the cKV server. It exposes
// the store's full operation set (set, get, delete, namespace operations,
// statistics, compaction, health, performance) as typed methods and is
// what the command line interface is built on.
//
// Transport failures (connection refused, timeouts) are retried up to the
// configured count; HTTP-level failures are surfaced as APIError values
// carrying the server's structured error message. Missing keys are
// reported through boolean returns, mirroring the store interface.
package client
