// Package cstore provides the standard implementation of the store.IStore
// interface: an LRU-bounded, namespace-partitioned in-memory cache coupled
// to an append-only write-ahead log, with background expiry sweeping and
// log compaction.
//
// Concurrency Model:
//
// A single mutex guards the cache, the log, and the counters. Every
// operation acquires it for its whole critical section, so concurrent
// operations serialize and the on-disk record order equals the
// serialization order. This is a deliberate simplicity/throughput trade:
// contention is bounded by the in-memory work plus one log append. The one
// piece of work that runs outside the mutex is the compaction rewrite
// (the temporary-file write), which touches no shared state; appends that
// race it are captured by the log and replayed onto the fresh file.
//
// Write Discipline:
//
// Every SET, every DELETE (including each key removed by ClearNamespace)
// appends its record to the log before the in-memory state is touched. A
// failed append surfaces as a RetCIOError and leaves the cache unchanged.
// DELETE records are appended even when the key is absent, which keeps the
// record stream equivalent to the in-memory state under replay. Expiries
// found by the sweeper are not logged: recovery re-evaluates the original
// SET records' TTLs against the recovery time.
//
// Recovery:
//
// On startup the log is replayed in order of appearance. SET records whose
// reconstructed expiry has already passed are skipped, DELETE records
// remove the key. Replay bypasses eviction and the cache is trimmed from
// the tail afterwards, so the most recently written entries survive.
// Malformed lines (including a partially written trailing record after a
// crash) are logged and skipped.
//
// Background Tasks:
//
// The expiry sweeper wakes on a fixed interval, captures one instant, and
// removes every entry expired at that instant. The compactor wakes on its
// own interval and rewrites the log once it exceeds the configured record
// count; Compact can also be invoked directly by an operator. Both tasks
// log transient errors and continue; Close cancels them cleanly.
package cstore
