// Package wal implements the append-only write-ahead log that makes the
// cKV store crash-recoverable.
//
// The package focuses on:
//   - A self-describing text format: one JSON object per line with
//     timestamp, action (SET or DELETE), key, optional namespace, and for
//     SET the value plus an optional TTL in seconds
//   - Append-before-apply discipline: a record reaches the OS before the
//     in-memory mutation is considered authoritative
//   - Order-faithful recovery that tolerates malformed and truncated lines
//   - Compaction that rewrites the log down to one SET record per live
//     entry without blocking concurrent appends
//
// Durability is best-effort by design: records are flushed to the OS on
// every append but never fsynced, so a crash can lose the trailing,
// partially written record. Recovery treats such a line like any other
// malformed record and skips it.
//
// Compaction uses a temporary file and an atomic rename. Appends that race
// a compaction are captured in memory (they still land in the soon-to-be-
// replaced file, keeping the no-loss guarantee if the compaction aborts)
// and are re-appended to the rewritten log on commit. See the protocol
// description on the compaction functions in wal.go.
package wal
