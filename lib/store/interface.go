package store

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/cKV/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IStore is the generic interface for interacting with a namespaced
// key-value store. Lookups signal absence through a boolean, never through
// an error; errors are reserved for validation and I/O failures.
type IStore interface {
	// Set inserts or updates a key-value pair. ttlSeconds > 0 schedules
	// expiry that many seconds from now; ttlSeconds == 0 means no expiry.
	// The key must be non-empty and ttlSeconds must not be negative.
	Set(ns, key, value string, ttlSeconds int64) (err error)
	// Get returns the value for a key. The boolean return value indicates
	// whether a live value for the key was found; expired entries read as
	// absent and are removed as a side effect.
	Get(ns, key string) (value string, found bool, err error)
	// Delete deletes a key-value pair. The boolean return value indicates
	// whether the key existed.
	Delete(ns, key string) (deleted bool, err error)
	// ListNamespaces returns the labels of all namespaces holding at least
	// one live entry.
	ListNamespaces() (namespaces []string, err error)
	// NamespaceSize returns the number of entries whose namespace equals ns.
	NamespaceSize(ns string) (size int, err error)
	// ClearNamespace removes every entry in ns and returns how many were
	// removed.
	ClearNamespace(ns string) (removed int, err error)
	// Stats returns a snapshot of the store's counters. With a non-empty
	// ns the snapshot focuses on that namespace; otherwise it carries the
	// per-namespace breakdown.
	Stats(ns string) (stats Stats, err error)
	// Compact rewrites the write-ahead log down to the live state.
	Compact() (err error)
	// GetCacheInfo returns metadata about the cache underlying the store.
	GetCacheInfo() (info db.CacheInfo, err error)
	// Close stops background tasks and releases the store's resources.
	Close() (err error)
}

// --------------------------------------------------------------------------
// Statistics Types
// --------------------------------------------------------------------------

// NamespaceStats are the per-namespace counters. TotalKeys is always
// computed from the cache, never from a running counter.
type NamespaceStats struct {
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`
	TotalKeys   int   `json:"total_keys"`
}

// Stats is a point-in-time snapshot of the store's counters.
type Stats struct {
	TotalKeys      int        `json:"total_keys"`
	CacheHits      int64      `json:"cache_hits"`
	CacheMisses    int64      `json:"cache_misses"`
	Evictions      int64      `json:"evictions"`
	LogSize        int        `json:"log_size"`
	LastCompaction *time.Time `json:"last_compaction"`
	UptimeSeconds  float64    `json:"uptime_seconds"`

	// Namespaces carries the full per-namespace breakdown on a global
	// snapshot; Namespace and NamespaceStats replace it on a focused one.
	Namespaces     map[string]NamespaceStats `json:"namespaces,omitempty"`
	Namespace      string                    `json:"namespace,omitempty"`
	NamespaceStats *NamespaceStats           `json:"namespace_stats,omitempty"`
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	errorCode := ""
	switch e.Code {
	case RetCInternalError:
		errorCode = "InternalError"
	case RetCUnsupportedOperation:
		errorCode = "UnsupportedOperation"
	case RetCValidation:
		errorCode = "Validation"
	case RetCIOError:
		errorCode = "IOError"
	default:
		errorCode = "Unknown"
	}

	return fmt.Sprintf("KVStoreError (code %s): %s", errorCode, e.Msg)
}

// NewError creates a new KVStoreError with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by the underlying cache.
	RetCValidation                          // 3: Invalid input (empty key, negative TTL, ...).
	RetCIOError                             // 4: Write-ahead log I/O failure.
)
