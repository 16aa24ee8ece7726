package cstore

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"github.com/ValentinKolb/cKV/lib/db"
	"github.com/ValentinKolb/cKV/lib/store"
	"github.com/ValentinKolb/cKV/lib/wal"
)

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Options configures the cached store behavior during initialization
type Options struct {
	LogFile            string        // Path of the write-ahead log
	CompactionInterval time.Duration // Time between compactor wake-ups
	MaxLogSize         int           // Record count above which the compactor rewrites the log
	CleanupInterval    time.Duration // Time between expiry sweeps
}

// DefaultOptions returns the default store options
func DefaultOptions() *Options {
	return &Options{
		LogFile:            "data/wal.log",
		CompactionInterval: 300 * time.Second,
		MaxLogSize:         1000,
		CleanupInterval:    60 * time.Second,
	}
}

// --------------------------------------------------------------------------
// Core store structure
// --------------------------------------------------------------------------

// nsCounters holds the per-namespace hit and miss counters. Key counts are
// always derived from the cache.
type nsCounters struct {
	hits   int64
	misses int64
}

// storeImpl implements store.IStore. A single mutex guards the cache, the
// write-ahead log, and the counters; every operation acquires it for its
// whole critical section, so the log record order equals the operation
// serialization order.
type storeImpl struct {
	mu     sync.Mutex
	cache  db.KVCache
	log    *wal.Log
	logger *zap.Logger
	opts   Options

	// statistics (guarded by mu except nsStats, which is a concurrent map
	// so stat records survive without extra bookkeeping)
	startTime      time.Time
	cacheHits      int64
	cacheMisses    int64
	evictions      int64
	logSize        int
	lastCompaction *time.Time
	nsStats        *xsync.MapOf[string, *nsCounters]

	// background task lifecycle
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// at most one compaction is in flight at a time
	compacting bool

	// injectable clock
	now func() time.Time
}

// NewCachedStore creates a new cached store instance. It builds the cache
// via the factory, opens the write-ahead log, replays it, trims the cache
// to its capacity, and starts the expiry sweeper and the compactor.
func NewCachedStore(factory db.CacheFactory, opts *Options, logger *zap.Logger) (store.IStore, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	s := &storeImpl{
		cache:     factory(),
		logger:    logger,
		opts:      *opts,
		startTime: time.Now(),
		nsStats:   xsync.NewMapOf[string, *nsCounters](),
		now:       time.Now,
	}

	log, err := wal.Open(opts.LogFile, logger.Named("wal"))
	if err != nil {
		return nil, store.NewError(store.RetCIOError, fmt.Sprintf("opening write-ahead log: %v", err))
	}
	s.log = log

	if err := s.recover(); err != nil {
		log.Close()
		return nil, err
	}

	s.startBackgroundTasks()
	return s, nil
}

// --------------------------------------------------------------------------
// Recovery
// --------------------------------------------------------------------------

// recover replays the write-ahead log into the cache. SET records whose
// reconstructed expiry has already passed are skipped; DELETE records
// remove the key if present. Replay bypasses eviction, so the cache is
// trimmed from the tail once replay completes. Replay order establishes
// the recency order, so the most recently written entries survive the
// trim.
func (s *storeImpl) recover() error {
	now := s.now()

	records, skipped, err := s.log.Replay(func(rec wal.Record) {
		qk := rec.QualifiedKey()
		switch rec.Action {
		case wal.ActionSet:
			expiresAt := rec.ExpiresAt()
			if !expiresAt.IsZero() && !expiresAt.After(now) {
				return // dead on arrival
			}
			s.cache.Load(qk, rec.Value, expiresAt)
		case wal.ActionDelete:
			s.cache.Delete(qk)
		}
	})
	if err != nil {
		return store.NewError(store.RetCIOError, fmt.Sprintf("replaying write-ahead log: %v", err))
	}

	s.logSize = records
	trimmed := s.cache.TrimToCapacity()

	if records > 0 || skipped > 0 {
		s.logger.Info("recovered store from write-ahead log",
			zap.Int("records", records),
			zap.Int("skipped", skipped),
			zap.Int("trimmed", trimmed),
			zap.Int("entries", s.cache.Len()))
	}
	return nil
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// nsLabel maps a raw namespace to its statistics label.
func nsLabel(ns string) string {
	return db.QualifiedKey{Namespace: ns}.NamespaceLabel()
}

// counters returns the stat record for a namespace, creating it lazily on
// first reference. Records are never destroyed while the process lives.
func (s *storeImpl) counters(ns string) *nsCounters {
	c, _ := s.nsStats.LoadOrCompute(nsLabel(ns), func() *nsCounters {
		return &nsCounters{}
	})
	return c
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Set(ns, key, value string, ttlSeconds int64) error {
	// validated before the mutex is taken
	if key == "" {
		return store.NewError(store.RetCValidation, "key must not be empty")
	}
	if ttlSeconds < 0 {
		return store.NewError(store.RetCValidation, "ttl must be a positive integer")
	}
	if !s.cache.SupportsFeature(db.FeaturePut) {
		return store.NewError(store.RetCUnsupportedOperation, "Put operation is not supported")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	qk := db.QualifiedKey{Namespace: ns, Key: key}

	// the record must be on disk before the cache is touched; a failed
	// append leaves the in-memory state unchanged
	if err := s.log.Append(wal.NewSetRecord(qk, value, ttlSeconds, now)); err != nil {
		return store.NewError(store.RetCIOError, fmt.Sprintf("appending SET record: %v", err))
	}

	var expiresAt time.Time
	if ttlSeconds > 0 {
		expiresAt = now.Add(time.Duration(ttlSeconds) * time.Second)
	}

	if evicted := s.cache.Put(qk, value, expiresAt); evicted != nil {
		s.evictions++
	}
	s.logSize++
	s.counters(ns) // namespace stat record exists from first reference

	return nil
}

func (s *storeImpl) Get(ns, key string) (string, bool, error) {
	if !s.cache.SupportsFeature(db.FeatureGet) {
		return "", false, store.NewError(store.RetCUnsupportedOperation, "Get operation is not supported")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	qk := db.QualifiedKey{Namespace: ns, Key: key}
	value, expired, ok := s.cache.Get(qk, s.now())

	if ok && !expired {
		s.cacheHits++
		s.counters(ns).hits++
		return value, true, nil
	}

	// absent and expired both count as misses; an expired entry is
	// removed before the lookup returns
	s.cacheMisses++
	s.counters(ns).misses++
	if ok && expired {
		s.cache.Delete(qk)
	}
	return "", false, nil
}

func (s *storeImpl) Delete(ns, key string) (bool, error) {
	if !s.cache.SupportsFeature(db.FeatureDelete) {
		return false, store.NewError(store.RetCUnsupportedOperation, "Delete operation is not supported")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	qk := db.QualifiedKey{Namespace: ns, Key: key}

	// the DELETE record is appended unconditionally, even when the key is
	// absent; this keeps the record stream equivalent to the in-memory
	// state under replay
	if err := s.log.Append(wal.NewDeleteRecord(qk, s.now())); err != nil {
		return false, store.NewError(store.RetCIOError, fmt.Sprintf("appending DELETE record: %v", err))
	}

	existed := s.cache.Delete(qk)
	if existed {
		s.logSize++
	}
	return existed, nil
}

func (s *storeImpl) ListNamespaces() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Namespaces(), nil
}

func (s *storeImpl) NamespaceSize(ns string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.NamespaceLen(ns), nil
}

func (s *storeImpl) ClearNamespace(ns string) (int, error) {
	if !s.cache.SupportsFeature(db.FeatureClearNamespace) {
		return 0, store.NewError(store.RetCUnsupportedOperation, "ClearNamespace operation is not supported")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	keys := s.cache.KeysInNamespace(ns)

	// every removal gets its DELETE record before any entry is removed
	for _, qk := range keys {
		if err := s.log.Append(wal.NewDeleteRecord(qk, now)); err != nil {
			return 0, store.NewError(store.RetCIOError, fmt.Sprintf("appending DELETE record: %v", err))
		}
	}

	removed := s.cache.ClearNamespace(ns)
	s.logSize += removed
	return removed, nil
}

func (s *storeImpl) Stats(ns string) (store.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stats := store.Stats{
		TotalKeys:      s.cache.Len(),
		CacheHits:      s.cacheHits,
		CacheMisses:    s.cacheMisses,
		Evictions:      s.evictions,
		LogSize:        s.logSize,
		LastCompaction: s.lastCompaction,
		UptimeSeconds:  now.Sub(s.startTime).Seconds(),
	}

	if ns != "" {
		c := s.counters(ns)
		stats.TotalKeys = s.cache.NamespaceLen(ns)
		stats.Namespace = ns
		stats.NamespaceStats = &store.NamespaceStats{
			CacheHits:   c.hits,
			CacheMisses: c.misses,
			TotalKeys:   s.cache.NamespaceLen(ns),
		}
		return stats, nil
	}

	stats.Namespaces = make(map[string]store.NamespaceStats)
	s.nsStats.Range(func(label string, c *nsCounters) bool {
		raw := label
		if label == db.DefaultNamespaceLabel {
			raw = ""
		}
		stats.Namespaces[label] = store.NamespaceStats{
			CacheHits:   c.hits,
			CacheMisses: c.misses,
			TotalKeys:   s.cache.NamespaceLen(raw),
		}
		return true
	})
	return stats, nil
}

func (s *storeImpl) GetCacheInfo() (db.CacheInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.GetInfo(), nil
}

// --------------------------------------------------------------------------
// Compaction
// --------------------------------------------------------------------------

// Compact rewrites the write-ahead log down to one SET record per live
// entry. The snapshot is taken under the mutex; the rewrite itself runs
// unlocked so writes are not blocked by the file I/O (appends racing the
// rewrite are captured by the log and replayed onto the fresh file). A
// compaction already in flight makes Compact a no-op.
func (s *storeImpl) Compact() error {
	if !s.cache.SupportsFeature(db.FeatureSnapshot) {
		return store.NewError(store.RetCUnsupportedOperation, "Snapshot operation is not supported")
	}

	s.mu.Lock()
	if s.compacting {
		s.mu.Unlock()
		return nil
	}
	s.compacting = true

	now := s.now()
	snap := s.cache.Snapshot(now)

	// the compacted log replays front to back, so the least recently used
	// entry is written first and replay rebuilds the recency order
	records := make([]wal.Record, 0, len(snap))
	for i := len(snap) - 1; i >= 0; i-- {
		e := snap[i]
		var ttlSeconds int64
		if !e.ExpiresAt.IsZero() {
			// round up so a nearly expired entry never becomes immortal
			ttlSeconds = int64(math.Ceil(e.ExpiresAt.Sub(now).Seconds()))
		}
		records = append(records, wal.NewSetRecord(e.QualifiedKey, e.Value, ttlSeconds, now))
	}

	s.log.BeginCompaction()
	s.mu.Unlock()

	writeErr := s.log.WriteSnapshot(records)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.compacting = false }()

	if writeErr != nil {
		s.log.AbortCompaction()
		return store.NewError(store.RetCIOError, fmt.Sprintf("writing compacted log: %v", writeErr))
	}

	count, err := s.log.CommitCompaction(len(records))
	if err != nil {
		return store.NewError(store.RetCIOError, fmt.Sprintf("swapping compacted log: %v", err))
	}

	s.logSize = count
	stamp := s.now()
	s.lastCompaction = &stamp

	s.logger.Info("compacted write-ahead log",
		zap.Int("records", count),
		zap.Int("entries", len(records)))
	return nil
}

// --------------------------------------------------------------------------
// Shutdown
// --------------------------------------------------------------------------

// Close stops the background tasks, waits for them to exit, and closes the
// log and the cache.
func (s *storeImpl) Close() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.log.Close()
	if cerr := s.cache.Close(); err == nil {
		err = cerr
	}
	return err
}
