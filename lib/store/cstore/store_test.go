package cstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ValentinKolb/cKV/lib/db"
	"github.com/ValentinKolb/cKV/lib/db/engines/linden"
	"github.com/ValentinKolb/cKV/lib/store"
	"github.com/ValentinKolb/cKV/lib/wal"
)

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// newTestStore creates a store over a fresh linden cache with quiet
// background tasks (so tests drive sweeps and compactions themselves).
func newTestStore(t *testing.T, capacity int, logFile string) *storeImpl {
	t.Helper()

	opts := DefaultOptions()
	opts.LogFile = logFile
	opts.CleanupInterval = time.Hour
	opts.CompactionInterval = time.Hour

	st, err := NewCachedStore(func() db.KVCache {
		return linden.NewLindenCache(capacity)
	}, opts, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return st.(*storeImpl)
}

func tempLogFile(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "wal.log")
}

// setClock pins the store's clock to a fixed instant.
func setClock(s *storeImpl, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = func() time.Time { return at }
}

// replayRecords reads all valid records from a log file.
func replayRecords(t *testing.T, path string) []wal.Record {
	t.Helper()

	log, err := wal.Open(path, zap.NewNop())
	require.NoError(t, err)
	defer log.Close()

	var recs []wal.Record
	_, _, err = log.Replay(func(rec wal.Record) { recs = append(recs, rec) })
	require.NoError(t, err)
	return recs
}

// --------------------------------------------------------------------------
// Operation semantics
// --------------------------------------------------------------------------

func TestBasicRoundTrip(t *testing.T) {
	s := newTestStore(t, 100, tempLogFile(t))

	require.NoError(t, s.Set("", "a", "1", 0))

	value, found, err := s.Get("", "a")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "1", value)

	deleted, err := s.Delete("", "a")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, found, err = s.Get("", "a")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSetValidation(t *testing.T) {
	s := newTestStore(t, 100, tempLogFile(t))

	err := s.Set("", "", "v", 0)
	require.Error(t, err)
	assert.Equal(t, store.RetCValidation, err.(*store.Error).Code)

	err = s.Set("", "k", "v", -1)
	require.Error(t, err)
	assert.Equal(t, store.RetCValidation, err.(*store.Error).Code)

	// a failed validation must not touch the log
	assert.Empty(t, replayRecords(t, s.log.Path()))
}

func TestTTLExpiration(t *testing.T) {
	s := newTestStore(t, 100, tempLogFile(t))

	base := time.Now()
	setClock(s, base)
	require.NoError(t, s.Set("", "k", "v", 1))

	// half a second in: still live
	setClock(s, base.Add(500*time.Millisecond))
	value, found, err := s.Get("", "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v", value)

	// past the ttl: absent, counted as a miss, physically removed
	setClock(s, base.Add(1500*time.Millisecond))
	_, found, err = s.Get("", "k")
	require.NoError(t, err)
	assert.False(t, found)

	stats, err := s.Stats("")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.CacheMisses)
	assert.Equal(t, 0, stats.TotalKeys)
}

func TestEvictionUnderCapacity(t *testing.T) {
	s := newTestStore(t, 2, tempLogFile(t))

	require.NoError(t, s.Set("", "a", "1", 0))
	require.NoError(t, s.Set("", "b", "2", 0))

	// touching a makes b the eviction candidate
	_, found, err := s.Get("", "a")
	require.NoError(t, err)
	require.True(t, found)

	require.NoError(t, s.Set("", "c", "3", 0))

	_, found, _ = s.Get("", "b")
	assert.False(t, found, "b should have been evicted")
	_, found, _ = s.Get("", "a")
	assert.True(t, found)
	_, found, _ = s.Get("", "c")
	assert.True(t, found)

	stats, err := s.Stats("")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, 2, stats.TotalKeys)
}

func TestNamespaceIsolation(t *testing.T) {
	s := newTestStore(t, 100, tempLogFile(t))

	require.NoError(t, s.Set("t1", "k", "A", 0))
	require.NoError(t, s.Set("t2", "k", "B", 0))

	value, _, err := s.Get("t1", "k")
	require.NoError(t, err)
	assert.Equal(t, "A", value)

	value, _, err = s.Get("t2", "k")
	require.NoError(t, err)
	assert.Equal(t, "B", value)

	size, err := s.NamespaceSize("t1")
	require.NoError(t, err)
	assert.Equal(t, 1, size)

	namespaces, err := s.ListNamespaces()
	require.NoError(t, err)
	assert.Subset(t, namespaces, []string{"t1", "t2"})
}

func TestListNamespacesDefaultLabel(t *testing.T) {
	s := newTestStore(t, 100, tempLogFile(t))

	require.NoError(t, s.Set("", "k", "v", 0))
	require.NoError(t, s.Set("t1", "k", "v", 0))

	namespaces, err := s.ListNamespaces()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"default", "t1"}, namespaces)
}

func TestClearNamespace(t *testing.T) {
	s := newTestStore(t, 100, tempLogFile(t))

	require.NoError(t, s.Set("t1", "a", "1", 0))
	require.NoError(t, s.Set("t1", "b", "2", 0))
	require.NoError(t, s.Set("t2", "c", "3", 0))

	removed, err := s.ClearNamespace("t1")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	size, _ := s.NamespaceSize("t1")
	assert.Equal(t, 0, size)
	size, _ = s.NamespaceSize("t2")
	assert.Equal(t, 1, size)

	// one DELETE record per removed key, appended before removal
	recs := replayRecords(t, s.log.Path())
	var deletes int
	for _, rec := range recs {
		if rec.Action == wal.ActionDelete {
			deletes++
			assert.Equal(t, "t1", rec.Namespace)
		}
	}
	assert.Equal(t, 2, deletes)

	stats, _ := s.Stats("")
	assert.Equal(t, 5, stats.LogSize) // 3 SETs + 2 DELETEs
}

func TestDeleteAbsentAppendsRecord(t *testing.T) {
	s := newTestStore(t, 100, tempLogFile(t))

	deleted, err := s.Delete("", "ghost")
	require.NoError(t, err)
	assert.False(t, deleted)

	// the record is on disk even though nothing was removed
	recs := replayRecords(t, s.log.Path())
	require.Len(t, recs, 1)
	assert.Equal(t, wal.ActionDelete, recs[0].Action)
	assert.Equal(t, "ghost", recs[0].Key)

	// but the absent delete does not count towards the log size
	stats, _ := s.Stats("")
	assert.Equal(t, 0, stats.LogSize)
}

func TestStatsCounters(t *testing.T) {
	s := newTestStore(t, 100, tempLogFile(t))

	require.NoError(t, s.Set("t1", "k", "v", 0))

	s.Get("t1", "k")       // hit
	s.Get("t1", "missing") // miss
	s.Get("", "missing")   // miss in the default namespace

	stats, err := s.Stats("")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(2), stats.CacheMisses)
	assert.Equal(t, 1, stats.TotalKeys)
	assert.Equal(t, 1, stats.LogSize)

	require.Contains(t, stats.Namespaces, "t1")
	assert.Equal(t, int64(1), stats.Namespaces["t1"].CacheHits)
	assert.Equal(t, int64(1), stats.Namespaces["t1"].CacheMisses)
	assert.Equal(t, 1, stats.Namespaces["t1"].TotalKeys)

	require.Contains(t, stats.Namespaces, "default")
	assert.Equal(t, int64(1), stats.Namespaces["default"].CacheMisses)

	// focused snapshot
	focused, err := s.Stats("t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", focused.Namespace)
	require.NotNil(t, focused.NamespaceStats)
	assert.Equal(t, int64(1), focused.NamespaceStats.CacheHits)
	assert.Equal(t, 1, focused.TotalKeys)
}

// --------------------------------------------------------------------------
// Failure semantics
// --------------------------------------------------------------------------

func TestFailedAppendLeavesMemoryUntouched(t *testing.T) {
	s := newTestStore(t, 100, tempLogFile(t))

	require.NoError(t, s.Set("", "a", "1", 0))

	// break the log: every further append fails
	require.NoError(t, s.log.Close())

	err := s.Set("", "a", "2", 0)
	require.Error(t, err)
	assert.Equal(t, store.RetCIOError, err.(*store.Error).Code)

	_, err2 := s.Delete("", "a")
	require.Error(t, err2)

	// the cache still holds the pre-failure state
	value, found, err := s.Get("", "a")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "1", value)
}

// --------------------------------------------------------------------------
// Recovery and compaction
// --------------------------------------------------------------------------

func TestRecovery(t *testing.T) {
	logFile := tempLogFile(t)

	s := newTestStore(t, 100, logFile)
	require.NoError(t, s.Set("", "x", "1", 0))
	require.NoError(t, s.Set("", "y", "2", 0))
	_, err := s.Delete("", "x")
	require.NoError(t, err)

	// simulated crash: no compaction; only the log carries the state to the
	// restarted store
	require.NoError(t, s.Close())

	restored := newTestStore(t, 100, logFile)

	_, found, err := restored.Get("", "x")
	require.NoError(t, err)
	assert.False(t, found)

	value, found, err := restored.Get("", "y")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "2", value)

	stats, err := restored.Stats("")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalKeys)
	assert.Equal(t, 3, stats.LogSize) // 2 SETs + 1 DELETE replayed
}

func TestRecoverySkipsExpiredAndTrims(t *testing.T) {
	logFile := tempLogFile(t)

	s := newTestStore(t, 100, logFile)
	base := time.Now()

	// written an hour ago with a 1 second ttl: dead on arrival at recovery
	setClock(s, base.Add(-time.Hour))
	require.NoError(t, s.Set("", "short", "v", 1))

	setClock(s, base)
	require.NoError(t, s.Set("", "long", "v", 3600))
	for i := 0; i < 4; i++ {
		require.NoError(t, s.Set("", string(rune('a'+i)), "v", 0))
	}
	require.NoError(t, s.Close())

	// restart far enough in the future that "short" is dead on arrival,
	// into a smaller cache so replay has to trim
	restored := newTestStore(t, 3, logFile)

	_, found, err := restored.Get("", "short")
	require.NoError(t, err)
	assert.False(t, found, "expired entry must not be restored")

	// the most recently written entries survive the trim
	for _, key := range []string{"b", "c", "d"} {
		_, found, err := restored.Get("", key)
		require.NoError(t, err)
		assert.True(t, found, "entry %s should survive the trim", key)
	}
	_, found, _ = restored.Get("", "long")
	assert.False(t, found, "oldest live entries are trimmed first")

	stats, _ := restored.Stats("")
	assert.Equal(t, 3, stats.TotalKeys)
}

func TestCompactionPreservesSemantics(t *testing.T) {
	logFile := tempLogFile(t)

	s := newTestStore(t, 100, logFile)
	require.NoError(t, s.Set("", "x", "1", 0))
	require.NoError(t, s.Set("", "y", "2", 0))
	_, err := s.Delete("", "x")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	restored := newTestStore(t, 100, logFile)
	fixed := time.Now()
	setClock(restored, fixed)

	require.NoError(t, restored.Compact())

	// the log now holds exactly one record: SET y 2
	recs := replayRecords(t, logFile)
	require.Len(t, recs, 1)
	assert.Equal(t, wal.ActionSet, recs[0].Action)
	assert.Equal(t, "y", recs[0].Key)
	assert.Equal(t, "2", recs[0].Value)

	stats, err := restored.Stats("")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.LogSize)
	require.NotNil(t, stats.LastCompaction)

	// reads are unchanged by compaction
	value, found, err := restored.Get("", "y")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "2", value)

	// idempotence: a second compaction at the same instant produces the
	// same on-disk content
	before, err := os.ReadFile(logFile)
	require.NoError(t, err)
	require.NoError(t, restored.Compact())
	after, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestCompactionPreservesRemainingTTL(t *testing.T) {
	logFile := tempLogFile(t)

	s := newTestStore(t, 100, logFile)
	base := time.Now()
	setClock(s, base)
	require.NoError(t, s.Set("", "k", "v", 100))

	// 40 seconds later the compacted record carries the remaining ttl
	setClock(s, base.Add(40*time.Second))
	require.NoError(t, s.Compact())

	recs := replayRecords(t, logFile)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(60), recs[0].TTL)
}

func TestCompactionDropsExpiredEntries(t *testing.T) {
	logFile := tempLogFile(t)

	s := newTestStore(t, 100, logFile)
	base := time.Now()
	setClock(s, base)
	require.NoError(t, s.Set("", "dead", "v", 1))
	require.NoError(t, s.Set("", "live", "v", 0))

	setClock(s, base.Add(10*time.Second))
	require.NoError(t, s.Compact())

	recs := replayRecords(t, logFile)
	require.Len(t, recs, 1)
	assert.Equal(t, "live", recs[0].Key)
}

// --------------------------------------------------------------------------
// Background tasks
// --------------------------------------------------------------------------

func TestSweeperRemovesExpiredEntries(t *testing.T) {
	opts := DefaultOptions()
	opts.LogFile = tempLogFile(t)
	opts.CleanupInterval = 10 * time.Millisecond
	opts.CompactionInterval = time.Hour

	st, err := NewCachedStore(func() db.KVCache {
		return linden.NewLindenCache(100)
	}, opts, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	s := st.(*storeImpl)

	base := time.Now()
	setClock(s, base)
	require.NoError(t, s.Set("", "k", "v", 1))
	require.NoError(t, s.Set("", "keeper", "v", 0))

	// jump past the expiry and give the sweeper a few ticks
	setClock(s, base.Add(5*time.Second))
	require.Eventually(t, func() bool {
		size, err := s.NamespaceSize("")
		return err == nil && size == 1
	}, 2*time.Second, 10*time.Millisecond, "sweeper should remove the expired entry")

	// the sweep is not logged: the log still holds exactly the two SETs
	recs := replayRecords(t, opts.LogFile)
	assert.Len(t, recs, 2)
}

func TestCompactorTriggersOnThreshold(t *testing.T) {
	opts := DefaultOptions()
	opts.LogFile = tempLogFile(t)
	opts.CleanupInterval = time.Hour
	opts.CompactionInterval = 10 * time.Millisecond
	opts.MaxLogSize = 5

	st, err := NewCachedStore(func() db.KVCache {
		return linden.NewLindenCache(100)
	}, opts, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	s := st.(*storeImpl)

	// push the log over the threshold with rewrites of one key
	for i := 0; i < 10; i++ {
		require.NoError(t, s.Set("", "k", "v", 0))
	}

	require.Eventually(t, func() bool {
		stats, err := s.Stats("")
		return err == nil && stats.LogSize == 1 && stats.LastCompaction != nil
	}, 2*time.Second, 10*time.Millisecond, "compactor should rewrite the log down to one record")
}
