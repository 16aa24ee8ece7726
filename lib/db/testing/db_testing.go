package testing

import (
	"fmt"
	"testing"
	"time"

	"github.com/ValentinKolb/cKV/lib/db"
)

// CacheFactory is a function that creates a new instance of a KVCache
// implementation with the given capacity
type CacheFactory func(capacity int) db.KVCache

// RunKVCacheTests runs a comprehensive test suite for a KVCache
// implementation.
func RunKVCacheTests(t *testing.T, name string, factory CacheFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Put&Get", func(t *testing.T) {
			testPutGet(t, factory(16))
		})

		t.Run("UpdateExisting", func(t *testing.T) {
			testUpdateExisting(t, factory(16))
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory(16))
		})

		t.Run("Eviction", func(t *testing.T) {
			testEviction(t, factory(2))
		})

		t.Run("RecencyPromotion", func(t *testing.T) {
			testRecencyPromotion(t, factory(2))
		})

		t.Run("LazyExpiry", func(t *testing.T) {
			testLazyExpiry(t, factory(16))
		})

		t.Run("ExpiredReadDoesNotPromote", func(t *testing.T) {
			testExpiredReadDoesNotPromote(t, factory(3))
		})

		t.Run("NamespaceIsolation", func(t *testing.T) {
			testNamespaceIsolation(t, factory(16))
		})

		t.Run("ClearNamespace", func(t *testing.T) {
			testClearNamespace(t, factory(16))
		})

		t.Run("ExpiredKeys", func(t *testing.T) {
			testExpiredKeys(t, factory(16))
		})

		t.Run("SnapshotLoadTrim", func(t *testing.T) {
			testSnapshotLoadTrim(t, factory)
		})

		t.Run("CapacityInvariant", func(t *testing.T) {
			testCapacityInvariant(t, factory(8))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the cache supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, cache db.KVCache, feature db.Feature) {
	if !cache.SupportsFeature(feature) {
		t.Skip()
	}
}

func qk(ns, key string) db.QualifiedKey {
	return db.QualifiedKey{Namespace: ns, Key: key}
}

// mustGet fails the test unless the key resolves to a live entry with the
// expected value
func mustGet(t *testing.T, cache db.KVCache, k db.QualifiedKey, want string, now time.Time) {
	t.Helper()
	value, expired, ok := cache.Get(k, now)
	if !ok {
		t.Fatalf("Expected key %v to exist", k)
	}
	if expired {
		t.Fatalf("Expected key %v to be live", k)
	}
	if value != want {
		t.Fatalf("Expected value %q for key %v, got %q", want, k, value)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testPutGet(t *testing.T, cache db.KVCache) {
	defer cache.Close()

	requireFeature(t, cache, db.FeaturePut|db.FeatureGet)

	now := time.Now()

	if evicted := cache.Put(qk("", "a"), "1", time.Time{}); evicted != nil {
		t.Errorf("Put below capacity should not evict, got %v", evicted)
	}

	mustGet(t, cache, qk("", "a"), "1", now)

	if _, _, ok := cache.Get(qk("", "missing"), now); ok {
		t.Error("Get of a missing key should report absent")
	}

	if cache.Len() != 1 {
		t.Errorf("Expected 1 entry, got %d", cache.Len())
	}
}

func testUpdateExisting(t *testing.T, cache db.KVCache) {
	defer cache.Close()

	requireFeature(t, cache, db.FeaturePut|db.FeatureGet)

	now := time.Now()

	cache.Put(qk("", "a"), "1", time.Time{})
	cache.Put(qk("", "a"), "2", time.Time{})

	if cache.Len() != 1 {
		t.Errorf("Updating a key should not grow the cache, got %d entries", cache.Len())
	}

	mustGet(t, cache, qk("", "a"), "2", now)

	// updating with a past expiry keeps the entry in place; expiry is
	// enforced on read
	cache.Put(qk("", "a"), "3", now.Add(-time.Second))
	if cache.Len() != 1 {
		t.Errorf("Expected entry to remain after dead update, got %d entries", cache.Len())
	}
	if _, expired, ok := cache.Get(qk("", "a"), now); !ok || !expired {
		t.Errorf("Expected dead update to read as expired, got ok=%v expired=%v", ok, expired)
	}
}

func testDelete(t *testing.T, cache db.KVCache) {
	defer cache.Close()

	requireFeature(t, cache, db.FeaturePut|db.FeatureDelete)

	cache.Put(qk("", "a"), "1", time.Time{})

	if !cache.Delete(qk("", "a")) {
		t.Error("Delete of an existing key should return true")
	}

	if cache.Delete(qk("", "a")) {
		t.Error("Delete of a missing key should return false")
	}

	if cache.Len() != 0 {
		t.Errorf("Expected empty cache after delete, got %d entries", cache.Len())
	}
}

func testEviction(t *testing.T, cache db.KVCache) {
	defer cache.Close()

	requireFeature(t, cache, db.FeaturePut|db.FeatureGet)

	now := time.Now()

	cache.Put(qk("", "a"), "1", time.Time{})
	cache.Put(qk("", "b"), "2", time.Time{})

	// capacity 2: inserting c evicts the least recently used entry (a)
	evicted := cache.Put(qk("", "c"), "3", time.Time{})
	if evicted == nil {
		t.Fatal("Put at capacity should evict")
	}
	if evicted.Key != "a" || evicted.Value != "1" {
		t.Errorf("Expected eviction of (a,1), got (%s,%s)", evicted.Key, evicted.Value)
	}

	if _, _, ok := cache.Get(qk("", "a"), now); ok {
		t.Error("Evicted key should be absent")
	}
	mustGet(t, cache, qk("", "b"), "2", now)
	mustGet(t, cache, qk("", "c"), "3", now)
}

func testRecencyPromotion(t *testing.T, cache db.KVCache) {
	defer cache.Close()

	requireFeature(t, cache, db.FeaturePut|db.FeatureGet)

	now := time.Now()

	cache.Put(qk("", "a"), "1", time.Time{})
	cache.Put(qk("", "b"), "2", time.Time{})

	// touching a makes b the eviction candidate
	mustGet(t, cache, qk("", "a"), "1", now)

	evicted := cache.Put(qk("", "c"), "3", time.Time{})
	if evicted == nil || evicted.Key != "b" {
		t.Fatalf("Expected eviction of b after promoting a, got %v", evicted)
	}

	mustGet(t, cache, qk("", "a"), "1", now)
	mustGet(t, cache, qk("", "c"), "3", now)
}

func testLazyExpiry(t *testing.T, cache db.KVCache) {
	defer cache.Close()

	requireFeature(t, cache, db.FeaturePut|db.FeatureGet|db.FeatureExpiry)

	base := time.Now()

	cache.Put(qk("", "k"), "v", base.Add(time.Second))

	// before the expiry instant the entry is live
	mustGet(t, cache, qk("", "k"), "v", base.Add(500*time.Millisecond))

	// after the expiry instant the entry reads as expired; the stored
	// value is still reported so the caller can account for it
	value, expired, ok := cache.Get(qk("", "k"), base.Add(1500*time.Millisecond))
	if !ok || !expired {
		t.Fatalf("Expected expired read, got ok=%v expired=%v", ok, expired)
	}
	if value != "v" {
		t.Errorf("Expected stored value on expired read, got %q", value)
	}
}

func testExpiredReadDoesNotPromote(t *testing.T, cache db.KVCache) {
	defer cache.Close()

	requireFeature(t, cache, db.FeaturePut|db.FeatureGet|db.FeatureExpiry)

	base := time.Now()

	// capacity 3: a expires first and sits at the tail after b/c are added
	cache.Put(qk("", "a"), "1", base.Add(time.Second))
	cache.Put(qk("", "b"), "2", time.Time{})
	cache.Put(qk("", "c"), "3", time.Time{})

	// an expired read of a must not move it to the head
	if _, expired, ok := cache.Get(qk("", "a"), base.Add(2*time.Second)); !ok || !expired {
		t.Fatal("Expected expired read of a")
	}

	// the next insert at capacity evicts a (still the tail), not b
	evicted := cache.Put(qk("", "d"), "4", time.Time{})
	if evicted == nil || evicted.Key != "a" {
		t.Errorf("Expected eviction of unpromoted expired entry a, got %v", evicted)
	}
}

func testNamespaceIsolation(t *testing.T, cache db.KVCache) {
	defer cache.Close()

	requireFeature(t, cache, db.FeaturePut|db.FeatureGet)

	now := time.Now()

	cache.Put(qk("t1", "k"), "A", time.Time{})
	cache.Put(qk("t2", "k"), "B", time.Time{})
	cache.Put(qk("", "k"), "C", time.Time{})

	mustGet(t, cache, qk("t1", "k"), "A", now)
	mustGet(t, cache, qk("t2", "k"), "B", now)
	mustGet(t, cache, qk("", "k"), "C", now)

	if n := cache.NamespaceLen("t1"); n != 1 {
		t.Errorf("Expected 1 entry in t1, got %d", n)
	}

	// deleting in one namespace leaves the same key elsewhere untouched
	cache.Delete(qk("t1", "k"))
	if _, _, ok := cache.Get(qk("t1", "k"), now); ok {
		t.Error("Deleted key should be absent in t1")
	}
	mustGet(t, cache, qk("t2", "k"), "B", now)

	namespaces := cache.Namespaces()
	want := map[string]bool{"t2": true, db.DefaultNamespaceLabel: true}
	if len(namespaces) != len(want) {
		t.Fatalf("Expected namespaces %v, got %v", want, namespaces)
	}
	for _, ns := range namespaces {
		if !want[ns] {
			t.Errorf("Unexpected namespace %q in listing %v", ns, namespaces)
		}
	}
}

func testClearNamespace(t *testing.T, cache db.KVCache) {
	defer cache.Close()

	requireFeature(t, cache, db.FeaturePut|db.FeatureClearNamespace)

	now := time.Now()

	for i := 0; i < 3; i++ {
		cache.Put(qk("t1", fmt.Sprintf("k%d", i)), "v", time.Time{})
	}
	cache.Put(qk("t2", "k"), "v", time.Time{})

	if removed := cache.ClearNamespace("t1"); removed != 3 {
		t.Errorf("Expected 3 removed entries, got %d", removed)
	}

	if n := cache.NamespaceLen("t1"); n != 0 {
		t.Errorf("Expected empty namespace t1, got %d entries", n)
	}
	mustGet(t, cache, qk("t2", "k"), "v", now)

	if removed := cache.ClearNamespace("t1"); removed != 0 {
		t.Errorf("Clearing an empty namespace should remove 0 entries, got %d", removed)
	}
}

func testExpiredKeys(t *testing.T, cache db.KVCache) {
	defer cache.Close()

	requireFeature(t, cache, db.FeaturePut|db.FeatureExpiry)

	base := time.Now()

	cache.Put(qk("", "a"), "1", base.Add(time.Second))
	cache.Put(qk("", "b"), "2", base.Add(3*time.Second))
	cache.Put(qk("", "c"), "3", time.Time{})

	due := cache.ExpiredKeys(base.Add(2 * time.Second))
	if len(due) != 1 || due[0] != qk("", "a") {
		t.Errorf("Expected only a to be due, got %v", due)
	}

	due = cache.ExpiredKeys(base.Add(4 * time.Second))
	if len(due) != 2 {
		t.Errorf("Expected a and b to be due, got %v", due)
	}

	if due := cache.ExpiredKeys(base); len(due) != 0 {
		t.Errorf("Expected nothing due at base, got %v", due)
	}
}

func testSnapshotLoadTrim(t *testing.T, factory CacheFactory) {
	source := factory(16)
	defer source.Close()

	requireFeature(t, source, db.FeaturePut|db.FeatureSnapshot)

	base := time.Now()

	source.Put(qk("", "a"), "1", time.Time{})
	source.Put(qk("t1", "b"), "2", base.Add(time.Minute))
	source.Put(qk("", "dead"), "x", base.Add(-time.Second))

	snap := source.Snapshot(base)
	if len(snap) != 2 {
		t.Fatalf("Expected 2 live entries in snapshot, got %d", len(snap))
	}

	// snapshot order is most recently used first
	if snap[0].Key != "b" || snap[1].Key != "a" {
		t.Errorf("Expected recency order [b a], got [%s %s]", snap[0].Key, snap[1].Key)
	}

	// restoring the snapshot into a fresh cache reproduces the entries
	restored := factory(16)
	defer restored.Close()
	for i := len(snap) - 1; i >= 0; i-- {
		restored.Load(snap[i].QualifiedKey, snap[i].Value, snap[i].ExpiresAt)
	}

	mustGet(t, restored, qk("", "a"), "1", base)
	mustGet(t, restored, qk("t1", "b"), "2", base)

	// a replay may exceed the capacity until it is trimmed; the most
	// recently loaded entries survive
	small := factory(2)
	defer small.Close()
	for i := 0; i < 5; i++ {
		small.Load(qk("", fmt.Sprintf("k%d", i)), "v", time.Time{})
	}
	if small.Len() != 5 {
		t.Fatalf("Load should bypass capacity, got %d entries", small.Len())
	}
	if trimmed := small.TrimToCapacity(); trimmed != 3 {
		t.Errorf("Expected 3 trimmed entries, got %d", trimmed)
	}
	mustGet(t, small, qk("", "k3"), "v", base)
	mustGet(t, small, qk("", "k4"), "v", base)
	if _, _, ok := small.Get(qk("", "k0"), base); ok {
		t.Error("Trimmed entry k0 should be absent")
	}
}

func testCapacityInvariant(t *testing.T, cache db.KVCache) {
	defer cache.Close()

	requireFeature(t, cache, db.FeaturePut|db.FeatureGet|db.FeatureDelete)

	now := time.Now()
	capacity := cache.Capacity()

	// mixed operation sequence; the size bound must hold after every step
	for i := 0; i < 200; i++ {
		key := qk(fmt.Sprintf("ns%d", i%3), fmt.Sprintf("k%d", i%20))
		switch i % 5 {
		case 0, 1, 2:
			cache.Put(key, fmt.Sprintf("v%d", i), time.Time{})
		case 3:
			cache.Get(key, now)
		case 4:
			cache.Delete(key)
		}

		if cache.Len() > capacity {
			t.Fatalf("Capacity invariant violated after op %d: %d > %d", i, cache.Len(), capacity)
		}
	}
}
