package testing

import (
	"fmt"
	"testing"
	"time"

	"github.com/ValentinKolb/cKV/lib/db"
)

// RunKVCacheBenchmarks runs all benchmarks for a KVCache implementation
func RunKVCacheBenchmarks(b *testing.B, name string, factory CacheFactory) {

	b.Run("Put", func(b *testing.B) {
		benchmarkPut(b, factory(1<<16))
	})

	b.Run("PutExisting", func(b *testing.B) {
		benchmarkPutExisting(b, factory(1<<16))
	})

	b.Run("PutWithExpiry", func(b *testing.B) {
		benchmarkPutWithExpiry(b, factory(1<<16))
	})

	b.Run("PutEvicting", func(b *testing.B) {
		benchmarkPutEvicting(b, factory(128))
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory(1<<16))
	})

	b.Run("Delete", func(b *testing.B) {
		benchmarkDelete(b, factory(1<<16))
	})

	b.Run("ExpiredKeys", func(b *testing.B) {
		benchmarkExpiredKeys(b, factory(1<<16))
	})

	b.Run("Snapshot", func(b *testing.B) {
		benchmarkSnapshot(b, factory(1<<16))
	})
}

func benchmarkPut(b *testing.B, cache db.KVCache) {
	defer cache.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.Put(qk("", fmt.Sprintf("key-%d", i)), "value", time.Time{})
	}
}

func benchmarkPutExisting(b *testing.B, cache db.KVCache) {
	defer cache.Close()

	cache.Put(qk("", "key"), "value", time.Time{})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.Put(qk("", "key"), "value", time.Time{})
	}
}

func benchmarkPutWithExpiry(b *testing.B, cache db.KVCache) {
	defer cache.Close()

	expiresAt := time.Now().Add(time.Hour)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.Put(qk("", fmt.Sprintf("key-%d", i)), "value", expiresAt)
	}
}

func benchmarkPutEvicting(b *testing.B, cache db.KVCache) {
	defer cache.Close()

	// fill the cache so every further insert evicts
	for i := 0; i < cache.Capacity(); i++ {
		cache.Put(qk("", fmt.Sprintf("fill-%d", i)), "value", time.Time{})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.Put(qk("", fmt.Sprintf("key-%d", i)), "value", time.Time{})
	}
}

func benchmarkGet(b *testing.B, cache db.KVCache) {
	defer cache.Close()

	const keys = 1024
	for i := 0; i < keys; i++ {
		cache.Put(qk("", fmt.Sprintf("key-%d", i)), "value", time.Time{})
	}
	now := time.Now()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.Get(qk("", fmt.Sprintf("key-%d", i%keys)), now)
	}
}

func benchmarkDelete(b *testing.B, cache db.KVCache) {
	defer cache.Close()

	for i := 0; i < b.N; i++ {
		cache.Put(qk("", fmt.Sprintf("key-%d", i)), "value", time.Time{})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.Delete(qk("", fmt.Sprintf("key-%d", i)))
	}
}

func benchmarkExpiredKeys(b *testing.B, cache db.KVCache) {
	defer cache.Close()

	base := time.Now()
	for i := 0; i < 1024; i++ {
		cache.Put(qk("", fmt.Sprintf("key-%d", i)), "value", base.Add(time.Hour))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.ExpiredKeys(base)
	}
}

func benchmarkSnapshot(b *testing.B, cache db.KVCache) {
	defer cache.Close()

	for i := 0; i < 1024; i++ {
		cache.Put(qk("", fmt.Sprintf("key-%d", i)), "value", time.Time{})
	}
	now := time.Now()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.Snapshot(now)
	}
}
