package linden

import (
	"testing"

	"github.com/ValentinKolb/cKV/lib/db"
	dbtesting "github.com/ValentinKolb/cKV/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunKVCacheTests(t, "LindenCache", func(capacity int) db.KVCache {
		return NewLindenCache(capacity)
	})
}

func Benchmark(b *testing.B) {
	dbtesting.RunKVCacheBenchmarks(b, "LindenCache", func(capacity int) db.KVCache {
		return NewLindenCache(capacity)
	})
}
