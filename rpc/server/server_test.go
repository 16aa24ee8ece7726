package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ValentinKolb/cKV/lib/db"
	"github.com/ValentinKolb/cKV/lib/db/engines/linden"
	"github.com/ValentinKolb/cKV/lib/store"
	"github.com/ValentinKolb/cKV/lib/store/cstore"
	"github.com/ValentinKolb/cKV/rpc/common"
)

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// newTestServer spins up the full stack: linden cache, cstore with a
// temporary log, and the HTTP adapter behind an httptest listener.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	opts := cstore.DefaultOptions()
	opts.LogFile = filepath.Join(t.TempDir(), "wal.log")
	opts.CleanupInterval = time.Hour
	opts.CompactionInterval = time.Hour

	st, err := cstore.NewCachedStore(func() db.KVCache {
		return linden.NewLindenCache(100)
	}, opts, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	s := NewAPIServer(common.ServerConfig{}, st, zap.NewNop())
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)
	return ts
}

// doJSON performs a request with an optional JSON body and decodes the
// JSON response.
func doJSON(t *testing.T, method, url string, body, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func setKey(t *testing.T, ts *httptest.Server, ns, key, value string) {
	t.Helper()
	body := map[string]any{"key": key, "value": value}
	if ns != "" {
		body["namespace"] = ns
	}
	status := doJSON(t, http.MethodPost, ts.URL+"/set", body, nil)
	require.Equal(t, http.StatusOK, status)
}

// --------------------------------------------------------------------------
// KV endpoints
// --------------------------------------------------------------------------

func TestSetGetDeleteFlow(t *testing.T) {
	ts := newTestServer(t)

	var setResp common.SetResponse
	status := doJSON(t, http.MethodPost, ts.URL+"/set",
		map[string]any{"key": "a", "value": "1"}, &setResp)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", setResp.Status)
	assert.Equal(t, "a", setResp.Key)

	var getResp common.GetResponse
	status = doJSON(t, http.MethodGet, ts.URL+"/get/a", nil, &getResp)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "a", getResp.Key)
	assert.Equal(t, "1", getResp.Value)

	var delResp common.DeleteResponse
	status = doJSON(t, http.MethodDelete, ts.URL+"/delete/a", nil, &delResp)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "deleted", delResp.Status)

	var errResp common.ErrorResponse
	status = doJSON(t, http.MethodGet, ts.URL+"/get/a", nil, &errResp)
	assert.Equal(t, http.StatusNotFound, status)
	assert.NotEmpty(t, errResp.Error)
}

func TestSetValidation(t *testing.T) {
	ts := newTestServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing key", `{"value":"v"}`},
		{"empty key", `{"key":"","value":"v"}`},
		{"missing value", `{"key":"k"}`},
		{"non-string value", `{"key":"k","value":42}`},
		{"zero ttl", `{"key":"k","value":"v","ttl":0}`},
		{"negative ttl", `{"key":"k","value":"v","ttl":-5}`},
		{"invalid json", `{"key":`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/set", "application/json", strings.NewReader(tc.body))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var errResp common.ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
			assert.NotEmpty(t, errResp.Error)
		})
	}
}

func TestNamespaceQueryPrecedence(t *testing.T) {
	ts := newTestServer(t)

	// the ns query parameter wins over the body namespace
	status := doJSON(t, http.MethodPost, ts.URL+"/set?ns=query",
		map[string]any{"key": "k", "value": "v", "namespace": "body"}, nil)
	require.Equal(t, http.StatusOK, status)

	status = doJSON(t, http.MethodGet, ts.URL+"/get/k?ns=query", nil, nil)
	assert.Equal(t, http.StatusOK, status)

	status = doJSON(t, http.MethodGet, ts.URL+"/get/k?ns=body", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)

	// body namespace applies when no query is given
	status = doJSON(t, http.MethodPost, ts.URL+"/set",
		map[string]any{"key": "k2", "value": "v", "namespace": "body"}, nil)
	require.Equal(t, http.StatusOK, status)

	status = doJSON(t, http.MethodGet, ts.URL+"/get/k2?ns=body", nil, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestNamespaceIsolationOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	setKey(t, ts, "t1", "k", "A")
	setKey(t, ts, "t2", "k", "B")

	var getResp common.GetResponse
	doJSON(t, http.MethodGet, ts.URL+"/get/k?ns=t1", nil, &getResp)
	assert.Equal(t, "A", getResp.Value)

	doJSON(t, http.MethodGet, ts.URL+"/get/k?ns=t2", nil, &getResp)
	assert.Equal(t, "B", getResp.Value)

	// the same key without a namespace is a different entry
	status := doJSON(t, http.MethodGet, ts.URL+"/get/k", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

// --------------------------------------------------------------------------
// Namespace endpoints
// --------------------------------------------------------------------------

func TestNamespaceEndpoints(t *testing.T) {
	ts := newTestServer(t)

	setKey(t, ts, "t1", "a", "1")
	setKey(t, ts, "t1", "b", "2")
	setKey(t, ts, "t2", "c", "3")

	var nsResp common.NamespacesResponse
	status := doJSON(t, http.MethodGet, ts.URL+"/namespaces", nil, &nsResp)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, nsResp.Count)
	assert.ElementsMatch(t, []string{"t1", "t2"}, nsResp.Namespaces)

	var sizeResp common.NamespaceSizeResponse
	status = doJSON(t, http.MethodGet, ts.URL+"/namespaces/t1/keys", nil, &sizeResp)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "t1", sizeResp.Namespace)
	assert.Equal(t, 2, sizeResp.TotalKeys)

	var clearResp common.ClearNamespaceResponse
	status = doJSON(t, http.MethodDelete, ts.URL+"/namespaces/t1", nil, &clearResp)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "cleared", clearResp.Status)
	assert.Equal(t, 2, clearResp.KeysDeleted)

	doJSON(t, http.MethodGet, ts.URL+"/namespaces/t1/keys", nil, &sizeResp)
	assert.Equal(t, 0, sizeResp.TotalKeys)

	doJSON(t, http.MethodGet, ts.URL+"/namespaces", nil, &nsResp)
	assert.Equal(t, []string{"t2"}, nsResp.Namespaces)
}

// --------------------------------------------------------------------------
// Operational endpoints
// --------------------------------------------------------------------------

func TestStatsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	setKey(t, ts, "t1", "k", "v")
	doJSON(t, http.MethodGet, ts.URL+"/get/k?ns=t1", nil, nil)       // hit
	doJSON(t, http.MethodGet, ts.URL+"/get/missing?ns=t1", nil, nil) // miss

	var stats store.Stats
	status := doJSON(t, http.MethodGet, ts.URL+"/stats", nil, &stats)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, stats.TotalKeys)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(1), stats.CacheMisses)
	assert.Equal(t, 1, stats.LogSize)
	assert.Greater(t, stats.UptimeSeconds, 0.0)
	require.Contains(t, stats.Namespaces, "t1")

	// focused snapshot
	status = doJSON(t, http.MethodGet, ts.URL+"/stats?ns=t1", nil, &stats)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "t1", stats.Namespace)
	require.NotNil(t, stats.NamespaceStats)
	assert.Equal(t, int64(1), stats.NamespaceStats.CacheHits)
	assert.Equal(t, 1, stats.NamespaceStats.TotalKeys)
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	setKey(t, ts, "", "a", "1")
	setKey(t, ts, "t1", "b", "2")

	var health common.HealthResponse
	status := doJSON(t, http.MethodGet, ts.URL+"/health", nil, &health)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, 2, health.StoreSize)

	status = doJSON(t, http.MethodGet, ts.URL+"/health?ns=t1", nil, &health)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, health.StoreSize)
	assert.Equal(t, "t1", health.Namespace)
}

func TestCompactEndpoint(t *testing.T) {
	ts := newTestServer(t)

	// rewrite one key a few times so there is something to compact
	for i := 0; i < 5; i++ {
		setKey(t, ts, "", "k", fmt.Sprintf("v%d", i))
	}

	var compactResp common.CompactResponse
	status := doJSON(t, http.MethodPost, ts.URL+"/compact", nil, &compactResp)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "compaction_started", compactResp.Status)

	// compaction runs in the background; the log shrinks to one record
	require.Eventually(t, func() bool {
		var stats store.Stats
		doJSON(t, http.MethodGet, ts.URL+"/stats", nil, &stats)
		return stats.LogSize == 1 && stats.LastCompaction != nil
	}, 2*time.Second, 20*time.Millisecond)

	// reads are unchanged
	var getResp common.GetResponse
	status = doJSON(t, http.MethodGet, ts.URL+"/get/k", nil, &getResp)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "v4", getResp.Value)
}

func TestPerformanceEndpoints(t *testing.T) {
	ts := newTestServer(t)

	setKey(t, ts, "", "k", "v")
	doJSON(t, http.MethodGet, ts.URL+"/get/k", nil, nil)

	var perf map[string]any
	status := doJSON(t, http.MethodGet, ts.URL+"/performance", nil, &perf)
	require.Equal(t, http.StatusOK, status)

	for _, field := range []string{
		"operations_per_second", "avg_latency_ms", "p95_latency_ms",
		"p99_latency_ms", "error_rate", "total_operations",
	} {
		assert.Contains(t, perf, field)
	}
	assert.GreaterOrEqual(t, perf["total_operations"].(float64), 2.0)

	var recentErrors map[string]int64
	status = doJSON(t, http.MethodGet, ts.URL+"/performance/errors", nil, &recentErrors)
	assert.Equal(t, http.StatusOK, status)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	setKey(t, ts, "", "k", "v")

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(data)
	assert.Contains(t, body, "ckv_requests_total")
	assert.Contains(t, body, "ckv_uptime_seconds")
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/set", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
