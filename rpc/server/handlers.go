package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ValentinKolb/cKV/rpc/common"
)

// resolveNamespace applies the namespace precedence rule: the query
// parameter wins over the body field; the default (empty) namespace is
// used when neither is given.
func resolveNamespace(r *http.Request, bodyNamespace string) string {
	if ns := r.URL.Query().Get("ns"); ns != "" {
		return ns
	}
	return bodyNamespace
}

// handleSet stores a key-value pair with optional TTL and namespace.
func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	var req common.SetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.Key == "" {
		s.writeError(w, http.StatusBadRequest, "key must not be empty")
		return
	}
	if req.Value == nil {
		s.writeError(w, http.StatusBadRequest, "value must be a string")
		return
	}

	var ttl int64
	if req.TTL != nil {
		if *req.TTL <= 0 {
			s.writeError(w, http.StatusBadRequest, "ttl must be a positive integer")
			return
		}
		ttl = *req.TTL
	}

	ns := resolveNamespace(r, req.Namespace)

	if err := s.store.Set(ns, req.Key, *req.Value, ttl); err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, common.SetResponse{
		Status:    "ok",
		Key:       req.Key,
		Namespace: ns,
	})
}

// handleGet retrieves a value by key.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	ns := resolveNamespace(r, "")

	value, found, err := s.store.Get(ns, key)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if !found {
		s.writeError(w, http.StatusNotFound, "key not found")
		return
	}

	s.writeJSON(w, http.StatusOK, common.GetResponse{
		Key:       key,
		Value:     value,
		Namespace: ns,
	})
}

// handleDelete removes a key.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	ns := resolveNamespace(r, "")

	deleted, err := s.store.Delete(ns, key)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if !deleted {
		s.writeError(w, http.StatusNotFound, "key not found")
		return
	}

	s.writeJSON(w, http.StatusOK, common.DeleteResponse{
		Status:    "deleted",
		Key:       key,
		Namespace: ns,
	})
}

// handleNamespaces lists all namespaces holding at least one live entry.
func (s *Server) handleNamespaces(w http.ResponseWriter, _ *http.Request) {
	namespaces, err := s.store.ListNamespaces()
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, common.NamespacesResponse{
		Namespaces: namespaces,
		Count:      len(namespaces),
	})
}

// handleNamespaceSize reports the key count of one namespace.
func (s *Server) handleNamespaceSize(w http.ResponseWriter, r *http.Request) {
	ns := r.PathValue("ns")

	size, err := s.store.NamespaceSize(ns)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, common.NamespaceSizeResponse{
		Namespace: ns,
		TotalKeys: size,
	})
}

// handleClearNamespace removes every key in a namespace.
func (s *Server) handleClearNamespace(w http.ResponseWriter, r *http.Request) {
	ns := r.PathValue("ns")

	removed, err := s.store.ClearNamespace(ns)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, common.ClearNamespaceResponse{
		Status:      "cleared",
		Namespace:   ns,
		KeysDeleted: removed,
	})
}

// handleStats returns the store's counters, optionally focused on one
// namespace.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.URL.Query().Get("ns"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, stats)
}

// handleHealth reports liveness and the current store size.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := common.HealthResponse{Status: "healthy"}

	if ns := r.URL.Query().Get("ns"); ns != "" {
		size, err := s.store.NamespaceSize(ns)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		resp.StoreSize = size
		resp.Namespace = ns
	} else {
		stats, err := s.store.Stats("")
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		resp.StoreSize = stats.TotalKeys
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// handleCompact triggers a log compaction in the background.
func (s *Server) handleCompact(w http.ResponseWriter, _ *http.Request) {
	go func() {
		if err := s.store.Compact(); err != nil {
			s.logger.Error("manual compaction failed", zap.Error(err))
		}
	}()

	s.writeJSON(w, http.StatusOK, common.CompactResponse{Status: "compaction_started"})
}

// handlePerformance returns the aggregated latency and throughput metrics.
func (s *Server) handlePerformance(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.perf.Summary())
}

// handlePerformanceErrors returns the per-operation error counts.
func (s *Server) handlePerformanceErrors(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.perf.RecentErrors())
}
