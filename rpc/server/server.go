package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ValentinKolb/cKV/lib/store"
	"github.com/ValentinKolb/cKV/lib/telemetry"
	"github.com/ValentinKolb/cKV/rpc/common"
)

// --------------------------------------------------------------------------
// Server
// --------------------------------------------------------------------------

// Server is the HTTP adapter in front of a store.IStore. It owns the
// routing table, the instrumentation middleware, and the listener
// lifecycle; all storage semantics live in the store.
type Server struct {
	config common.ServerConfig
	store  store.IStore
	logger *zap.Logger
	perf   *telemetry.PerfMonitor
	srv    *http.Server
}

// NewAPIServer creates a new HTTP API server for the given store.
//
// Usage:
//
//	s := server.NewAPIServer(config, st, logger)
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewAPIServer(config common.ServerConfig, st store.IStore, logger *zap.Logger) *Server {
	return &Server{
		config: config,
		store:  st,
		logger: logger,
		perf:   telemetry.NewPerfMonitor(),
	}
}

// Routes builds the request multiplexer with all endpoints mounted.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /set", s.instrument("set", s.handleSet))
	mux.HandleFunc("GET /get/{key}", s.instrument("get", s.handleGet))
	mux.HandleFunc("DELETE /delete/{key}", s.instrument("delete", s.handleDelete))

	mux.HandleFunc("GET /namespaces", s.instrument("namespaces", s.handleNamespaces))
	mux.HandleFunc("GET /namespaces/{ns}/keys", s.instrument("namespace_size", s.handleNamespaceSize))
	mux.HandleFunc("DELETE /namespaces/{ns}", s.instrument("clear_namespace", s.handleClearNamespace))

	mux.HandleFunc("GET /stats", s.instrument("stats", s.handleStats))
	mux.HandleFunc("GET /health", s.instrument("health", s.handleHealth))
	mux.HandleFunc("POST /compact", s.instrument("compact", s.handleCompact))

	mux.HandleFunc("GET /performance", s.instrument("performance", s.handlePerformance))
	mux.HandleFunc("GET /performance/errors", s.instrument("performance_errors", s.handlePerformanceErrors))

	mux.Handle("GET /metrics", telemetry.MetricsHandler())

	return corsMiddleware(mux)
}

// Serve starts the HTTP server and blocks until it is shut down.
func (s *Server) Serve() error {
	s.srv = &http.Server{
		Addr:    s.config.Endpoint,
		Handler: s.Routes(),
	}

	s.logger.Info("starting HTTP server", zap.String("endpoint", s.config.Endpoint))

	if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// --------------------------------------------------------------------------
// Middleware
// --------------------------------------------------------------------------

// responseWriter is a custom ResponseWriter that captures the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// instrument wraps a handler with latency and request-count recording
// under the provided operation label, plus debug-level access logging.
func (s *Server) instrument(op string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create custom response writer to capture status code
		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		// Process request
		next(rw, r)

		// Record the request
		duration := time.Since(start)
		telemetry.CountRequest(op, rw.statusCode)
		s.perf.Observe(op, duration, rw.statusCode < http.StatusInternalServerError)

		s.logger.Debug("handled request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rw.statusCode),
			zap.Duration("took", duration))
	}
}

// corsMiddleware allows browser clients from any origin to reach the API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// --------------------------------------------------------------------------
// Response Helpers
// --------------------------------------------------------------------------

// writeJSON marshals a response body with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("writing response body", zap.Error(err))
	}
}

// writeError writes a structured error body.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, common.ErrorResponse{Error: msg})
}

// writeStoreError maps a typed store error onto an HTTP status. Validation
// failures are the client's fault; everything else is a server-side
// failure.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	var storeErr *store.Error
	if errors.As(err, &storeErr) && storeErr.Code == store.RetCValidation {
		s.writeError(w, http.StatusBadRequest, storeErr.Msg)
		return
	}

	s.logger.Error("store operation failed", zap.Error(err))
	s.writeError(w, http.StatusInternalServerError, err.Error())
}
