// Package http exposes the correction API plus health, readiness, stats, and
// metrics endpoints.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/address-correction-service/internal/domain"
	"github.com/couchcryptid/address-correction-service/internal/pipeline"
)

// Corrector is the reconciliation pipeline surface the API exposes.
type Corrector interface {
	CorrectOne(ctx context.Context, rec domain.Location) domain.Location
	CorrectBatch(ctx context.Context, records []domain.Location) []domain.Location
	CheckReadiness(ctx context.Context) error
}

// AddressCorrector runs postal-only standardization, without geocoding.
type AddressCorrector interface {
	CorrectAddress(ctx context.Context, in domain.AddressInput) domain.AddressResult
}

// StatsFunc returns a point-in-time snapshot of internal component state
// (cache utilization, breaker states, in-flight dedup entries).
type StatsFunc func() map[string]any

// Server exposes the correction API over HTTP.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer wires all routes. stats may be nil, in which case /statz returns
// an empty object.
func NewServer(addr string, corrector Corrector, addresses AddressCorrector, stats StatsFunc, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("POST /v1/location/correct", s.handleCorrectOne(corrector))
	mux.HandleFunc("POST /v1/locations/correct", s.handleCorrectBatch(corrector))
	mux.HandleFunc("POST /v1/address/correct", s.handleCorrectAddress(addresses))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(corrector))
	mux.HandleFunc("GET /statz", handleStats(stats))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleCorrectOne(corrector Corrector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rec domain.Location
		if err := gojson.NewDecoder(r.Body).Decode(&rec); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, corrector.CorrectOne(r.Context(), rec))
	}
}

func (s *Server) handleCorrectBatch(corrector Corrector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var records []domain.Location
		if err := gojson.NewDecoder(r.Body).Decode(&records); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if len(records) == 0 {
			writeError(w, http.StatusBadRequest, "request must contain at least one location")
			return
		}
		if len(records) > pipeline.MaxBatchSize {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("batch size %d exceeds limit of %d", len(records), pipeline.MaxBatchSize))
			return
		}
		writeJSON(w, http.StatusOK, corrector.CorrectBatch(r.Context(), records))
	}
}

func (s *Server) handleCorrectAddress(addresses AddressCorrector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in domain.AddressInput
		if err := gojson.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, addresses.CorrectAddress(r.Context(), in))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker Corrector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func handleStats(stats StatsFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if stats == nil {
			writeJSON(w, http.StatusOK, map[string]any{})
			return
		}
		writeJSON(w, http.StatusOK, stats())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	gojson.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response write
}
