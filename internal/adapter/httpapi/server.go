// Package httpapi exposes the engine's read-only query interface for the
// dashboard front-end, a minimal admin surface over the recipient registry,
// and the usual health/readiness/metrics endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ancjainil/Crisis-management/internal/domain"
	"github.com/ancjainil/Crisis-management/internal/index"
	"github.com/ancjainil/Crisis-management/internal/ledger"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// SpatialReader answers the read-only spatial queries. All methods are
// snapshot reads, safe to poll at any cadence.
type SpatialReader interface {
	ActiveHazards() []domain.HazardEvent
	ActiveResources() []domain.ResourceAsset
	ComputeGrid(b index.Bounds, cellSizeM float64) (map[index.CellKey]float64, error)
}

// DispatchSummary exposes ledger state counts for operational review.
type DispatchSummary interface {
	CountByState(ctx context.Context) (map[ledger.State]int, error)
}

// RecipientAdmin is the registry's CRUD surface.
type RecipientAdmin interface {
	Register(rec domain.Recipient) error
	Unregister(id string)
	PutTemplate(t domain.AlertTemplate) error
}

// Server exposes the engine over HTTP.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates the HTTP server and wires all routes.
func NewServer(
	addr string,
	ready ReadinessChecker,
	spatial SpatialReader,
	dispatches DispatchSummary,
	admin RecipientAdmin,
	logger *slog.Logger,
) *Server {
	r := mux.NewRouter()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", handleReady(ready)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/hazards", handleHazards(spatial)).Methods(http.MethodGet)
	api.HandleFunc("/resources", handleResources(spatial)).Methods(http.MethodGet)
	api.HandleFunc("/heatmap", handleHeatmap(spatial)).Methods(http.MethodGet)
	api.HandleFunc("/dispatches/summary", handleDispatchSummary(dispatches)).Methods(http.MethodGet)
	api.HandleFunc("/recipients", handleRegisterRecipient(admin)).Methods(http.MethodPost)
	api.HandleFunc("/recipients/{id}", handleUnregisterRecipient(admin)).Methods(http.MethodDelete)
	api.HandleFunc("/templates", handlePutTemplate(admin)).Methods(http.MethodPost)

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

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
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

func handleHazards(spatial SpatialReader) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"hazards": spatial.ActiveHazards()})
	}
}

func handleResources(spatial SpatialReader) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"resources": spatial.ActiveResources()})
	}
}

func handleHeatmap(spatial SpatialReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		b := index.Bounds{}
		var err error
		if b.MinLat, err = parseFloatParam(q.Get("min_lat")); err != nil {
			writeError(w, http.StatusBadRequest, "invalid min_lat")
			return
		}
		if b.MinLon, err = parseFloatParam(q.Get("min_lon")); err != nil {
			writeError(w, http.StatusBadRequest, "invalid min_lon")
			return
		}
		if b.MaxLat, err = parseFloatParam(q.Get("max_lat")); err != nil {
			writeError(w, http.StatusBadRequest, "invalid max_lat")
			return
		}
		if b.MaxLon, err = parseFloatParam(q.Get("max_lon")); err != nil {
			writeError(w, http.StatusBadRequest, "invalid max_lon")
			return
		}
		cellSize, err := parseFloatParam(q.Get("cell_size"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid cell_size")
			return
		}

		grid, err := spatial.ComputeGrid(b, cellSize)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidGeometry) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "heatmap computation failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"cells": grid})
	}
}

func handleDispatchSummary(dispatches DispatchSummary) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := dispatches.CountByState(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "ledger query failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"states": counts})
	}
}

func handleRegisterRecipient(admin RecipientAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rec domain.Recipient
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			writeError(w, http.StatusBadRequest, "invalid recipient payload")
			return
		}
		if err := admin.Register(rec); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": rec.ID})
	}
}

func handleUnregisterRecipient(admin RecipientAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin.Unregister(mux.Vars(r)["id"])
		w.WriteHeader(http.StatusNoContent)
	}
}

func handlePutTemplate(admin RecipientAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var t domain.AlertTemplate
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			writeError(w, http.StatusBadRequest, "invalid template payload")
			return
		}
		if err := admin.PutTemplate(t); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": t.ID})
	}
}

func parseFloatParam(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
