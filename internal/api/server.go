// Package api exposes the monitoring state over HTTP: configured checks and
// their latest results, stored history, SLA reports and violations, metrics,
// and a channel test hook. Everything is read-only except the channel test.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/opsvigil/vigil/internal/metrics"
	"github.com/opsvigil/vigil/internal/notify"
	"github.com/opsvigil/vigil/internal/orchestrator"
	"github.com/opsvigil/vigil/internal/sla"
	"github.com/opsvigil/vigil/internal/storage"
)

// Server is the HTTP API server
type Server struct {
	engine     *orchestrator.Engine
	aggregator *metrics.Aggregator
	evaluator  *sla.Evaluator
	notifier   *notify.Router
	history    storage.HistoryStore
	logger     zerolog.Logger
	server     *http.Server
}

// NewServer creates a new API server
func NewServer(engine *orchestrator.Engine, aggregator *metrics.Aggregator, evaluator *sla.Evaluator, notifier *notify.Router, addr string, logger zerolog.Logger) *Server {
	s := &Server{
		engine:     engine,
		aggregator: aggregator,
		evaluator:  evaluator,
		notifier:   notifier,
		logger:     logger.With().Str("component", "api").Logger(),
	}

	r := chi.NewRouter()
	r.Use(s.loggingMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.prometheusHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/checks", s.handleChecks)
		r.Get("/results", s.handleResults)
		r.Get("/sla", s.handleSLA)
		r.Get("/sla/violations", s.handleViolations)
		r.Get("/metrics", s.handleMetrics)
		r.Post("/channels/test", s.handleChannelTest)
	})

	s.server = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// SetHistoryStore wires the optional history backend used by /v1/results
func (s *Server) SetHistoryStore(store storage.HistoryStore) {
	s.history = store
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("starting api server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down api server")
	return s.server.Shutdown(ctx)
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleReady handles GET /readyz
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := s.engine.Checks()
	cacheSize := s.engine.Cache().Size()

	ready := len(checks) > 0
	reasons := []string{}

	if len(checks) == 0 {
		reasons = append(reasons, "no checks configured")
	}

	if cacheSize == 0 {
		reasons = append(reasons, "no results cached yet")
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, ReadyResponse{
		Ready:        ready,
		ChecksLoaded: len(checks),
		Reasons:      reasons,
	})
}

// handleChecks handles GET /v1/checks
func (s *Server) handleChecks(w http.ResponseWriter, r *http.Request) {
	checks := s.engine.Checks()
	cache := s.engine.Cache()

	views := make([]CheckView, 0, len(checks))
	for _, def := range checks {
		view := CheckView{
			Name:    def.Name,
			Type:    def.Type,
			Enabled: def.IsEnabled(),
			Tags:    def.Tags,
		}
		if result, ok := cache.Get(def.Name); ok {
			view.LastResult = &result
		}
		views = append(views, view)
	}

	respondJSON(w, http.StatusOK, ChecksResponse{Checks: views, Total: len(views)})
}

// handleResults handles GET /v1/results
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		respondError(w, http.StatusServiceUnavailable, "history store not configured")
		return
	}

	query := r.URL.Query()
	filter := storage.ResultFilter{
		CheckName: query.Get("check"),
		Status:    query.Get("status"),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	if startTimeStr := query.Get("startTime"); startTimeStr != "" {
		if startTime, err := time.Parse(time.RFC3339, startTimeStr); err == nil {
			filter.StartTime = &startTime
		}
	}

	if endTimeStr := query.Get("endTime"); endTimeStr != "" {
		if endTime, err := time.Parse(time.RFC3339, endTimeStr); err == nil {
			filter.EndTime = &endTime
		}
	}

	results, err := s.history.QueryResults(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to query results: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, ResultsResponse{Results: results, Total: len(results)})
}

// handleSLA handles GET /v1/sla
func (s *Server) handleSLA(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, SLAResponse{Reports: s.evaluator.Reports()})
}

// handleViolations handles GET /v1/sla/violations
func (s *Server) handleViolations(w http.ResponseWriter, r *http.Request) {
	openOnly := r.URL.Query().Get("open") == "true"
	violations := s.evaluator.Violations(openOnly)
	respondJSON(w, http.StatusOK, ViolationsResponse{Violations: violations, Total: len(violations)})
}

// handleMetrics handles GET /v1/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, MetricsResponse{
		Summary:  s.aggregator.Summary(),
		Counters: s.aggregator.Snapshot(),
	})
}

// handleChannelTest handles POST /v1/channels/test
func (s *Server) handleChannelTest(w http.ResponseWriter, r *http.Request) {
	var req ChannelTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	if req.Channel == "" {
		respondError(w, http.StatusBadRequest, "channel required")
		return
	}

	known := false
	for _, ch := range s.notifier.Channels() {
		if ch.Name == req.Channel {
			known = true
			break
		}
	}
	if !known {
		respondError(w, http.StatusNotFound, fmt.Sprintf("channel not found: %s", req.Channel))
		return
	}

	resp := ChannelTestResponse{Channel: req.Channel, OK: true}
	if err := s.notifier.TestChannel(r.Context(), req.Channel); err != nil {
		resp.OK = false
		resp.Error = err.Error()
	}

	respondJSON(w, http.StatusOK, resp)
}

// prometheusHandler serves the counter snapshot in Prometheus exposition
// format from a private registry
func (s *Server) prometheusHandler() http.HandlerFunc {
	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.NewExporter(s.aggregator))
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}).ServeHTTP
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request handled")
	})
}
