package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rainman456/Dllm-Demo-Saros/internal/logger"
	"github.com/rainman456/Dllm-Demo-Saros/internal/scheduler"
	"github.com/rainman456/Dllm-Demo-Saros/internal/types"
)

// EventReader serves the event log.
type EventReader interface {
	RecentEvents(ctx context.Context, limit int) ([]types.RebalanceEvent, error)
	DailySummary(ctx context.Context) (types.EventSummary, error)
	Ping(ctx context.Context) error
}

// SubscriptionManager is the part of the scheduler the API drives.
type SubscriptionManager interface {
	SubscribeWithInterval(wallet, poolFilter string, interval time.Duration) (scheduler.Handle, error)
	Unsubscribe(handle scheduler.Handle) error
	Subscriptions() []scheduler.SubscriptionStatus
}

// StopLossRegistry is the part of the stop-loss monitor the API drives.
type StopLossRegistry interface {
	SetStopLoss(ctx context.Context, positionID string, cfg types.StopLossConfig) error
	GetStopLoss(positionID string) (types.StopLossConfig, bool)
	ClearStopLoss(ctx context.Context, positionID string) error
}

// StakingRegistry holds the per-position staking configs.
type StakingRegistry interface {
	SetConfig(positionID string, cfg types.StakingConfig) error
	Config(positionID string) (types.StakingConfig, bool)
}

// VolatilityReporter serves per-pool volatility history.
type VolatilityReporter interface {
	Report(pool string) (types.VolatilityReport, bool)
	Pools() []string
}

// Config holds the dependencies of the web server.
type Config struct {
	Port              string
	Events            EventReader
	Subscriptions     SubscriptionManager
	StopLoss          StopLossRegistry
	Staking           StakingRegistry
	Volatility        VolatilityReporter
	DashboardInterval time.Duration // polling interval for subscriptions created over the API
}

// WebServer exposes the rebalancer's state and controls over HTTP.
type WebServer struct {
	logger  zerolog.Logger
	router  *mux.Router
	cfg     Config
	started time.Time
	server  *http.Server
}

// NewWebServer creates a new web server instance.
func NewWebServer(cfg Config) *WebServer {
	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	ws := &WebServer{
		logger:  logger.GetForComponent("web_server"),
		router:  mux.NewRouter(),
		cfg:     cfg,
		started: time.Now(),
	}
	ws.setupRoutes()
	ws.server = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return ws
}

// Handler returns the routed handler with middleware applied.
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	ws.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/events", ws.handleGetEvents).Methods("GET")
	api.HandleFunc("/summary", ws.handleGetSummary).Methods("GET")
	api.HandleFunc("/subscriptions", ws.handleListSubscriptions).Methods("GET")
	api.HandleFunc("/subscriptions", ws.handleCreateSubscription).Methods("POST")
	api.HandleFunc("/subscriptions/{id}", ws.handleDeleteSubscription).Methods("DELETE")
	api.HandleFunc("/positions/{positionId}/stop-loss", ws.handleGetStopLoss).Methods("GET")
	api.HandleFunc("/positions/{positionId}/stop-loss", ws.handlePutStopLoss).Methods("PUT")
	api.HandleFunc("/positions/{positionId}/stop-loss", ws.handleDeleteStopLoss).Methods("DELETE")
	api.HandleFunc("/positions/{positionId}/staking", ws.handleGetStaking).Methods("GET")
	api.HandleFunc("/positions/{positionId}/staking", ws.handlePutStaking).Methods("PUT")
	api.HandleFunc("/volatility", ws.handleListVolatility).Methods("GET")
	api.HandleFunc("/volatility/{pool}", ws.handleGetVolatility).Methods("GET")

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start serves until Shutdown is called. It returns nil after a clean shutdown.
func (ws *WebServer) Start() error {
	ws.logger.Info().Str("port", ws.cfg.Port).Msg("Starting web server")

	if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (ws *WebServer) Shutdown(ctx context.Context) error {
	return ws.server.Shutdown(ctx)
}

// handleHealth reports process and store health.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	storeHealthy := true
	if ws.cfg.Events != nil {
		if err := ws.cfg.Events.Ping(r.Context()); err != nil {
			ws.logger.Warn().Err(err).Msg("Event store ping failed")
			storeHealthy = false
		}
	}

	var subs []scheduler.SubscriptionStatus
	if ws.cfg.Subscriptions != nil {
		subs = ws.cfg.Subscriptions.Subscriptions()
	}
	failing := 0
	for _, s := range subs {
		if s.LastError != "" {
			failing++
		}
	}

	status, code := "OK", http.StatusOK
	if !storeHealthy {
		status, code = "DEGRADED", http.StatusServiceUnavailable
	}

	ws.writeJSONResponse(w, code, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"gc_cycles":        memStats.NumGC,
			"uptime_seconds":   int64(time.Since(ws.started).Seconds()),
		},
		"rebalancer": map[string]interface{}{
			"store_healthy":         storeHealthy,
			"subscriptions":         len(subs),
			"failing_subscriptions": failing,
		},
	})
}

// handleGetEvents returns the newest events.
func (ws *WebServer) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			ws.writeErrorResponse(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	events, err := ws.cfg.Events.RecentEvents(r.Context(), limit)
	if err != nil {
		ws.logger.Error().Err(err).Msg("Failed to get recent events")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve events")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

// handleGetSummary returns event counts by type over the last day.
func (ws *WebServer) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := ws.cfg.Events.DailySummary(r.Context())
	if err != nil {
		ws.logger.Error().Err(err).Msg("Failed to get daily summary")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve summary")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, summary)
}

func (ws *WebServer) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs := ws.cfg.Subscriptions.Subscriptions()
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"subscriptions": subs,
		"count":         len(subs),
	})
}

type subscriptionRequest struct {
	Wallet string `json:"wallet"`
	Pool   string `json:"pool"`
}

func (ws *WebServer) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	handle, err := ws.cfg.Subscriptions.SubscribeWithInterval(req.Wallet, req.Pool, ws.cfg.DashboardInterval)
	if err != nil {
		ws.writeDomainError(w, err)
		return
	}

	ws.writeJSONResponse(w, http.StatusCreated, map[string]interface{}{
		"id":  handle,
		"key": scheduler.Key{Wallet: req.Wallet, Pool: req.Pool},
	})
}

func (ws *WebServer) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := ws.cfg.Subscriptions.Unsubscribe(scheduler.Handle(id)); err != nil {
		ws.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (ws *WebServer) handleGetStopLoss(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["positionId"]
	cfg, ok := ws.cfg.StopLoss.GetStopLoss(id)
	if !ok {
		ws.writeErrorResponse(w, http.StatusNotFound, "No stop-loss configured for position")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, cfg)
}

func (ws *WebServer) handlePutStopLoss(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["positionId"]

	var cfg types.StopLossConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if token, err := types.ParseTargetToken(string(cfg.TargetToken)); err == nil {
		cfg.TargetToken = token
	}

	if err := ws.cfg.StopLoss.SetStopLoss(r.Context(), id, cfg); err != nil {
		ws.writeDomainError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, cfg)
}

func (ws *WebServer) handleDeleteStopLoss(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["positionId"]
	if err := ws.cfg.StopLoss.ClearStopLoss(r.Context(), id); err != nil {
		ws.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (ws *WebServer) handleGetStaking(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["positionId"]
	cfg, ok := ws.cfg.Staking.Config(id)
	if !ok {
		ws.writeErrorResponse(w, http.StatusNotFound, "No staking config for position")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, cfg)
}

func (ws *WebServer) handlePutStaking(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["positionId"]

	var cfg types.StakingConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := ws.cfg.Staking.SetConfig(id, cfg); err != nil {
		ws.writeDomainError(w, err)
		return
	}
	stored, _ := ws.cfg.Staking.Config(id)
	ws.writeJSONResponse(w, http.StatusOK, stored)
}

func (ws *WebServer) handleListVolatility(w http.ResponseWriter, r *http.Request) {
	pools := ws.cfg.Volatility.Pools()
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"pools": pools,
		"count": len(pools),
	})
}

func (ws *WebServer) handleGetVolatility(w http.ResponseWriter, r *http.Request) {
	pool := mux.Vars(r)["pool"]
	report, ok := ws.cfg.Volatility.Report(pool)
	if !ok {
		ws.writeErrorResponse(w, http.StatusNotFound, "No volatility history for pool")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, report)
}

// writeDomainError maps sentinel errors onto status codes.
func (ws *WebServer) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, types.ErrInvalidInput):
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, scheduler.ErrUnknownSubscription):
		ws.writeErrorResponse(w, http.StatusNotFound, err.Error())
	case errors.Is(err, scheduler.ErrClosed):
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, err.Error())
	default:
		ws.logger.Error().Err(err).Msg("Request failed")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Internal error")
	}
}

// writeJSONResponse writes a JSON response.
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		ws.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response.
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	ws.writeJSONResponse(w, statusCode, map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}

// corsMiddleware adds CORS headers.
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests.
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		ws.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper captures the status code.
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
