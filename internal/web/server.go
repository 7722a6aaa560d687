/*

This file contains the HTTP API server for the scoring engine. It exposes the
compute/refresh operations, on-chain read-back, snapshot history and the
Prometheus metrics endpoint.

*/

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

	"github.com/openscore/engine/internal/chain"
	"github.com/openscore/engine/internal/engine"
	"github.com/openscore/engine/internal/extractor"
	"github.com/openscore/engine/internal/gateway"
	"github.com/openscore/engine/internal/logger"
	"github.com/openscore/engine/internal/types"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer handles HTTP requests for score computation and read-back.
type WebServer struct {
	router          *mux.Router
	port            string
	engine          *engine.Engine
	contractAddress string
	httpServer      *http.Server
}

// NewWebServer creates a new web server instance.
func NewWebServer(port string, eng *engine.Engine, contractAddress string) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:          mux.NewRouter(),
		port:            port,
		engine:          eng,
		contractAddress: contractAddress,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// Prometheus metrics
	ws.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/score/compute", ws.handleComputeScore).Methods("POST")
	api.HandleFunc("/score/refresh", ws.handleRefreshScore).Methods("POST")
	api.HandleFunc("/score/read", ws.handleReadScore).Methods("POST")
	api.HandleFunc("/score/history/{address}", ws.handleScoreHistory).Methods("GET")
	api.HandleFunc("/consumer", ws.handleConsumerInfo).Methods("GET")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server and blocks until it exits.
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	ws.httpServer = &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // Refresh waits for on-chain confirmation.
		IdleTimeout:  60 * time.Second,
	}

	return ws.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the web server.
func (ws *WebServer) Shutdown(ctx context.Context) error {
	if ws.httpServer == nil {
		return nil
	}
	return ws.httpServer.Shutdown(ctx)
}

type addressRequest struct {
	Address string `json:"address"`
}

func (ws *WebServer) decodeAddressRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req addressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Request body must be JSON with an 'address' field")
		return "", false
	}
	if req.Address == "" {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Address is required")
		return "", false
	}
	return req.Address, true
}

// handleComputeScore runs the off-chain scoring pipeline without publishing.
func (ws *WebServer) handleComputeScore(w http.ResponseWriter, r *http.Request) {
	address, ok := ws.decodeAddressRequest(w, r)
	if !ok {
		return
	}

	result, err := ws.engine.ComputeScore(r.Context(), address)
	if err != nil {
		ws.writeScoringError(w, err, "Unable to compute score")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, result)
}

// handleRefreshScore computes a fresh score and publishes it on-chain.
func (ws *WebServer) handleRefreshScore(w http.ResponseWriter, r *http.Request) {
	address, ok := ws.decodeAddressRequest(w, r)
	if !ok {
		return
	}

	result, receipt, err := ws.engine.RefreshScore(r.Context(), address)
	if err != nil {
		ws.writeScoringError(w, err, "Unable to refresh score")
		return
	}

	response := map[string]interface{}{
		"result":  result,
		"receipt": receipt,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleReadScore reads the published score state straight from the consumer
// contract, bypassing extraction entirely.
func (ws *WebServer) handleReadScore(w http.ResponseWriter, r *http.Request) {
	address, ok := ws.decodeAddressRequest(w, r)
	if !ok {
		return
	}

	published, err := ws.engine.ReadPublishedScore(r.Context(), address)
	if err != nil {
		ws.writeScoringError(w, err, "Unable to read published score")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, published)
}

// handleScoreHistory returns persisted snapshots for an address, newest first.
func (ws *WebServer) handleScoreHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	address := vars["address"]

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	snapshots, err := ws.engine.ScoreHistory(address, limit)
	if err != nil {
		ws.writeScoringError(w, err, "Unable to retrieve score history")
		return
	}

	response := map[string]interface{}{
		"snapshots": snapshots,
		"count":     len(snapshots),
		"limit":     limit,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleConsumerInfo returns the consumer contract address and its authorized
// updater.
func (ws *WebServer) handleConsumerInfo(w http.ResponseWriter, r *http.Request) {
	updater, err := ws.engine.AuthorizedUpdater(r.Context())
	if err != nil {
		ws.writeScoringError(w, err, "Unable to read consumer contract")
		return
	}

	owner, err := ws.engine.ContractOwner(r.Context())
	if err != nil {
		ws.writeScoringError(w, err, "Unable to read consumer contract")
		return
	}

	response := map[string]interface{}{
		"contract_address": ws.contractAddress,
		"updater":          updater,
		"owner":            owner,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleHealth returns server health status.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	response := map[string]interface{}{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "openscore-scoring-engine",
			"version": "1.0.0",
		},
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// writeScoringError maps pipeline errors to HTTP status codes. A failed
// computation never returns a partial score, only the specific reason.
func (ws *WebServer) writeScoringError(w http.ResponseWriter, err error, message string) {
	statusCode := http.StatusInternalServerError

	switch {
	case errors.Is(err, types.ErrInvalidAddress):
		statusCode = http.StatusBadRequest
	case errors.Is(err, chain.ErrAuthorizationMismatch):
		statusCode = http.StatusForbidden
	case errors.Is(err, chain.ErrSimulationReverted):
		statusCode = http.StatusUnprocessableEntity
	case errors.Is(err, chain.ErrConfirmationTimeout):
		statusCode = http.StatusGatewayTimeout
	case errors.Is(err, gateway.ErrGatewayUnavailable),
		errors.Is(err, gateway.ErrGatewayResponseInvalid),
		errors.Is(err, extractor.ErrExtractionFailed),
		errors.Is(err, chain.ErrSubmissionFailed):
		statusCode = http.StatusBadGateway
	case errors.Is(err, engine.ErrPublishingDisabled),
		errors.Is(err, engine.ErrReaderDisabled):
		statusCode = http.StatusServiceUnavailable
	}

	webLogger.Error().Err(err).Int("status", statusCode).Msg(message)

	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"reason":    err.Error(),
		"timestamp": time.Now().UTC(),
	}
	ws.writeJSONResponse(w, statusCode, response)
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
