package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cellar-network/cellar/internal/cellar"
	"github.com/cellar-network/cellar/internal/logger"
	"github.com/cellar-network/cellar/internal/state"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer exposes read-only vault data over HTTP for operators.
type WebServer struct {
	router *mux.Router
	vault  *cellar.Vault
	port   string
}

// NewWebServer creates a new web server instance bound to one vault.
func NewWebServer(vault *cellar.Vault, port string) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		vault:  vault,
		port:   port,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	ws.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/vault/summary", ws.handleGetVaultSummary).Methods("GET")
	api.HandleFunc("/vault/positions", ws.handleGetPositions).Methods("GET")
	api.HandleFunc("/vault/accounts/{account}/events", ws.handleGetAccountEvents).Methods("GET")
	api.HandleFunc("/rebalances", ws.handleGetRebalances).Methods("GET")

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth reports server and database health.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbHealthy := state.TestDBConnection() == nil

	status := "healthy"
	statusCode := http.StatusOK
	if !dbHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    status,
		"vault":     ws.vault.Name(),
		"shutdown":  ws.vault.IsShutdown(),
		"database":  dbHealthy,
		"timestamp": time.Now().UTC(),
	}
	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetVaultSummary returns total assets, share supply and share price.
func (ws *WebServer) handleGetVaultSummary(w http.ResponseWriter, r *http.Request) {
	totalAssets, err := ws.vault.TotalAssets()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to value vault")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to value vault")
		return
	}
	sharePrice, err := ws.vault.SharePrice()
	if err != nil {
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to compute share price")
		return
	}

	response := map[string]interface{}{
		"vault":        ws.vault.Name(),
		"base_asset":   ws.vault.BaseAsset(),
		"total_assets": totalAssets.String(),
		"total_shares": ws.vault.TotalShares().String(),
		"share_price":  sharePrice.String(),
		"shutdown":     ws.vault.IsShutdown(),
		"timestamp":    time.Now().UTC(),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetPositions returns the active position list with live valuations.
func (ws *WebServer) handleGetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := ws.vault.Positions()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to list positions")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to list positions")
		return
	}

	response := map[string]interface{}{
		"positions": positions,
		"count":     len(positions),
		"timestamp": time.Now().UTC(),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetRebalances returns recent rebalance receipts.
func (ws *WebServer) handleGetRebalances(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	rebalances, err := state.GetRecentRebalances(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get rebalances")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve rebalances")
		return
	}

	response := map[string]interface{}{
		"rebalances": rebalances,
		"count":      len(rebalances),
		"timestamp":  time.Now().UTC(),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetAccountEvents returns recent share-ledger events for one account.
func (ws *WebServer) handleGetAccountEvents(w http.ResponseWriter, r *http.Request) {
	account := mux.Vars(r)["account"]
	if account == "" {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Missing account")
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 200 {
			limit = parsedLimit
		}
	}

	events, err := state.GetEventsForAccount(account, limit)
	if err != nil {
		webLogger.Error().Err(err).Str("account", account).Msg("Failed to get events")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve events")
		return
	}

	response := map[string]interface{}{
		"account":   account,
		"events":    events,
		"count":     len(events),
		"timestamp": time.Now().UTC(),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
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
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
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

func (rw *responseWriterWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
