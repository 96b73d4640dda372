package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	httphandlers "artis/internal/interfaces/http"
	"artis/internal/shared/config"
	"artis/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	// Health check and metrics
	mux.HandleFunc("/health", httphandlers.HandleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	// Sheet sync
	mux.HandleFunc("POST /api/sheets/sync/{category}", deps.SyncHandler.HandleSync)
	mux.HandleFunc("GET /api/sheets/pending", deps.SyncHandler.HandlePending)
	mux.HandleFunc("GET /api/sheets/sync-history", deps.SyncHandler.HandleHistory)
	mux.HandleFunc("POST /api/sheets/undo-sync/{id}", deps.SyncHandler.HandleUndo)
	mux.HandleFunc("GET /api/sheets/archives/{type}", deps.SyncHandler.HandleArchives)
	mux.HandleFunc("POST /api/sheets/setup/{type}", deps.SyncHandler.HandleSetup)

	// Inventory ledger
	mux.HandleFunc("/api/inventory/transactions", deps.InventoryHandler.HandleTransactions)
	mux.HandleFunc("POST /api/inventory/products/{id}/recompute", deps.InventoryHandler.HandleRecompute)

	// Apply global middleware
	handler := middleware.Logging(middleware.Telemetry(middleware.CORS(mux)))

	// Apply security middleware when TLS is enabled
	if cfg.TLS.Enabled {
		handler = middleware.HSTS(handler)
		logrus.Info("TLS security middleware enabled (HSTS)")
	}

	return handler
}
