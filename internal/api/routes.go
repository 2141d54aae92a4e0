package api

import (
	"net/http"

	"go.uber.org/zap"
)

// SetupRoutes configures the HTTP routes for the API
func SetupRoutes(svc ScheduleServicer, logger *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	// Health check endpoints for Kubernetes
	mux.HandleFunc("/health/live", HealthLiveHandler)
	mux.HandleFunc("/health/ready", HealthReadyHandler(svc, logger))

	mux.Handle("/api/refresh", NewRefreshHandler(svc, logger))

	return mux
}
