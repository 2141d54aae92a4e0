// Package api provides the operational HTTP handlers for zagenda
package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Health statuses
const (
	StatusUp   = "UP"
	StatusDown = "DOWN"
)

// HealthResponse represents the response for health check endpoints
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthLiveHandler answers Kubernetes liveness checks
func HealthLiveHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: StatusUp})
}

// HealthReadyHandler reports UP once a schedule snapshot is available
func HealthReadyHandler(svc ScheduleServicer, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !svc.Ready(r.Context()) {
			logger.Debug("not ready: no schedule snapshot")
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: StatusDown})
			return
		}
		writeJSON(w, http.StatusOK, HealthResponse{Status: StatusUp})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
