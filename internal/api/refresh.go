package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/navikt/zagenda/internal/source"
)

// RefreshResponse describes the snapshot produced by a manual refresh
type RefreshResponse struct {
	Fingerprint string    `json:"fingerprint"`
	FetchedAt   time.Time `json:"fetchedAt"`
	Rooms       int       `json:"rooms"`
	AgendaItems int       `json:"agendaItems"`
}

// ErrorResponse is the body of a failed API call
type ErrorResponse struct {
	Error    string `json:"error"`
	Document string `json:"document,omitempty"`
}

// RefreshHandler handles manual schedule refresh requests
type RefreshHandler struct {
	service ScheduleServicer
	logger  *zap.Logger
}

// NewRefreshHandler creates a new refresh handler
func NewRefreshHandler(svc ScheduleServicer, logger *zap.Logger) *RefreshHandler {
	return &RefreshHandler{
		service: svc,
		logger:  logger,
	}
}

// ServeHTTP implements the http.Handler interface
func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// reset=true drops the stored snapshot first, so a failed load leaves nothing cached
	if reset, _ := strconv.ParseBool(r.URL.Query().Get("reset")); reset {
		if err := h.service.Reset(r.Context()); err != nil {
			h.logger.Error("failed to reset schedule snapshot", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to reset schedule"})
			return
		}
	}

	snapshot, err := h.service.Refresh(r.Context())
	if err != nil {
		h.logger.Error("manual refresh failed", zap.Error(err))

		resp := ErrorResponse{Error: "failed to load schedule"}
		var fetchErr *source.FetchError
		if errors.As(err, &fetchErr) {
			resp.Document = fetchErr.Document
		}
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}

	writeJSON(w, http.StatusOK, RefreshResponse{
		Fingerprint: snapshot.Fingerprint,
		FetchedAt:   snapshot.FetchedAt,
		Rooms:       len(snapshot.Schedule.Rooms),
		AgendaItems: len(snapshot.Schedule.Agenda),
	})
}
