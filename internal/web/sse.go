package web

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/r3labs/sse/v2"
	"go.uber.org/zap"

	"github.com/navikt/zagenda/internal/models"
)

// TimelineStream is the SSE stream browsers subscribe to for schedule changes
const TimelineStream = "timeline"

// SSEManager handles server-sent events to clients
type SSEManager struct {
	server    *sse.Server
	logger    *zap.Logger
	closeOnce sync.Once
}

// NewSSEManager creates a new server-sent events manager
func NewSSEManager(logger *zap.Logger) *SSEManager {
	server := sse.New()
	// Clients refetch the whole timeline on any update, so old events are never replayed
	server.AutoReplay = false
	server.AutoStream = false
	server.Headers = map[string]string{
		"X-Accel-Buffering": "no", // Disable nginx proxy buffering
	}
	server.CreateStream(TimelineStream)

	return &SSEManager{
		server: server,
		logger: logger,
	}
}

// ServeHTTP implements the http.Handler interface for SSE connections
func (sm *SSEManager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Set CORS headers to make SSE work in various environments
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

	// Handle CORS preflight
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	req := r.Clone(r.Context())
	query := req.URL.Query()
	if query.Get("stream") == "" {
		query.Set("stream", TimelineStream)
		req.URL.RawQuery = query.Encode()
	}
	// Event ids are not numeric and nothing is replayed
	req.Header.Del("Last-Event-ID")

	sm.logger.Debug("SSE client connected", zap.String("remote_addr", r.RemoteAddr))
	sm.server.ServeHTTP(w, req)
	sm.logger.Debug("SSE client disconnected", zap.String("remote_addr", r.RemoteAddr))
}

// NotifyUpdate publishes an update event carrying the snapshot fingerprint
func (sm *SSEManager) NotifyUpdate(snapshot *models.Snapshot) {
	data := "update"
	if snapshot != nil && snapshot.Fingerprint != "" {
		data = snapshot.Fingerprint
	}

	eventID := uuid.NewString()
	sm.logger.Info("publishing SSE update event",
		zap.String("event_id", eventID),
		zap.String("fingerprint", data),
	)

	sm.server.Publish(TimelineStream, &sse.Event{
		ID:    []byte(eventID),
		Event: []byte("update"),
		Data:  []byte(data),
	})
}

// Shutdown closes the stream and disconnects all clients
func (sm *SSEManager) Shutdown() {
	sm.closeOnce.Do(func() {
		sm.server.Close()
	})
}
