package web

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/navikt/zagenda/internal/calendar"
	"github.com/navikt/zagenda/internal/models"
	"github.com/navikt/zagenda/internal/service"
	"github.com/navikt/zagenda/internal/timeline"
)

//go:embed templates/*.html
var templateFS embed.FS

// DefaultTitle is the page heading when none is configured
const DefaultTitle = "Conference schedule"

// Handler manages web UI requests
type Handler struct {
	scheduleService TimelineServicer
	templates       *template.Template
	sseManager      *SSEManager
	logger          *zap.Logger
	title           string
	calendar        calendar.Options
}

// pageModel is the view model of layout.html
type pageModel struct {
	Title    string
	Timeline timeline.Timeline
	Live     bool
}

// parseTemplates loads the embedded page templates
func parseTemplates() (*template.Template, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"formatTime": formatTime,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return tmpl, nil
}

// NewHandler creates a new web UI handler
func NewHandler(scheduleService TimelineServicer, logger *zap.Logger) (*Handler, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	return &Handler{
		scheduleService: scheduleService,
		templates:       tmpl,
		sseManager:      NewSSEManager(logger),
		logger:          logger,
		title:           DefaultTitle,
		calendar: calendar.Options{
			Name:      DefaultTitle,
			UIDPrefix: "zagenda",
		},
	}, nil
}

// WithCalendar sets the options of the /calendar.ics feed
func (h *Handler) WithCalendar(opts calendar.Options) *Handler {
	h.calendar = opts
	return h
}

// formatTime is a template helper function to format time
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

// SetupRoutes registers web UI routes on the given mux
func (h *Handler) SetupRoutes(mux *http.ServeMux) {
	mux.Handle("/events", h.sseManager)
	mux.HandleFunc("/api/timeline", h.handleTimelineJSON)
	mux.HandleFunc("/calendar.ics", h.handleCalendar)
	mux.HandleFunc("/", h.handleIndex)
}

// handleIndex renders the timeline page
func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	// Only handle the root path
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	tl, ok := h.loadTimeline(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := h.templates.ExecuteTemplate(w, "layout.html", pageModel{
		Title:    h.title,
		Timeline: tl,
		Live:     true,
	})
	if err != nil {
		h.logger.Error("error rendering template", zap.Error(err))
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// handleTimelineJSON returns groups, items and options for the widget
func (h *Handler) handleTimelineJSON(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tl, ok := h.loadTimeline(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	if err := json.NewEncoder(w).Encode(tl); err != nil {
		h.logger.Error("error encoding timeline", zap.Error(err))
	}
}

// handleCalendar serves the schedule as an iCalendar feed
func (h *Handler) handleCalendar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snapshot, err := h.scheduleService.Snapshot(r.Context())
	if err != nil {
		h.writeScheduleError(w, err)
		return
	}

	w.Header().Set("Content-Type", calendar.ContentType)
	w.Header().Set("Content-Disposition", `inline; filename="calendar.ics"`)
	w.Header().Set("Cache-Control", "no-cache")
	if err := calendar.Write(w, snapshot, h.calendar); err != nil {
		h.logger.Error("error writing calendar", zap.Error(err))
	}
}

// loadTimeline fetches the timeline and writes an error response on failure
func (h *Handler) loadTimeline(w http.ResponseWriter, r *http.Request) (timeline.Timeline, bool) {
	tl, err := h.scheduleService.Timeline(r.Context())
	if err == nil {
		return tl, true
	}

	h.writeScheduleError(w, err)
	return timeline.Timeline{}, false
}

// writeScheduleError maps a service error to 503 when nothing is loaded and 500 otherwise
func (h *Handler) writeScheduleError(w http.ResponseWriter, err error) {
	h.logger.Error("error getting schedule", zap.Error(err))
	if errors.Is(err, service.ErrUnavailable) {
		http.Error(w, "Schedule is not available right now", http.StatusServiceUnavailable)
		return
	}
	http.Error(w, "Failed to get schedule", http.StatusInternalServerError)
}

// NotifyScheduleUpdate tells connected browsers to fetch the new timeline
func (h *Handler) NotifyScheduleUpdate(snapshot *models.Snapshot) {
	h.sseManager.NotifyUpdate(snapshot)
}

// Shutdown closes all SSE connections
func (h *Handler) Shutdown() {
	h.sseManager.Shutdown()
}

// Export writes a self-contained timeline page without live updates
func Export(w io.Writer, tl timeline.Timeline, title string) error {
	tmpl, err := parseTemplates()
	if err != nil {
		return err
	}
	if title == "" {
		title = DefaultTitle
	}
	if err := tmpl.ExecuteTemplate(w, "layout.html", pageModel{Title: title, Timeline: tl}); err != nil {
		return fmt.Errorf("failed to render page: %w", err)
	}
	return nil
}
