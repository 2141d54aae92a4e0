package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/navikt/zagenda/internal/api"
	"github.com/navikt/zagenda/internal/config"
	"github.com/navikt/zagenda/internal/models"
	"github.com/navikt/zagenda/internal/repository/memory"
	"github.com/navikt/zagenda/internal/service"
	"github.com/navikt/zagenda/internal/source"
)

const scheduleV1 = `{
	"rooms": {
		"2": {"name": " Main Hall ", "capacity": 500},
		"10": {"name": "Workshop B", "capacity": "30"}
	},
	"agenda": {
		"1": {"roomId": 2, "title": "Keynote", "start": 1000, "end": 2000, "mainFocus": "AI",
			"speaker": {"name": "Ada", "company": "Engines Ltd"}},
		"2": {"roomId": "10", "title": "   ", "start": 3000, "end": 4000},
		"3": {"roomId": "10", "title": "Hands-on", "start": 5000, "end": 6000,
			"coSpeaker": [{"name": "Grace"}]},
	},
	"mainFocuses": {"AI": "Artificial Intelligence"}
}`

const scheduleV2 = `{
	"rooms": {"2": {"name": "Main Hall", "capacity": 500}},
	"agenda": {"9": {"roomId": 2, "title": "Closing", "start": 7000, "end": 8000}},
	"mainFocuses": {}
}`

// scheduleMalformed mixes well-formed entries with wrong-typed fields
const scheduleMalformed = `{
	"rooms": {"2": {"name": "Main Hall", "capacity": 500}, "3": "not a room"},
	"agenda": {
		"1": {"roomId": 2, "title": "Keynote", "start": 1000.9, "end": "2000", "mainFocus": 7,
			"speaker": "", "coSpeaker": [{"name": "Grace"}, "Linus", 42]},
		"2": {"roomId": 2, "title": "Broken speaker", "start": 3000, "end": 4000,
			"speaker": {"name": "Ada"}, "coSpeaker": {"name": "Alan"}},
		"3": "not an item"
	},
	"mainFocuses": {"7": "Numbered stream", "AI": ["not", "a", "name"]}
}`

const mixinDoc = `{"streams": {"AI": {"icon": "🤖"}}}`

// documentServer serves the schedule and mixin documents and can be switched
// between versions or made to fail
type documentServer struct {
	mu       sync.RWMutex
	schedule string
	mixin    string
	failing  bool
	server   *httptest.Server
}

func newDocumentServer(t *testing.T) *documentServer {
	ds := &documentServer{schedule: scheduleV1, mixin: mixinDoc}
	mux := http.NewServeMux()
	mux.HandleFunc("/data.json", func(w http.ResponseWriter, r *http.Request) {
		ds.write(w, func() string { return ds.schedule })
	})
	mux.HandleFunc("/mixin.json", func(w http.ResponseWriter, r *http.Request) {
		ds.write(w, func() string { return ds.mixin })
	})
	ds.server = httptest.NewServer(mux)
	t.Cleanup(ds.server.Close)
	return ds
}

func (ds *documentServer) write(w http.ResponseWriter, body func() string) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	if ds.failing {
		http.Error(w, "gone", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body())
}

func (ds *documentServer) setSchedule(doc string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.schedule = doc
}

func (ds *documentServer) setFailing(failing bool) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.failing = failing
}

// IntegrationTestSuite contains the complete application setup for integration testing
type IntegrationTestSuite struct {
	docs            *documentServer
	repo            *memory.Repository
	scheduleService *service.ScheduleService
	server          *httptest.Server

	mu      sync.Mutex
	updates []string
}

func setupIntegrationTest(t *testing.T) *IntegrationTestSuite {
	logger := zaptest.NewLogger(t)
	docs := newDocumentServer(t)

	fetcher := source.NewHTTPFetcher(5*time.Second, source.RetryPolicy{
		MaxRetries:      1,
		InitialInterval: 10 * time.Millisecond,
	}, logger)
	loader := source.NewLoader(fetcher, docs.server.URL+"/data.json", docs.server.URL+"/mixin.json", logger)

	cfg := &config.Config{Calendar: config.CalendarConfig{
		Name:      "Tech Days",
		UIDPrefix: "C-105",
		AgendaURL: "https://example.com/agenda",
		TimeZone:  "Europe/Berlin",
	}}

	repo := memory.NewRepository()
	application, err := newApp(cfg, loader, repo, logger)
	require.NoError(t, err)

	suite := &IntegrationTestSuite{
		docs:            docs,
		repo:            repo,
		scheduleService: application.scheduleService,
	}

	application.scheduleService.RegisterUpdateCallback(func(s *models.Snapshot) {
		suite.mu.Lock()
		defer suite.mu.Unlock()
		suite.updates = append(suite.updates, s.Fingerprint)
	})

	suite.server = httptest.NewServer(application.handler)

	t.Cleanup(func() {
		application.webHandler.Shutdown()
		suite.server.Close()
	})
	return suite
}

func (suite *IntegrationTestSuite) updateCount() int {
	suite.mu.Lock()
	defer suite.mu.Unlock()
	return len(suite.updates)
}

type timelinePayload struct {
	Groups []struct {
		ID      string `json:"id"`
		Content string `json:"content"`
		Order   int    `json:"order"`
	} `json:"groups"`
	Items []struct {
		ID      string `json:"id"`
		Group   string `json:"group"`
		Content string `json:"content"`
		Start   int64  `json:"start"`
		End     int64  `json:"end"`
	} `json:"items"`
	Options map[string]any `json:"options"`
}

func (suite *IntegrationTestSuite) getTimeline(t *testing.T) (*http.Response, timelinePayload) {
	resp, err := http.Get(suite.server.URL + "/api/timeline")
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload timelinePayload
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	}
	return resp, payload
}

func (suite *IntegrationTestSuite) refresh(t *testing.T) *http.Response {
	resp, err := http.Post(suite.server.URL+"/api/refresh", "application/json", nil)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// TestCompleteWorkflow loads the documents on first request and serves the shaped timeline
func TestCompleteWorkflow(t *testing.T) {
	suite := setupIntegrationTest(t)

	t.Run("Readiness Before Load", func(t *testing.T) {
		resp, err := http.Get(suite.server.URL + "/health/ready")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("Timeline JSON", func(t *testing.T) {
		resp, payload := suite.getTimeline(t)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		require.Len(t, payload.Groups, 2)
		assert.Equal(t, "2", payload.Groups[0].ID)
		assert.Equal(t, "10", payload.Groups[1].ID)
		assert.Contains(t, payload.Groups[0].Content, "<h3>Main Hall</h3>")
		assert.Contains(t, payload.Groups[1].Content, "🪑 30")

		// The blank-titled entry is dropped
		require.Len(t, payload.Items, 2)
		assert.Equal(t, "1", payload.Items[0].ID)
		assert.Equal(t, "2", payload.Items[0].Group)
		assert.Equal(t, int64(1_000_000), payload.Items[0].Start)
		assert.Equal(t, int64(2_000_000), payload.Items[0].End)
		assert.Contains(t, payload.Items[0].Content, "Ada <i>(Engines Ltd)</i>")
		assert.Contains(t, payload.Items[0].Content, "🤖 Artificial Intelligence")
		assert.Equal(t, "3", payload.Items[1].ID)
		assert.Contains(t, payload.Items[1].Content, "Grace")

		assert.Equal(t, "fixed", payload.Options["groupHeightMode"])
		assert.Equal(t, float64(3_600_000), payload.Options["zoomMin"])
	})

	t.Run("Readiness After Load", func(t *testing.T) {
		resp, err := http.Get(suite.server.URL + "/health/ready")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Index Page", func(t *testing.T) {
		resp, err := http.Get(suite.server.URL + "/")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "clear", resp.Header.Get("Alt-Svc"))

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `id="visualization"`)
		assert.Contains(t, string(body), "EventSource")
	})

	t.Run("Unchanged Refresh Does Not Notify", func(t *testing.T) {
		before := suite.updateCount()

		resp := suite.refresh(t)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		assert.Equal(t, before, suite.updateCount())
	})
}

// TestRefreshPublishesSSEUpdate verifies that a changed document reaches connected browsers
func TestRefreshPublishesSSEUpdate(t *testing.T) {
	suite := setupIntegrationTest(t)

	resp := suite.refresh(t)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, suite.server.URL+"/events?stream=timeline", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/event-stream")

	stream, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer stream.Body.Close()
	require.Equal(t, http.StatusOK, stream.StatusCode)

	events := make(chan string, 16)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(stream.Body)
		for scanner.Scan() {
			if data, ok := strings.CutPrefix(scanner.Text(), "data: "); ok {
				events <- data
			}
		}
	}()

	// Alternate versions so every refresh changes the fingerprint until the
	// subscriber has been registered and receives one
	versions := []string{scheduleV2, scheduleV1}
	var received string
	require.Eventually(t, func() bool {
		suite.docs.setSchedule(versions[suite.updateCount()%2])
		if resp, err := http.Post(suite.server.URL+"/api/refresh", "application/json", nil); err == nil {
			resp.Body.Close()
		}
		select {
		case received = <-events:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	snapshot, err := suite.repo.GetSnapshot(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, received)
	assert.Len(t, received, len(snapshot.Fingerprint))
}

// TestFailedRefreshKeepsServingPreviousTimeline verifies the last good snapshot survives a failed load
func TestFailedRefreshKeepsServingPreviousTimeline(t *testing.T) {
	suite := setupIntegrationTest(t)

	resp := suite.refresh(t)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	suite.docs.setFailing(true)

	resp = suite.refresh(t)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	var errResp api.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.NotEmpty(t, errResp.Document)

	timelineResp, payload := suite.getTimeline(t)
	require.Equal(t, http.StatusOK, timelineResp.StatusCode)
	assert.Len(t, payload.Items, 2)
}

// TestUnavailableWithoutSnapshot verifies pages answer 503 when nothing could ever be loaded
func TestUnavailableWithoutSnapshot(t *testing.T) {
	suite := setupIntegrationTest(t)
	suite.docs.setFailing(true)

	resp, _ := suite.getTimeline(t)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	page, err := http.Get(suite.server.URL + "/")
	require.NoError(t, err)
	page.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, page.StatusCode)

	live, err := http.Get(suite.server.URL + "/health/live")
	require.NoError(t, err)
	live.Body.Close()
	assert.Equal(t, http.StatusOK, live.StatusCode)
}

func (suite *IntegrationTestSuite) getCalendar(t *testing.T) (*http.Response, string) {
	resp, err := http.Get(suite.server.URL + "/calendar.ics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, strings.ReplaceAll(string(body), "\r\n ", "")
}

// TestCalendarFeed verifies the iCalendar feed carries one event per titled item
func TestCalendarFeed(t *testing.T) {
	suite := setupIntegrationTest(t)

	resp, body := suite.getCalendar(t)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/calendar; charset=utf-8", resp.Header.Get("Content-Type"))

	assert.Equal(t, 2, strings.Count(body, "BEGIN:VEVENT"))
	assert.Contains(t, body, "UID:C-105.1.")
	assert.Contains(t, body, "SUMMARY:🤖 Keynote")
	assert.Contains(t, body, "LOCATION:Main Hall")
	assert.Contains(t, body, "CONTACT:Ada (Engines Ltd)")
	assert.Contains(t, body, "URL:https://example.com/agenda#agendaId.3")
	assert.Contains(t, body, "X-WR-CALNAME:Tech Days")
	assert.Contains(t, body, "X-WR-TIMEZONE:Europe/Berlin")
}

// TestCalendarUnavailableWithoutSnapshot verifies the feed answers 503 like the pages
func TestCalendarUnavailableWithoutSnapshot(t *testing.T) {
	suite := setupIntegrationTest(t)
	suite.docs.setFailing(true)

	resp, _ := suite.getCalendar(t)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

// TestMalformedFieldsStillRender verifies wrong-typed fields degrade to blanks
// instead of failing the load
func TestMalformedFieldsStillRender(t *testing.T) {
	suite := setupIntegrationTest(t)
	suite.docs.setSchedule(scheduleMalformed)

	resp := suite.refresh(t)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	timelineResp, payload := suite.getTimeline(t)
	require.Equal(t, http.StatusOK, timelineResp.StatusCode)

	require.Len(t, payload.Groups, 2)
	assert.Equal(t, "2", payload.Groups[0].ID)
	assert.Equal(t, "3", payload.Groups[1].ID)

	// The non-object entry has no title and is dropped
	require.Len(t, payload.Items, 2)
	keynote := payload.Items[0]
	assert.Equal(t, "1", keynote.ID)
	assert.Equal(t, int64(1_000_000), keynote.Start)
	assert.Equal(t, int64(2_000_000), keynote.End)
	assert.Contains(t, keynote.Content, "Keynote")
	assert.Contains(t, keynote.Content, "Grace")
	assert.NotContains(t, keynote.Content, "Linus")
	assert.Contains(t, keynote.Content, "Numbered stream")

	broken := payload.Items[1]
	assert.Contains(t, broken.Content, "Ada")
	assert.NotContains(t, broken.Content, "Alan")

	calResp, body := suite.getCalendar(t)
	require.Equal(t, http.StatusOK, calResp.StatusCode)
	assert.Equal(t, 2, strings.Count(body, "BEGIN:VEVENT"))
}
