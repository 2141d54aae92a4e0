package source

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/jsonc"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/navikt/zagenda/internal/models"
)

// Document names used in errors and logs
const (
	DocumentSchedule = "schedule"
	DocumentMixin    = "mixin"
	DocumentDetails  = "details"
)

// FetchError reports which document could not be loaded
type FetchError struct {
	Document string
	Location string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to load %s document from %s: %v", e.Document, e.Location, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Loader fetches the schedule and mixin documents and decodes them together
type Loader struct {
	fetcher    Fetcher
	dataURL    string
	mixinURL   string
	detailsURL string
	logger     *zap.Logger
	now        func() time.Time
}

// NewLoader creates a loader reading the two documents through fetcher
func NewLoader(fetcher Fetcher, dataURL, mixinURL string, logger *zap.Logger) *Loader {
	return &Loader{
		fetcher:  fetcher,
		dataURL:  dataURL,
		mixinURL: mixinURL,
		logger:   logger,
		now:      time.Now,
	}
}

// WithDetails makes the loader also read the optional session details
// document holding abstracts. An empty location disables it.
func (l *Loader) WithDetails(location string) *Loader {
	l.detailsURL = location
	return l
}

// Load fetches the documents concurrently. Either schedule and mixin both
// decode and a snapshot is returned, or the first failure is returned as a
// *FetchError. The details document is best effort: a failure is logged and
// the snapshot carries no abstracts.
func (l *Loader) Load(ctx context.Context) (*models.Snapshot, error) {
	var (
		scheduleRaw []byte
		mixinRaw    []byte
		detailsRaw  []byte
		details     models.SessionDetails
		snapshot    models.Snapshot
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		raw, err := l.loadDocument(gctx, DocumentSchedule, l.dataURL, &snapshot.Schedule)
		scheduleRaw = raw
		return err
	})
	g.Go(func() error {
		raw, err := l.loadDocument(gctx, DocumentMixin, l.mixinURL, &snapshot.Mixin)
		mixinRaw = raw
		return err
	})
	if l.detailsURL != "" {
		g.Go(func() error {
			raw, err := l.loadDocument(gctx, DocumentDetails, l.detailsURL, &details)
			if err != nil {
				if gctx.Err() == nil {
					l.logger.Warn("session details unavailable, continuing without abstracts", zap.Error(err))
				}
				return nil
			}
			detailsRaw = raw
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(details) > 0 {
		snapshot.Abstracts = map[string]string(details)
	}
	snapshot.FetchedAt = l.now()
	docs := [][]byte{scheduleRaw, mixinRaw}
	if detailsRaw != nil {
		docs = append(docs, detailsRaw)
	}
	snapshot.Fingerprint = Fingerprint(docs...)

	l.logger.Debug("schedule documents loaded",
		zap.Int("rooms", len(snapshot.Schedule.Rooms)),
		zap.Int("agenda_items", len(snapshot.Schedule.Agenda)),
		zap.Int("streams", len(snapshot.Mixin.Streams)),
		zap.Int("abstracts", len(snapshot.Abstracts)),
		zap.String("fingerprint", snapshot.Fingerprint),
	)

	return &snapshot, nil
}

func (l *Loader) loadDocument(ctx context.Context, name, location string, target any) ([]byte, error) {
	raw, err := l.fetcher.Fetch(ctx, location)
	if err != nil {
		return nil, &FetchError{Document: name, Location: location, Err: err}
	}

	// Hand-maintained schedule files often carry comments or trailing commas
	clean := jsonc.ToJSON(raw)
	if err := json.Unmarshal(clean, target); err != nil {
		return nil, &FetchError{Document: name, Location: location, Err: fmt.Errorf("failed to decode JSON: %w", err)}
	}
	return clean, nil
}

// Fingerprint identifies the content of a set of documents
func Fingerprint(docs ...[]byte) string {
	h := blake3.New()
	for i, doc := range docs {
		if i > 0 {
			_, _ = h.Write([]byte{0})
		}
		_, _ = h.Write(doc)
	}
	return hex.EncodeToString(h.Sum(nil))
}
