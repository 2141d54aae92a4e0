// Package service ties loading, storage and shaping of the schedule together
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/navikt/zagenda/internal/models"
	"github.com/navikt/zagenda/internal/repository"
	"github.com/navikt/zagenda/internal/timeline"
)

// ErrUnavailable is returned when no schedule could be loaded or found in storage
var ErrUnavailable = errors.New("schedule unavailable")

// UpdateCallback is called with the new snapshot whenever the schedule content changes
type UpdateCallback func(*models.Snapshot)

// Loader fetches both schedule documents
type Loader interface {
	Load(ctx context.Context) (*models.Snapshot, error)
}

// ScheduleService provides business logic for working with the schedule
type ScheduleService struct {
	loader          Loader
	repo            repository.Repository
	logger          *zap.Logger
	refreshMu       sync.Mutex
	loadGroup       singleflight.Group
	callbackMu      sync.RWMutex
	updateCallbacks []UpdateCallback
}

// NewScheduleService creates a new ScheduleService
func NewScheduleService(loader Loader, repo repository.Repository, logger *zap.Logger) *ScheduleService {
	return &ScheduleService{
		loader:          loader,
		repo:            repo,
		logger:          logger,
		updateCallbacks: make([]UpdateCallback, 0),
	}
}

// RegisterUpdateCallback registers a callback function to be called when the schedule changes
func (s *ScheduleService) RegisterUpdateCallback(callback UpdateCallback) {
	s.callbackMu.Lock()
	defer s.callbackMu.Unlock()
	s.updateCallbacks = append(s.updateCallbacks, callback)
}

// notifyUpdate calls all registered callbacks with the new snapshot
func (s *ScheduleService) notifyUpdate(snapshot *models.Snapshot) {
	s.callbackMu.RLock()
	callbacks := append([]UpdateCallback(nil), s.updateCallbacks...)
	s.callbackMu.RUnlock()

	for _, callback := range callbacks {
		callback(snapshot)
	}
}

// Refresh loads both documents and stores the result. Listeners are only
// notified when the content differs from the stored snapshot. A failed load
// leaves the stored snapshot untouched and is returned to the caller.
func (s *ScheduleService) Refresh(ctx context.Context) (*models.Snapshot, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	snapshot, err := s.loader.Load(ctx)
	if err != nil {
		return nil, err
	}

	previous, err := s.repo.GetSnapshot(ctx)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("could not read stored snapshot", zap.Error(err))
	}
	changed := previous == nil || previous.Fingerprint != snapshot.Fingerprint

	if err := s.repo.SaveSnapshot(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("failed to store snapshot: %w", err)
	}

	if changed {
		s.logger.Info("schedule updated",
			zap.String("fingerprint", snapshot.Fingerprint),
			zap.Int("rooms", len(snapshot.Schedule.Rooms)),
			zap.Int("agenda_items", len(snapshot.Schedule.Agenda)),
		)
		s.notifyUpdate(snapshot)
	}

	return snapshot, nil
}

// Snapshot returns the stored snapshot, loading it first if storage is empty.
// Concurrent callers that find storage empty share a single load.
func (s *ScheduleService) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	snapshot, err := s.repo.GetSnapshot(ctx)
	if err == nil {
		return snapshot, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("could not read stored snapshot, loading documents", zap.Error(err))
	}

	// The shared load must not fail for everyone when the first caller goes away
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := s.loadGroup.Do("snapshot", func() (any, error) {
		if stored, err := s.repo.GetSnapshot(loadCtx); err == nil {
			return stored, nil
		}
		return s.Refresh(loadCtx)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return v.(*models.Snapshot), nil
}

// Reset forgets the stored snapshot so the next read loads the documents again
func (s *ScheduleService) Reset(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if err := s.repo.DeleteSnapshot(ctx); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	s.logger.Info("stored schedule snapshot cleared")
	return nil
}

// Timeline returns the widget input for the current schedule
func (s *ScheduleService) Timeline(ctx context.Context) (timeline.Timeline, error) {
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return timeline.Timeline{}, err
	}

	tl := timeline.Build(&snapshot.Schedule, &snapshot.Mixin)
	tl.UpdatedAt = snapshot.FetchedAt
	if tl.Dropped > 0 {
		s.logger.Debug("skipped agenda items without title", zap.Int("count", tl.Dropped))
	}
	return tl, nil
}

// Ready reports whether a snapshot is available without triggering a load
func (s *ScheduleService) Ready(ctx context.Context) bool {
	_, err := s.repo.GetSnapshot(ctx)
	return err == nil
}

// Run refreshes the schedule every interval until ctx is cancelled. Failed
// refreshes are logged and the previous snapshot keeps being served.
func (s *ScheduleService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("schedule refresh failed", zap.Error(err))
			}
		}
	}
}
