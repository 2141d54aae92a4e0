// Package memory provides an in-memory implementation of the repository interface
package memory

import (
	"context"
	"sync"

	"github.com/navikt/zagenda/internal/models"
)

// ErrNotFound is returned when no snapshot has been saved
var ErrNotFound = models.ErrSnapshotNotFound

// Repository implements the repository interface with in-memory storage
type Repository struct {
	snapshot *models.Snapshot
	mu       sync.RWMutex
}

// NewRepository creates a new in-memory repository
func NewRepository() *Repository {
	return &Repository{}
}

// SaveSnapshot replaces the stored snapshot
func (r *Repository) SaveSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *snapshot
	r.snapshot = &stored
	return nil
}

// GetSnapshot returns a copy of the stored snapshot
func (r *Repository) GetSnapshot(ctx context.Context) (*models.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.snapshot == nil {
		return nil, ErrNotFound
	}

	snapshot := *r.snapshot
	return &snapshot, nil
}

// DeleteSnapshot forgets the stored snapshot
func (r *Repository) DeleteSnapshot(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.snapshot == nil {
		return ErrNotFound
	}
	r.snapshot = nil
	return nil
}
