// Package repository defines interfaces for data storage
package repository

import (
	"context"

	"github.com/navikt/zagenda/internal/models"
)

// ErrNotFound is returned when no snapshot has been stored yet
var ErrNotFound = models.ErrSnapshotNotFound

// Repository stores the most recent successful load of the schedule documents
type Repository interface {
	SaveSnapshot(ctx context.Context, snapshot *models.Snapshot) error
	GetSnapshot(ctx context.Context) (*models.Snapshot, error)
	DeleteSnapshot(ctx context.Context) error
}
