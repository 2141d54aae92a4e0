package api

import (
	"context"

	"github.com/navikt/zagenda/internal/models"
)

// ScheduleServicer defines the service operations needed by API handlers
type ScheduleServicer interface {
	// Ready reports whether a schedule snapshot is available
	Ready(ctx context.Context) bool
	// Refresh loads both documents now and stores the result
	Refresh(ctx context.Context) (*models.Snapshot, error)
	// Reset forgets the stored snapshot
	Reset(ctx context.Context) error
}
