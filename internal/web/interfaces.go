package web

import (
	"context"

	"github.com/navikt/zagenda/internal/models"
	"github.com/navikt/zagenda/internal/timeline"
)

// TimelineServicer defines the contract for schedule services used by web handlers
type TimelineServicer interface {
	Timeline(ctx context.Context) (timeline.Timeline, error)
	Snapshot(ctx context.Context) (*models.Snapshot, error)
}
