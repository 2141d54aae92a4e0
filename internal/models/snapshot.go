package models

import (
	"errors"
	"time"
)

// Snapshot is one successful load of the schedule documents. Abstracts is
// only filled when a session details document is configured.
type Snapshot struct {
	Schedule    Schedule          `json:"schedule"`
	Mixin       Mixin             `json:"mixin"`
	Abstracts   map[string]string `json:"abstracts,omitempty"`
	FetchedAt   time.Time         `json:"fetched_at"`
	Fingerprint string            `json:"fingerprint"`
}

// ErrSnapshotNotFound is returned by stores that hold no snapshot yet
var ErrSnapshotNotFound = errors.New("snapshot not found")
