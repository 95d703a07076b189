package catalog

import (
	"fmt"
	"time"
)

// Backup kinds
const (
	KindFull        = "full"
	KindIncremental = "incremental"
)

// Recovery point statuses. A point transitions out of StatusInProgress
// exactly once; StatusCompleted and StatusFailed are terminal.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Location points to where an artifact lives.
type Location struct {
	RemoteKey string `json:"remote_key"`
	LocalPath string `json:"local_path,omitempty"`
}

// RecoveryPoint identifies one snapshot.
type RecoveryPoint struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Kind       string    `json:"kind"`
	Components []string  `json:"components"`
	SizeBytes  int64     `json:"size_bytes"`
	Checksum   string    `json:"checksum"`
	Status     string    `json:"status"`
	Location   Location  `json:"location"`
	Error      string    `json:"error,omitempty"`
}

// Restorable reports whether the point may be selected for restore.
// Failed points are retained only for audit.
func (p *RecoveryPoint) Restorable() bool {
	return p.Status == StatusCompleted && p.Checksum != "" && p.Location.RemoteKey != ""
}

// Filter selects recovery points for List.
type Filter struct {
	Kind   string
	Status string
	After  time.Time
	Before time.Time
}

// Matches reports whether the point passes the filter.
func (f Filter) Matches(p *RecoveryPoint) bool {
	if f.Kind != "" && p.Kind != f.Kind {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if !f.After.IsZero() && !p.Timestamp.After(f.After) {
		return false
	}
	if !f.Before.IsZero() && !p.Timestamp.Before(f.Before) {
		return false
	}
	return true
}

// NotFoundError reports an unknown or non-restorable recovery point.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("recovery point not found: %s", e.ID)
}

// ErrNotFound constructs a NotFoundError.
func ErrNotFound(id string) error {
	return NotFoundError{ID: id}
}

// DuplicateIDError reports a register with an id already in the catalog.
type DuplicateIDError struct {
	ID string
}

func (e DuplicateIDError) Error() string {
	return fmt.Sprintf("recovery point already registered: %s", e.ID)
}
