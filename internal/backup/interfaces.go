package backup

import (
	"context"
	"time"
)

// ScheduleStore reads and advances backup schedules
type ScheduleStore interface {
	// Due returns enabled schedules whose next run is at or before now
	Due(ctx context.Context, now time.Time) ([]Schedule, error)
	// Advance persists last/next run times for a schedule
	Advance(ctx context.Context, scheduleID string, lastRun, nextRun time.Time) error
}

// Ledger records produced artifacts
type Ledger interface {
	Insert(ctx context.Context, record *Record) error
	// ListCompleted returns completed records, oldest first
	ListCompleted(ctx context.Context) ([]Record, error)
	Delete(ctx context.Context, id string) error
}

// TableReader reads one page of a source table
type TableReader interface {
	ReadPage(ctx context.Context, table string, offset, limit int) ([]Row, error)
}

// StorageProvider abstracts the blob store. Put overwrites any existing object at path.
type StorageProvider interface {
	Put(ctx context.Context, path string, data []byte, contentType string) error
	Remove(ctx context.Context, path string) error
	// Location describes where an object lives, for logs
	Location(path string) string
}

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time
