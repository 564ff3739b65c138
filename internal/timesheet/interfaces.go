package timesheet

import (
	"context"
	"time"

	"github.com/Ironbeetle/TCN-Communications-sub000/internal/payperiod"
)

// Filter narrows a timesheet listing. Zero fields match everything.
type Filter struct {
	UserID     string
	Status     Status
	Department string
}

// Store persists timesheets and their entries.
type Store interface {
	// UpsertCurrent returns the timesheet for (userID, p.Start), creating an
	// empty draft atomically if none exists.
	UpsertCurrent(ctx context.Context, userID string, p payperiod.Period) (*Timesheet, error)

	// Get loads a timesheet with its entries ordered by date.
	Get(ctx context.Context, id string) (*Timesheet, error)

	// GetEntry loads a single entry by id.
	GetEntry(ctx context.Context, entryID string) (*TimeEntry, error)

	// List returns timesheets without entries, newest period first.
	List(ctx context.Context, f Filter) ([]*Timesheet, error)

	// Save writes the timesheet row and replaces its entry set in one
	// transaction. It fails with ErrVersionConflict unless the stored version
	// equals ts.Version, and increments ts.Version on success.
	Save(ctx context.Context, ts *Timesheet) error

	// Delete removes the timesheet and its entries.
	Delete(ctx context.Context, id string) error

	// SaveStaff inserts or updates a directory record.
	SaveStaff(ctx context.Context, s Staff) error
}

// EventPublisher receives lifecycle events after they are committed.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Recorder observes operation outcomes; the metrics package implements it.
type Recorder interface {
	ObserveOperation(op string, outcome string, d time.Duration)
	ObserveTransition(from, to Status)
	ObservePublishFailure(kind EventKind)
}

// Clock supplies the current time.
type Clock func() time.Time
