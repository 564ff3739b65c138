package timesheet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// EventKind names a lifecycle transition.
type EventKind string

const (
	EventSubmitted EventKind = "submitted"
	EventApproved  EventKind = "approved"
	EventRejected  EventKind = "rejected"
	EventReverted  EventKind = "reverted"
	EventDeleted   EventKind = "deleted"
)

// Event describes a committed lifecycle change.
type Event struct {
	ID             string    `json:"id"`
	Kind           EventKind `json:"kind"`
	TimesheetID    string    `json:"timesheetId"`
	UserID         string    `json:"userId"`
	ActorID        string    `json:"actorId,omitempty"`
	Status         Status    `json:"status"`
	PayPeriodStart time.Time `json:"payPeriodStart"`
	GrandTotal     float64   `json:"grandTotal"`
	Reason         string    `json:"reason,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// NewEvent builds an event from the post-transition timesheet.
func NewEvent(kind EventKind, ts *Timesheet, actorID string, at time.Time) Event {
	ev := Event{
		ID:             uuid.NewString(),
		Kind:           kind,
		TimesheetID:    ts.ID,
		UserID:         ts.UserID,
		ActorID:        actorID,
		Status:         ts.Status,
		PayPeriodStart: ts.PayPeriodStart,
		GrandTotal:     ts.GrandTotal,
		OccurredAt:     at,
	}
	if kind == EventRejected {
		ev.Reason = ts.RejectionReason
	}
	return ev
}

// RoutingKey returns the topic key the event is published under.
func (e Event) RoutingKey() string {
	return "timesheet." + string(e.Kind)
}

// MultiPublisher sends each event to every publisher in order and joins
// their errors.
type MultiPublisher []EventPublisher

func (m MultiPublisher) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
