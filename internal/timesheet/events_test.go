package timesheet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Ironbeetle/TCN-Communications-sub000/internal/payperiod"
)

func TestNewEvent(t *testing.T) {
	ts := New("ts-1", "user-1", payperiod.Default().Resolve(time.Date(2025, time.January, 8, 0, 0, 0, 0, time.UTC)), time.Now())
	ts.Status = StatusRejected
	ts.RejectionReason = "Missing Friday"

	ev := NewEvent(EventRejected, ts, "admin-1", time.Now())
	if ev.ID == "" || ev.Reason != "Missing Friday" || ev.ActorID != "admin-1" {
		t.Errorf("NewEvent() = %+v", ev)
	}
	if got := ev.RoutingKey(); got != "timesheet.rejected" {
		t.Errorf("RoutingKey() = %q", got)
	}

	if ev := NewEvent(EventSubmitted, ts, "", time.Now()); ev.Reason != "" {
		t.Errorf("submitted event carries reason %q", ev.Reason)
	}
}

func TestMultiPublisher(t *testing.T) {
	boom := errors.New("broker down")
	first := &recordingPublisher{err: boom}
	second := &recordingPublisher{}

	err := MultiPublisher{first, second}.Publish(context.Background(), Event{Kind: EventSubmitted})
	if !errors.Is(err, boom) {
		t.Errorf("Publish() error = %v; want %v", err, boom)
	}
	if got := second.kinds(); len(got) != 1 || got[0] != EventSubmitted {
		t.Errorf("second publisher got %v; want the event despite the first failing", got)
	}

	if err := (MultiPublisher{}).Publish(context.Background(), Event{}); err != nil {
		t.Errorf("empty Publish() error = %v", err)
	}
}
