package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Ironbeetle/TCN-Communications-sub000/internal/timesheet"
)

// AuditStore keeps every published lifecycle event. It implements
// timesheet.EventPublisher so the service can record transitions locally.
type AuditStore struct {
	db *DB
}

var _ timesheet.EventPublisher = (*AuditStore)(nil)

// NewAuditStore creates a new SQLite-backed audit store.
func NewAuditStore(db *DB) *AuditStore {
	return &AuditStore{db: db}
}

// Publish records ev. Replaying an event with a known ID is a no-op.
func (s *AuditStore) Publish(ctx context.Context, ev timesheet.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	var actor *string
	if ev.ActorID != "" {
		actor = &ev.ActorID
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO timesheet_events (id, timesheet_id, kind, user_id, actor_id, status, grand_total, data, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		ev.ID, ev.TimesheetID, string(ev.Kind), ev.UserID, actor, string(ev.Status), ev.GrandTotal,
		string(payload), ev.OccurredAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert timesheet event: %w", err)
	}
	return nil
}

// History returns the events for one timesheet, oldest first. The rows
// outlive the timesheet, so a deleted timesheet keeps its trail.
func (s *AuditStore) History(ctx context.Context, timesheetID string) ([]timesheet.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT data FROM timesheet_events WHERE timesheet_id = ? ORDER BY occurred_at, rowid",
		timesheetID,
	)
	if err != nil {
		return nil, fmt.Errorf("query timesheet events: %w", err)
	}
	defer rows.Close()

	events := []timesheet.Event{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan timesheet event: %w", err)
		}
		var ev timesheet.Event
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return nil, fmt.Errorf("decode timesheet event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
