package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Ironbeetle/TCN-Communications-sub000/internal/timesheet"
	"github.com/google/uuid"
)

// jsonPublisher is the part of Connection the Publisher needs.
type jsonPublisher interface {
	PublishJSON(ctx context.Context, exchange, routingKey, messageID string, data any) error
}

// Publisher sends timesheet lifecycle events to the topic exchange.
type Publisher struct {
	conn jsonPublisher
}

var _ timesheet.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a publisher on conn.
func NewPublisher(conn *Connection) *Publisher {
	return &Publisher{conn: conn}
}

// Publish sends ev under routing key "timesheet.<kind>".
func (p *Publisher) Publish(ctx context.Context, ev timesheet.Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	if err := p.conn.PublishJSON(ctx, ExchangeName, ev.RoutingKey(), ev.ID, ev); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", ev.Kind, err)
	}

	slog.Info("published timesheet event",
		"event_id", ev.ID,
		"kind", ev.Kind,
		"timesheet_id", ev.TimesheetID,
		"user_id", ev.UserID,
	)
	return nil
}
