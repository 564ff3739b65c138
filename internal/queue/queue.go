package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Topology names
const (
	ExchangeName   = "tcn.timesheets"
	AuditQueueName = "tcn.timesheets.audit"
	BindingKey     = "timesheet.#"
)

// Connection manages the RabbitMQ connection with automatic reconnection
type Connection struct {
	url        string
	conn       *amqp.Connection
	channel    *amqp.Channel
	mu         sync.RWMutex
	closed     bool
	reconnects int
}

// NewConnection dials url and declares the timesheet exchange and audit queue.
func NewConnection(url string) (*Connection, error) {
	c := &Connection{url: url}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Connection) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	c.conn, err = amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	c.channel, err = c.conn.Channel()
	if err != nil {
		c.conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareTopology(c.channel); err != nil {
		c.channel.Close()
		c.conn.Close()
		return err
	}

	go c.handleReconnect(c.conn)

	slog.Info("connected to RabbitMQ", "url", sanitizeURL(c.url))
	return nil
}

// declareTopology creates the durable topic exchange and the audit queue
// that keeps every lifecycle event.
func declareTopology(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		ExchangeName,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	_, err = ch.QueueDeclare(
		AuditQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare audit queue: %w", err)
	}

	if err := ch.QueueBind(AuditQueueName, BindingKey, ExchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind audit queue: %w", err)
	}
	return nil
}

// handleReconnect waits for conn to close and redials with exponential backoff.
func (c *Connection) handleReconnect(conn *amqp.Connection) {
	err, ok := <-conn.NotifyClose(make(chan *amqp.Error, 1))
	if !ok || err == nil {
		return
	}

	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return
	}

	slog.Warn("RabbitMQ connection closed, attempting to reconnect",
		"error", err,
		"reconnects", c.reconnects,
	)

	for i := 0; i < 10; i++ {
		c.reconnects++
		time.Sleep(backoff(i))

		if err := c.connect(); err != nil {
			slog.Error("reconnection failed", "error", err, "attempt", i+1)
			continue
		}
		slog.Info("reconnected to RabbitMQ", "attempts", i+1)
		return
	}
	slog.Error("failed to reconnect to RabbitMQ after 10 attempts")
}

func backoff(attempt int) time.Duration {
	d := time.Duration(1<<attempt) * time.Second
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}

// Channel returns the current channel (thread-safe)
func (c *Connection) Channel() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// Close closes the connection
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected checks if the connection is active
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed()
}

// PublishJSON publishes data as a persistent JSON message on exchange.
func (c *Connection) PublishJSON(ctx context.Context, exchange, routingKey, messageID string, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()
	if ch == nil {
		return fmt.Errorf("publish %s: channel not open", routingKey)
	}

	return ch.PublishWithContext(
		ctx,
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
}

// sanitizeURL hides the password in an AMQP URL for logging.
func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "amqp://***"
	}
	return u.Redacted()
}
