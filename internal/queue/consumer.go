package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Ironbeetle/TCN-Communications-sub000/internal/timesheet"
	amqp "github.com/rabbitmq/amqp091-go"
)

// EventHandler processes one lifecycle event. A returned error requeues the
// delivery once; a second failure drops it.
type EventHandler func(ctx context.Context, ev timesheet.Event) error

// Consumer delivers timesheet events from a queue to a handler.
type Consumer struct {
	conn       *Connection
	handler    EventHandler
	queue      string
	workers    int
	prefetch   int
	timeout    time.Duration
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	// Queue to consume. Empty means a private, auto-deleted queue bound to
	// every timesheet event, which suits an interactive watcher.
	Queue string

	Workers  int // Number of concurrent workers
	Prefetch int // Prefetch count per worker

	// HandlerTimeout bounds one handler call (default: 30s).
	HandlerTimeout time.Duration
}

// DefaultConsumerConfig returns the audit-queue consumer defaults.
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Queue:          AuditQueueName,
		Workers:        3,
		Prefetch:       1,
		HandlerTimeout: 30 * time.Second,
	}
}

func (cfg *ConsumerConfig) defaults() {
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = 30 * time.Second
	}
}

// NewConsumer creates a new event consumer
func NewConsumer(conn *Connection, handler EventHandler, cfg ConsumerConfig) *Consumer {
	cfg.defaults()
	return &Consumer{
		conn:     conn,
		handler:  handler,
		queue:    cfg.Queue,
		workers:  cfg.Workers,
		prefetch: cfg.Prefetch,
		timeout:  cfg.HandlerTimeout,
	}
}

// Start begins consuming messages
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancelFunc = context.WithCancel(ctx)

	ch := c.conn.Channel()
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	queue := c.queue
	if queue == "" {
		q, err := ch.QueueDeclare("", false, true, true, false, nil)
		if err != nil {
			return fmt.Errorf("failed to declare watch queue: %w", err)
		}
		if err := ch.QueueBind(q.Name, BindingKey, ExchangeName, false, nil); err != nil {
			return fmt.Errorf("failed to bind watch queue: %w", err)
		}
		queue = q.Name
	}

	msgs, err := ch.Consume(
		queue,
		"",    // consumer tag (auto-generated)
		false, // auto-ack (manual ack for reliability)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	slog.Info("starting timesheet event consumer",
		"queue", queue,
		"workers", c.workers,
		"prefetch", c.prefetch,
	)

	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i, msgs)
	}
	return nil
}

func (c *Consumer) worker(ctx context.Context, id int, msgs <-chan amqp.Delivery) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				slog.Info("message channel closed", "worker_id", id)
				return
			}
			c.processMessage(ctx, id, msg)
		}
	}
}

// processMessage decodes one delivery, runs the handler and settles it.
func (c *Consumer) processMessage(ctx context.Context, workerID int, msg amqp.Delivery) {
	var ev timesheet.Event
	if err := json.Unmarshal(msg.Body, &ev); err != nil {
		slog.Error("failed to unmarshal event",
			"worker_id", workerID,
			"message_id", msg.MessageId,
			"error", err,
		)
		_ = msg.Reject(false)
		return
	}

	hctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.handler(hctx, ev); err != nil {
		requeue := !msg.Redelivered
		slog.Error("event handler failed",
			"worker_id", workerID,
			"event_id", ev.ID,
			"kind", ev.Kind,
			"requeue", requeue,
			"error", err,
		)
		_ = msg.Nack(false, requeue)
		return
	}

	if err := msg.Ack(false); err != nil {
		slog.Error("failed to ack message",
			"worker_id", workerID,
			"event_id", ev.ID,
			"error", err,
		)
	}
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	c.wg.Wait()
	slog.Info("consumer stopped")
}
