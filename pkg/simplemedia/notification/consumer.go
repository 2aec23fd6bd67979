package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ConsumerConfig configures the AMQP consumer.
type ConsumerConfig struct {
	URL         string
	Queue       string
	ConsumerTag string
	// Prefetch bounds unacknowledged deliveries per consumer.
	Prefetch int
}

// Consumer reads S3 event documents from a durable AMQP queue, typically fed
// by a MinIO or S3 bucket notification target.
type Consumer struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	cfg     ConsumerConfig
	handler *Handler
	logger  *slog.Logger
}

// Dial connects to the broker and declares the queue.
func Dial(cfg ConsumerConfig, handler *Handler, logger *slog.Logger) (*Consumer, error) {
	if cfg.URL == "" || cfg.Queue == "" {
		return nil, errors.New("amqp url and queue are required")
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 4
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set qos: %w", err)
	}

	_, err = ch.QueueDeclare(
		cfg.Queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", cfg.Queue, err)
	}

	return &Consumer{conn: conn, ch: ch, cfg: cfg, handler: handler, logger: logger}, nil
}

// Run consumes until ctx is cancelled or the broker closes the channel.
func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.ch.Consume(
		c.cfg.Queue,
		c.cfg.ConsumerTag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("Consuming upload notifications", "queue", c.cfg.Queue)
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed by broker")
			}
			c.handleDelivery(ctx, d)
		}
	}
}

// Close shuts down the channel and connection.
func (c *Consumer) Close() error {
	if err := c.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		c.conn.Close()
		return err
	}
	return c.conn.Close()
}

func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	err := c.handler.Handle(ctx, d.Body)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.Error("Failed to ack delivery", "delivery_tag", d.DeliveryTag, "err", ackErr)
		}
	case Retryable(err):
		if nackErr := d.Nack(false, true); nackErr != nil {
			c.logger.Error("Failed to nack delivery", "delivery_tag", d.DeliveryTag, "err", nackErr)
		}
	default:
		// Redelivery would fail the same way.
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.Error("Failed to ack delivery", "delivery_tag", d.DeliveryTag, "err", ackErr)
		}
	}
}
