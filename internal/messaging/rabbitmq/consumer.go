package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/lomonchiapp/gallinapp-user-sub000/internal/domain/models"
)

const consumerTag = "inventory-cache"

var errUndecodable = errors.New("undecodable inventory event")

// Invalidator is the part of the inventory service the consumer drives.
type Invalidator interface {
	Invalidate(category models.Category) error
	InvalidateAll()
}

// Consumer listens for inventory events published by any instance and
// invalidates the affected cache slots. Each consumer owns a private queue
// bound to the fanout exchange.
type Consumer struct {
	channel     channel
	queue       string
	invalidator Invalidator
	logger      *zap.Logger
}

// NewConsumer opens a channel on conn, declares exchange and binds a private queue to it.
func NewConsumer(conn *amqp.Connection, exchange string, invalidator Invalidator, logger *zap.Logger) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	c, err := newConsumer(ch, exchange, invalidator, logger)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	return c, nil
}

func newConsumer(ch channel, exchange string, invalidator Invalidator, logger *zap.Logger) (*Consumer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := declareExchange(ch, exchange); err != nil {
		return nil, err
	}

	// Server-named, exclusive and auto-deleted: the queue lives as long as this instance.
	queue, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, fmt.Errorf("declare consumer queue: %w", err)
	}
	if err := ch.QueueBind(queue.Name, "", exchange, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue %q to %q: %w", queue.Name, exchange, err)
	}

	logger.Info("inventory event queue bound", zap.String("queue", queue.Name), zap.String("exchange", exchange))
	return &Consumer{
		channel:     ch,
		queue:       queue.Name,
		invalidator: invalidator,
		logger:      logger,
	}, nil
}

// Listen consumes until ctx is done or the delivery channel closes.
func (c *Consumer) Listen(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		c.queue,
		consumerTag,
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume queue %q: %w", c.queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}

			if err := c.handleMessage(msg.Body); err != nil {
				c.logger.Error("handle message failed", zap.Error(err))
				// Redelivering a payload that cannot be decoded never succeeds.
				_ = msg.Nack(false, false)
				continue
			}

			_ = msg.Ack(false)
		}
	}
}

func (c *Consumer) handleMessage(body []byte) error {
	var event models.InventoryEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: %w", errUndecodable, err)
	}

	target := strings.TrimSpace(strings.ToLower(event.Category))
	if event.EventType == models.EventProductionLogged {
		target = string(models.CategoryEggs)
	}

	if target == "" || target == "all" {
		c.invalidator.InvalidateAll()
		c.logger.Info("inventory event applied", zap.String("event_type", event.EventType), zap.String("target", "all"))
		return nil
	}

	category, err := models.ParseCategory(target)
	if err == nil {
		err = c.invalidator.Invalidate(category)
	}
	if err != nil {
		c.logger.Warn("inventory event ignored",
			zap.String("event_type", event.EventType),
			zap.String("category", event.Category),
			zap.Error(err),
		)
		return nil
	}

	c.logger.Info("inventory event applied",
		zap.String("event_type", event.EventType),
		zap.String("target", string(category)),
		zap.String("batch_id", event.BatchID),
	)
	return nil
}

// Close closes the consuming channel.
func (c *Consumer) Close() error {
	return c.channel.Close()
}
