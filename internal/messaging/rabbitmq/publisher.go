package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/lomonchiapp/gallinapp-user-sub000/internal/domain/models"
)

const (
	contentTypeJSON = "application/json"
	exchangeKind    = amqp.ExchangeFanout
)

// channel is the subset of *amqp.Channel used by the publisher and consumer.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher broadcasts inventory events on a fanout exchange so every
// running instance receives them.
type Publisher struct {
	channel  channel
	exchange string
	logger   *zap.Logger
}

// NewPublisher opens a channel on conn and declares exchange.
func NewPublisher(conn *amqp.Connection, exchange string, logger *zap.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	p, err := newPublisher(ch, exchange, logger)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	return p, nil
}

func newPublisher(ch channel, exchange string, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := declareExchange(ch, exchange); err != nil {
		return nil, err
	}
	return &Publisher{
		channel:  ch,
		exchange: exchange,
		logger:   logger,
	}, nil
}

// Publish marshals event as JSON and publishes it as a persistent message.
func (p *Publisher) Publish(ctx context.Context, event models.InventoryEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.channel.PublishWithContext(
		ctx,
		p.exchange,
		"", // fanout ignores the routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  contentTypeJSON,
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.Timestamp,
			Type:         event.EventType,
			Body:         payload,
		},
	); err != nil {
		return fmt.Errorf("publish to %q: %w", p.exchange, err)
	}

	p.logger.Debug("inventory event published", zap.String("event_type", event.EventType), zap.String("category", event.Category))
	return nil
}

// Close closes the publishing channel.
func (p *Publisher) Close() error {
	return p.channel.Close()
}

func declareExchange(ch channel, exchange string) error {
	if err := ch.ExchangeDeclare(
		exchange,
		exchangeKind,
		true,  // durable
		false, // auto-delete
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange %q: %w", exchange, err)
	}
	return nil
}
