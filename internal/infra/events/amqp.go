package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/boddenberg/fincore/internal/domain"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("infra/events")

const publishTimeout = 5 * time.Second

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes events and notification requests to a durable
// topic exchange. Events are routed by their name (e.g. "budget.alert").
// It implements port.EventSink and port.Notifier.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       channel
	exchange string
	logger   *zap.Logger
}

// NewAMQPPublisher dials the broker and declares the exchange.
func NewAMQPPublisher(url, exchange string, logger *zap.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	p := newPublisher(ch, exchange, logger)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange string, logger *zap.Logger) *AMQPPublisher {
	return &AMQPPublisher{ch: ch, exchange: exchange, logger: logger}
}

// Emit publishes a domain event with the event name as routing key.
func (p *AMQPPublisher) Emit(ctx context.Context, event domain.Event) error {
	ctx, span := tracer.Start(ctx, "AMQPPublisher.Emit")
	defer span.End()
	span.SetAttributes(attribute.String("event.name", event.Name), attribute.String("org.id", event.OrganizationID))

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.publish(ctx, event.Name, body)
}

// Notify publishes a notification request for a downstream dispatcher.
func (p *AMQPPublisher) Notify(ctx context.Context, recipients []domain.Member, alert domain.Alert) error {
	ctx, span := tracer.Start(ctx, "AMQPPublisher.Notify")
	defer span.End()
	span.SetAttributes(attribute.String("budget.id", alert.BudgetID), attribute.Int("recipients", len(recipients)))

	body, err := NewNotificationMessage(orgOf(recipients), recipients, alert).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return p.publish(ctx, RoutingKeyNotify, body)
}

func (p *AMQPPublisher) publish(ctx context.Context, key string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.PublishWithContext(
		ctx,
		p.exchange, // exchange
		key,        // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}

	p.logger.Debug("published message",
		zap.String("exchange", p.exchange),
		zap.String("routing_key", key),
		zap.Int("bytes", len(body)),
	)
	return nil
}

// Close closes the channel and the connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
