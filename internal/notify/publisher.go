package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is the topic exchange events are published to.
const DefaultExchange = "provider.profile.events"

// Publisher delivers events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// AMQPPublisher publishes events to a RabbitMQ topic exchange. Created with
// an empty URL it is disabled and only logs the events it is given.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	enabled  bool
	logger   *slog.Logger
}

// NewAMQPPublisher connects to url and declares exchange. An empty exchange
// uses DefaultExchange.
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	p := &AMQPPublisher{exchange: exchange, logger: slog.Default()}

	if url == "" {
		p.logger.Warn("AMQP URL is empty, event publishing is disabled")
		return p, nil
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
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
		return nil, fmt.Errorf("declaring exchange %s: %w", exchange, err)
	}

	p.conn = conn
	p.channel = ch
	p.enabled = true
	p.logger.Info("event publisher ready", "exchange", exchange)
	return p, nil
}

// Enabled reports whether events go to a broker.
func (p *AMQPPublisher) Enabled() bool {
	return p.enabled
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
	if !p.enabled {
		p.logger.Info("event publishing disabled, skipping", "event_type", ev.EventType, "profile_id", ev.ProfileID)
		return nil
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx,
		p.exchange,   // exchange
		ev.EventType, // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.EventID,
			Timestamp:    time.Now(),
			Body:         body,
			Headers: amqp.Table{
				"event_type": ev.EventType,
				"profile_id": ev.ProfileID,
			},
		},
	)
	if err != nil {
		return fmt.Errorf("publishing %s: %w", ev.EventType, err)
	}

	p.logger.Debug("published event", "event_type", ev.EventType, "profile_id", ev.ProfileID)
	return nil
}

func (p *AMQPPublisher) Close() error {
	if !p.enabled {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Warn("closing AMQP channel", "error", err)
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("closing AMQP connection: %w", err)
		}
	}
	return nil
}
