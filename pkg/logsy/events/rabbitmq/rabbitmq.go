// Package rabbitmq publishes lifecycle events to a RabbitMQ fanout exchange.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/fruit-freedom/logsy/pkg/logsy"
)

// Bus is a RabbitMQ implementation of the logsy.EventBus interface. Every
// event goes to a single fanout exchange; subscribers bind their own queues.
type Bus struct {
	url      string
	exchange string

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// New creates a bus publishing to the named exchange. The connection is
// established lazily on first publish; call Connect to fail fast instead.
func New(url, exchange string) *Bus {
	return &Bus{url: url, exchange: exchange}
}

// Connect establishes the connection and declares the exchange.
func (b *Bus) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connectLocked()
}

func (b *Bus) connectLocked() error {
	if b.channel != nil && !b.conn.IsClosed() {
		return nil
	}

	conn, err := amqp.Dial(b.url)
	if err != nil {
		return fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		b.exchange,
		"fanout",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	b.conn = conn
	b.channel = channel
	return nil
}

// Publish sends one event to the exchange. The connection is re-established
// if it has dropped since the last publish.
func (b *Bus) Publish(ctx context.Context, eventType logsy.EventType, instance any) error {
	body, err := json.Marshal(logsy.Event{
		Time:     time.Now().UTC(),
		Type:     eventType,
		Instance: instance,
	})
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.connectLocked(); err != nil {
		return err
	}

	err = b.channel.PublishWithContext(ctx,
		b.exchange,
		"",    // routing key ignored by fanout
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Close shuts down the channel and connection.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.channel != nil {
		b.channel.Close()
		b.channel = nil
	}
	if b.conn != nil {
		err := b.conn.Close()
		b.conn = nil
		return err
	}
	return nil
}
