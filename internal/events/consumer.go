package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/AntonioCarvalhoRepo/ReservationWithDocker/internal/db"
	"github.com/AntonioCarvalhoRepo/ReservationWithDocker/internal/repo"
	jsoniter "github.com/json-iterator/go"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// errMalformed marks messages that will never be processable
var errMalformed = errors.New("malformed catalog event")

// BookStore is the part of the storage gateway the consumer writes to
type BookStore interface {
	UpsertBook(ctx context.Context, book *db.Book) error
	DeleteBook(ctx context.Context, id string) error
}

// Consumer keeps the local books table in sync with catalog events
type Consumer struct {
	channel     *amqp.Channel
	serviceName string
	books       BookStore
	log         *zap.Logger
}

// NewConsumer opens a channel on conn and declares the exchange
func NewConsumer(conn *amqp.Connection, serviceName string, books BookStore, log *zap.Logger) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchangeName,
		exchangeType,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Consumer{
		channel:     ch,
		serviceName: serviceName,
		books:       books,
		log:         log,
	}, nil
}

// Start binds the service queue and processes deliveries until ctx is done
// or the channel closes
func (c *Consumer) Start(ctx context.Context) error {
	queueName := fmt.Sprintf("%s.catalog.queue", c.serviceName)

	queue, err := c.channel.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	for _, key := range []string{EventTypeBookUpserted, EventTypeBookRemoved} {
		if err := c.channel.QueueBind(queue.Name, key, exchangeName, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue to %s: %w", key, err)
		}
		c.log.Info("Listening for events", zap.String("routing_key", key))
	}

	msgs, err := c.channel.Consume(
		queue.Name,
		c.serviceName, // consumer tag
		false,         // auto-ack
		false,         // exclusive
		false,         // no-local
		false,         // no-wait
		nil,           // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			c.handleMessage(ctx, msg)
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, msg amqp.Delivery) {
	err := c.process(ctx, msg.RoutingKey, msg.Body)
	switch {
	case err == nil:
		msg.Ack(false)
	case errors.Is(err, errMalformed):
		c.log.Warn("Dropping catalog event", zap.String("routing_key", msg.RoutingKey), zap.Error(err))
		msg.Nack(false, false)
	default:
		c.log.Error("Failed to apply catalog event, requeueing", zap.String("routing_key", msg.RoutingKey), zap.Error(err))
		msg.Nack(false, true)
	}
}

// process applies one catalog event to the books table
func (c *Consumer) process(ctx context.Context, routingKey string, body []byte) error {
	var event CatalogEvent
	if err := jsoniter.ConfigFastest.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if event.Payload.BookID == "" {
		return fmt.Errorf("%w: book_id is required", errMalformed)
	}

	switch routingKey {
	case EventTypeBookUpserted:
		if event.Payload.Copies < 0 {
			return fmt.Errorf("%w: copies must not be negative", errMalformed)
		}
		return c.books.UpsertBook(ctx, &db.Book{
			ID:     event.Payload.BookID,
			Title:  event.Payload.Title,
			Author: event.Payload.Author,
			ISBN:   event.Payload.ISBN,
			Copies: event.Payload.Copies,
		})
	case EventTypeBookRemoved:
		err := c.books.DeleteBook(ctx, event.Payload.BookID)
		if errors.Is(err, repo.ErrBookNotFound) {
			return nil
		}
		return err
	default:
		return fmt.Errorf("%w: unknown routing key %q", errMalformed, routingKey)
	}
}

// Close closes the consumer channel
func (c *Consumer) Close() error {
	if c.channel != nil {
		return c.channel.Close()
	}
	return nil
}
