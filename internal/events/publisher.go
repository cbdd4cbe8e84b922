package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AntonioCarvalhoRepo/ReservationWithDocker/internal/db"
	jsoniter "github.com/json-iterator/go"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	maxRetries     = 3
	initialBackoff = 100 * time.Millisecond
	maxBackoff     = 5 * time.Second
	confirmTimeout = 5 * time.Second
)

var (
	errConfirmClosed   = errors.New("confirm channel closed")
	errNotAcknowledged = errors.New("event not acknowledged")
	errConfirmTimeout  = errors.New("confirmation timeout")
)

// Publisher handles event publishing to RabbitMQ
type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	confirms chan amqp.Confirmation
	mu       sync.Mutex // one in-flight publish, so confirms stay in order
	log      *zap.Logger
}

// NewPublisher connects, declares the exchange and enables publisher confirms
func NewPublisher(url string, log *zap.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		exchangeName,
		exchangeType,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	if err := channel.Confirm(false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	log.Info("Connected to RabbitMQ", zap.String("exchange", exchangeName))

	return &Publisher{
		conn:     conn,
		channel:  channel,
		confirms: channel.NotifyPublish(make(chan amqp.Confirmation, 1)),
		log:      log,
	}, nil
}

// PublishReservationCreated publishes a reservation created event
func (p *Publisher) PublishReservationCreated(ctx context.Context, r *db.Reservation) error {
	return p.publishWithRetry(ctx, EventTypeReservationCreated, reservationCreated(ctx, r))
}

// PublishReservationCanceled publishes a reservation canceled event
func (p *Publisher) PublishReservationCanceled(ctx context.Context, r *db.Reservation, previous db.ReservationStatus) error {
	return p.publishWithRetry(ctx, EventTypeReservationCanceled, reservationCanceled(ctx, r, previous))
}

// PublishReservationsExpired publishes the outcome of one sweep. A zero
// cutoff means every reservation was expired.
func (p *Publisher) PublishReservationsExpired(ctx context.Context, count int64, cutoff time.Time) error {
	return p.publishWithRetry(ctx, EventTypeReservationsExpired, reservationsExpired(ctx, count, cutoff))
}

// publishWithRetry publishes an event with exponential backoff retry
func (p *Publisher) publishWithRetry(ctx context.Context, routingKey string, event Event) error {
	body, err := jsoniter.ConfigFastest.Marshal(event)
	if err != nil {
		p.log.Error("Failed to marshal event", zap.Error(err))
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	backoff := initialBackoff
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
		}

		tag := p.channel.GetNextPublishSeqNo()
		err := p.channel.PublishWithContext(
			ctx,
			exchangeName,
			routingKey,
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:   "application/json",
				DeliveryMode:  amqp.Persistent,
				Timestamp:     time.Now(),
				MessageId:     event.EventID,
				CorrelationId: event.CorrelationID,
				Body:          body,
				Headers: amqp.Table{
					"event_type":    event.EventType,
					"event_version": event.EventVersion,
				},
			},
		)
		if err != nil {
			lastErr = err
			p.log.Warn("Failed to publish event, retrying",
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			continue
		}

		lastErr = awaitConfirm(ctx, p.confirms, tag, confirmTimeout)
		switch {
		case lastErr == nil:
			p.log.Debug("Event published",
				zap.String("event_id", event.EventID),
				zap.String("routing_key", routingKey),
			)
			return nil
		case errors.Is(lastErr, errConfirmClosed), ctx.Err() != nil:
			return lastErr
		}

		p.log.Warn("Event publish not confirmed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Uint64("delivery_tag", tag),
			zap.Error(lastErr),
		)
	}

	p.log.Error("Failed to publish event after retries",
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.EventType),
		zap.Int("attempts", maxRetries),
		zap.Error(lastErr),
	)
	return fmt.Errorf("failed to publish event after %d attempts: %w", maxRetries, lastErr)
}

// awaitConfirm waits for the confirmation of the message published with tag.
// Confirmations of earlier messages that arrived after their own timeout are
// discarded.
func awaitConfirm(ctx context.Context, confirms <-chan amqp.Confirmation, tag uint64, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case confirm, ok := <-confirms:
			if !ok {
				return errConfirmClosed
			}
			if confirm.DeliveryTag < tag {
				continue
			}
			if !confirm.Ack {
				return errNotAcknowledged
			}
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return errConfirmTimeout
		}
	}
}

// IsHealthy checks if the publisher connection is healthy
func (p *Publisher) IsHealthy() bool {
	return p.conn != nil && !p.conn.IsClosed()
}

// Connection exposes the broker connection so a consumer can share it
func (p *Publisher) Connection() *amqp.Connection {
	return p.conn
}

// Close closes the publisher connection
func (p *Publisher) Close() error {
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.log.Error("Failed to close channel", zap.Error(err))
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			p.log.Error("Failed to close connection", zap.Error(err))
			return err
		}
	}
	p.log.Info("Publisher closed")
	return nil
}

// NopPublisher drops every event. Used when the broker is unavailable.
type NopPublisher struct{}

func (NopPublisher) PublishReservationCreated(context.Context, *db.Reservation) error { return nil }

func (NopPublisher) PublishReservationCanceled(context.Context, *db.Reservation, db.ReservationStatus) error {
	return nil
}

func (NopPublisher) PublishReservationsExpired(context.Context, int64, time.Time) error { return nil }

func (NopPublisher) IsHealthy() bool { return true }
