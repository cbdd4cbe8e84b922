package events

import (
	"context"
	"time"

	"github.com/AntonioCarvalhoRepo/ReservationWithDocker/internal/db"
	"github.com/google/uuid"
)

const (
	exchangeName = "bookstore.events"
	exchangeType = "topic"

	eventVersion = "1.0.0"

	// Published by this service
	EventTypeReservationCreated  = "reservation.created"
	EventTypeReservationCanceled = "reservation.canceled"
	EventTypeReservationsExpired = "reservation.expired"

	// Consumed from the catalog
	EventTypeBookUpserted = "catalog.book.upserted"
	EventTypeBookRemoved  = "catalog.book.removed"
)

// Event is the envelope shared by every message on the exchange
type Event struct {
	EventID       string                 `json:"event_id"`
	EventType     string                 `json:"event_type"`
	EventVersion  string                 `json:"event_version"`
	Timestamp     string                 `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Payload       map[string]interface{} `json:"payload"`
}

type correlationKey struct{}

// WithCorrelationID attaches a correlation ID that published events will carry
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the correlation ID carried by ctx, if any
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

func newEvent(ctx context.Context, eventType string, payload map[string]interface{}) Event {
	return Event{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		EventVersion:  eventVersion,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		CorrelationID: CorrelationID(ctx),
		Payload:       payload,
	}
}

func reservationCreated(ctx context.Context, r *db.Reservation) Event {
	return newEvent(ctx, EventTypeReservationCreated, map[string]interface{}{
		"reservation_id": r.ID,
		"user_id":        r.UserID,
		"book_id":        r.BookID,
		"created":        r.Created.UTC().Format(time.RFC3339Nano),
	})
}

func reservationCanceled(ctx context.Context, r *db.Reservation, previous db.ReservationStatus) Event {
	return newEvent(ctx, EventTypeReservationCanceled, map[string]interface{}{
		"reservation_id":  r.ID,
		"user_id":         r.UserID,
		"book_id":         r.BookID,
		"previous_status": previous.String(),
	})
}

func reservationsExpired(ctx context.Context, count int64, cutoff time.Time) Event {
	payload := map[string]interface{}{
		"count": count,
	}
	if !cutoff.IsZero() {
		payload["created_before"] = cutoff.UTC().Format(time.RFC3339)
	}
	return newEvent(ctx, EventTypeReservationsExpired, payload)
}

// BookPayload is the catalog's view of a book
type BookPayload struct {
	BookID string `json:"book_id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	ISBN   string `json:"isbn"`
	Copies int64  `json:"copies"`
}

// CatalogEvent is a book lifecycle message emitted by the catalog
type CatalogEvent struct {
	EventID      string      `json:"event_id"`
	EventType    string      `json:"event_type"`
	EventVersion string      `json:"event_version"`
	Timestamp    string      `json:"timestamp"`
	Payload      BookPayload `json:"payload"`
}
