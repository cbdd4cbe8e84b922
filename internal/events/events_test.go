package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AntonioCarvalhoRepo/ReservationWithDocker/internal/db"
	"github.com/AntonioCarvalhoRepo/ReservationWithDocker/internal/repo"
	"github.com/AntonioCarvalhoRepo/ReservationWithDocker/internal/reservation"
	"github.com/AntonioCarvalhoRepo/ReservationWithDocker/pkg/logger"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestConsumer(t *testing.T) (*Consumer, *repo.Store) {
	database, err := db.Connect(db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.RunMigrations(database))

	log := logger.NewLogger("test", "error")
	store := repo.NewStore(database, log)

	return &Consumer{serviceName: "test", books: store, log: log}, store
}

func catalogBody(t *testing.T, eventType string, payload BookPayload) []byte {
	body, err := jsoniter.ConfigFastest.Marshal(CatalogEvent{
		EventID:      "evt-1",
		EventType:    eventType,
		EventVersion: eventVersion,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Payload:      payload,
	})
	require.NoError(t, err)
	return body
}

func TestConsumerUpsertsAndRemovesBooks(t *testing.T) {
	consumer, store := setupTestConsumer(t)
	ctx := context.Background()

	payload := BookPayload{BookID: "b1", Title: "Solaris", Author: "Stanisław Lem", ISBN: "978-0156027601", Copies: 2}
	require.NoError(t, consumer.process(ctx, EventTypeBookUpserted, catalogBody(t, EventTypeBookUpserted, payload)))

	book, err := store.GetBook(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "Solaris", book.Title)
	assert.Equal(t, int64(2), book.Copies)

	payload.Title = "Solaris (2nd ed.)"
	payload.Copies = 4
	require.NoError(t, consumer.process(ctx, EventTypeBookUpserted, catalogBody(t, EventTypeBookUpserted, payload)))
	book, err = store.GetBook(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "Solaris (2nd ed.)", book.Title)
	assert.Equal(t, int64(2), book.Copies)

	require.NoError(t, consumer.process(ctx, EventTypeBookRemoved, catalogBody(t, EventTypeBookRemoved, BookPayload{BookID: "b1"})))
	_, err = store.GetBook(ctx, "b1")
	assert.Equal(t, repo.ErrBookNotFound, err)

	// Removing twice is harmless
	assert.NoError(t, consumer.process(ctx, EventTypeBookRemoved, catalogBody(t, EventTypeBookRemoved, BookPayload{BookID: "b1"})))
}

func TestConsumerUpsertKeepsReservedCopies(t *testing.T) {
	consumer, store := setupTestConsumer(t)
	ctx := context.Background()
	svc := reservation.NewService(store, NopPublisher{}, nil, reservation.DefaultPolicy(), logger.NewLogger("test", "error"))

	bookID := uuid.NewString()
	payload := BookPayload{BookID: bookID, Title: "Roadside Picnic", Author: "Arkady and Boris Strugatsky", ISBN: "978-1613743416", Copies: 1}
	require.NoError(t, consumer.process(ctx, EventTypeBookUpserted, catalogBody(t, EventTypeBookUpserted, payload)))

	_, err := svc.CreateReservation(ctx, uuid.NewString(), bookID)
	require.NoError(t, err)

	payload.Title = "Roadside Picnic (Gollancz)"
	require.NoError(t, consumer.process(ctx, EventTypeBookUpserted, catalogBody(t, EventTypeBookUpserted, payload)))

	book, err := store.GetBook(ctx, bookID)
	require.NoError(t, err)
	assert.Equal(t, "Roadside Picnic (Gollancz)", book.Title)
	assert.Equal(t, int64(0), book.Copies)

	_, err = svc.CreateReservation(ctx, uuid.NewString(), bookID)
	assert.ErrorIs(t, err, reservation.ErrInvalidRequest)
	svc.Wait()
}

func TestConsumerRejectsMalformedEvents(t *testing.T) {
	consumer, _ := setupTestConsumer(t)
	ctx := context.Background()

	err := consumer.process(ctx, EventTypeBookUpserted, []byte("{not json"))
	assert.True(t, errors.Is(err, errMalformed))

	err = consumer.process(ctx, EventTypeBookUpserted, catalogBody(t, EventTypeBookUpserted, BookPayload{Title: "No ID"}))
	assert.True(t, errors.Is(err, errMalformed))

	err = consumer.process(ctx, EventTypeBookUpserted, catalogBody(t, EventTypeBookUpserted, BookPayload{BookID: "b2", Copies: -1}))
	assert.True(t, errors.Is(err, errMalformed))

	err = consumer.process(ctx, "catalog.book.renamed", catalogBody(t, "catalog.book.renamed", BookPayload{BookID: "b2"}))
	assert.True(t, errors.Is(err, errMalformed))
}

func TestEventEnvelopes(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "req-42")
	r := &db.Reservation{ID: "r1", UserID: "u1", BookID: "b1", Created: time.Now(), Status: db.StatusActive}

	created := reservationCreated(ctx, r)
	assert.Equal(t, EventTypeReservationCreated, created.EventType)
	assert.Equal(t, "req-42", created.CorrelationID)
	assert.Equal(t, "r1", created.Payload["reservation_id"])
	assert.NotEmpty(t, created.EventID)

	canceled := reservationCanceled(context.Background(), r, db.StatusExpired)
	assert.Empty(t, canceled.CorrelationID)
	assert.Equal(t, "EXPIRED", canceled.Payload["previous_status"])

	expired := reservationsExpired(ctx, 7, time.Time{})
	assert.Equal(t, int64(7), expired.Payload["count"])
	_, hasCutoff := expired.Payload["created_before"]
	assert.False(t, hasCutoff)

	expired = reservationsExpired(ctx, 1, time.Now())
	assert.Contains(t, expired.Payload, "created_before")
}

func TestNopPublisher(t *testing.T) {
	var p NopPublisher
	ctx := context.Background()

	assert.NoError(t, p.PublishReservationCreated(ctx, &db.Reservation{}))
	assert.NoError(t, p.PublishReservationCanceled(ctx, &db.Reservation{}, db.StatusActive))
	assert.NoError(t, p.PublishReservationsExpired(ctx, 0, time.Time{}))
	assert.True(t, p.IsHealthy())
}
