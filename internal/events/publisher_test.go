package events

import (
	"context"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestAwaitConfirmSkipsLateConfirmations(t *testing.T) {
	confirms := make(chan amqp.Confirmation, 3)
	// tags 1 and 2 timed out earlier and were confirmed late
	confirms <- amqp.Confirmation{DeliveryTag: 1, Ack: false}
	confirms <- amqp.Confirmation{DeliveryTag: 2, Ack: true}
	confirms <- amqp.Confirmation{DeliveryTag: 3, Ack: true}

	assert.NoError(t, awaitConfirm(context.Background(), confirms, 3, time.Second))
	assert.Empty(t, confirms)
}

func TestAwaitConfirmNack(t *testing.T) {
	confirms := make(chan amqp.Confirmation, 2)
	confirms <- amqp.Confirmation{DeliveryTag: 4, Ack: true}
	confirms <- amqp.Confirmation{DeliveryTag: 5, Ack: false}

	assert.ErrorIs(t, awaitConfirm(context.Background(), confirms, 5, time.Second), errNotAcknowledged)
}

func TestAwaitConfirmTimeoutWithOnlyStaleConfirmations(t *testing.T) {
	confirms := make(chan amqp.Confirmation, 1)
	confirms <- amqp.Confirmation{DeliveryTag: 6, Ack: true}

	err := awaitConfirm(context.Background(), confirms, 7, 20*time.Millisecond)
	assert.ErrorIs(t, err, errConfirmTimeout)
}

func TestAwaitConfirmClosedAndCanceled(t *testing.T) {
	closed := make(chan amqp.Confirmation)
	close(closed)
	assert.ErrorIs(t, awaitConfirm(context.Background(), closed, 1, time.Second), errConfirmClosed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, awaitConfirm(ctx, make(chan amqp.Confirmation), 1, time.Second), context.Canceled)
}
