package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asquebay/restaurant-order-service/internal/model"
)

type fakeChannel struct {
	exchange string
	key      string
	msgs     []amqp091.Publishing
	err      error
	closed   bool
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, _, _ bool, msg amqp091.Publishing) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("publish without deadline")
	}
	f.exchange, f.key = exchange, key
	f.msgs = append(f.msgs, msg)
	return f.err
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyStatusChange(t *testing.T) {
	ch := &fakeChannel{}
	p := newPublisher(ch, "notifications_fanout", discard())

	event := model.StatusEvent{
		OrderID:     3,
		OrderNumber: "ORD-ABCD1234",
		TableID:     1,
		OldStatus:   model.OrderStatusPending,
		NewStatus:   model.OrderStatusProcessing,
		Timestamp:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.NotifyStatusChange(context.Background(), event))

	require.Len(t, ch.msgs, 1)
	assert.Equal(t, "notifications_fanout", ch.exchange)
	assert.Empty(t, ch.key)
	assert.Equal(t, "application/json", ch.msgs[0].ContentType)

	var got model.StatusEvent
	require.NoError(t, json.Unmarshal(ch.msgs[0].Body, &got))
	assert.Equal(t, event, got)
}

func TestNotifyStatusChange_Error(t *testing.T) {
	ch := &fakeChannel{err: amqp091.ErrClosed}
	p := newPublisher(ch, "notifications_fanout", discard())

	err := p.NotifyStatusChange(context.Background(), model.StatusEvent{OrderID: 1})
	assert.ErrorIs(t, err, amqp091.ErrClosed)
}

func TestClose(t *testing.T) {
	ch := &fakeChannel{}
	p := newPublisher(ch, "notifications_fanout", discard())

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}
