package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/selling-area/internal/inventory"
)

type recordingWriter struct {
	msgs     []kafka.Message
	err      error
	deadline bool
	closed   bool
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	_, w.deadline = ctx.Deadline()
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func sampleEvent() inventory.TransferPostedEvent {
	return inventory.TransferPostedEvent{
		TransferID: uuid.MustParse("6f1c5a1e-4c1b-4f0e-9a35-2d7b1c9e0a11"),
		ItemID:     42,
		LocationID: "A",
		Requested:  8,
		Moved:      8,
		Cost:       decimal.RequireFromString("14.50"),
		Actor:      "clerk",
		PostedAt:   time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestTransferMessage(t *testing.T) {
	msg, err := TransferMessage(sampleEvent())
	require.NoError(t, err)
	require.Equal(t, "42", string(msg.Key))
	require.Equal(t, sampleEvent().PostedAt, msg.Time)
	require.Equal(t, EventTransferPosted, string(msg.Headers[0].Value))
	require.Equal(t, "6f1c5a1e-4c1b-4f0e-9a35-2d7b1c9e0a11", string(msg.Headers[1].Value))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	require.Equal(t, "14.5", decoded["cost"])
	require.Equal(t, float64(8), decoded["moved"])
}

func TestPublishUsesDeadline(t *testing.T) {
	w := &recordingWriter{}
	p := NewPublisher(w)

	require.NoError(t, p.PublishTransferPosted(context.Background(), sampleEvent()))
	require.Len(t, w.msgs, 1)
	require.True(t, w.deadline)

	require.NoError(t, p.Close())
	require.True(t, w.closed)
}

func TestPublishWrapsWriterError(t *testing.T) {
	boom := errors.New("leader not available")
	p := NewPublisher(&recordingWriter{err: boom})

	err := p.PublishTransferPosted(context.Background(), sampleEvent())
	require.ErrorIs(t, err, boom)
}
