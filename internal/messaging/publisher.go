// Package messaging publishes committed shelf movements to Kafka.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/odyssey-erp/selling-area/internal/inventory"
)

// EventTransferPosted is the event-type header of transfer messages.
const EventTransferPosted = "inventory.transfer.posted"

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes inventory events to one topic.
type Publisher struct {
	writer  MessageWriter
	timeout time.Duration
}

// NewKafkaPublisher builds a publisher over a kafka.Writer for the brokers.
func NewKafkaPublisher(brokers []string, topic string) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Snappy,
	}
	return NewPublisher(writer)
}

// NewPublisher wraps an existing writer.
func NewPublisher(writer MessageWriter) *Publisher {
	return &Publisher{writer: writer, timeout: 5 * time.Second}
}

// PublishTransferPosted implements inventory.EventPublisher. Messages are
// keyed by item so one item's transfers stay ordered within a partition.
func (p *Publisher) PublishTransferPosted(ctx context.Context, evt inventory.TransferPostedEvent) error {
	msg, err := TransferMessage(evt)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("messaging: write transfer %s: %w", evt.TransferID, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// TransferMessage encodes evt as a Kafka message.
func TransferMessage(evt inventory.TransferPostedEvent) (kafka.Message, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("messaging: marshal transfer event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatInt(evt.ItemID, 10)),
		Value: body,
		Time:  evt.PostedAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(EventTransferPosted)},
			{Key: "transfer-id", Value: []byte(evt.TransferID.String())},
		},
	}, nil
}
