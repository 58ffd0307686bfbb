// Package kafka publishes synchronized order changes to a Kafka topic, one
// message per order keyed by order reference.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"betsync/internal/exchange/common"
	"betsync/internal/ordersync"
)

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Event is the message value.
type Event struct {
	Seq      int64        `json:"seq"`
	Snapshot bool         `json:"snapshot"`
	Order    common.Order `json:"order"`
}

type Sink struct {
	writer writer
}

func NewSink(brokers []string, topic string) *Sink {
	return &Sink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (s *Sink) Name() string { return "kafka" }

func (s *Sink) StoreOrders(ctx context.Context, u ordersync.Update) error {
	if len(u.Orders) == 0 {
		return nil
	}
	seq := []byte(strconv.FormatInt(u.Seq, 10))
	msgs := make([]kafka.Message, 0, len(u.Orders))
	for _, o := range u.Orders {
		value, err := json.Marshal(Event{Seq: u.Seq, Snapshot: u.Full, Order: o})
		if err != nil {
			return fmt.Errorf("marshal order %s: %w", o.Ref, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:     []byte(o.Ref),
			Value:   value,
			Headers: []kafka.Header{{Key: "seq", Value: seq}},
		})
	}
	if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d orders: %w", len(msgs), err)
	}
	return nil
}

func (s *Sink) Close() error { return s.writer.Close() }
