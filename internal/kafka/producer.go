package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/noah-isme/resto-pricing/internal/events"
)

// MessageWriter is satisfied by *kafkago.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Producer publishes domain events to a Kafka topic, keyed by aggregate id.
type Producer struct {
	w       MessageWriter
	timeout time.Duration
}

// NewProducer builds a producer for the given brokers and topic.
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		w: &kafkago.Writer{
			Addr:                   kafkago.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafkago.Hash{},
			RequiredAcks:           kafkago.RequireAll,
			AllowAutoTopicCreation: true,
		},
		timeout: 5 * time.Second,
	}
}

// NewProducerWithWriter wraps an existing writer.
func NewProducerWithWriter(w MessageWriter, timeout time.Duration) *Producer {
	return &Producer{w: w, timeout: timeout}
}

// Publish writes the event envelope synchronously so callers see broker errors.
func (p *Producer) Publish(ctx context.Context, event events.Event) error {
	if p == nil || p.w == nil {
		return errors.New("kafka: producer not configured")
	}
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	return p.w.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(event.AggregateID.String()),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafkago.Header{
			{Key: "x-event-type", Value: []byte(event.Topic)},
			{Key: "x-event-version", Value: []byte("1")},
		},
	})
}

// Close flushes pending writes.
func (p *Producer) Close() error {
	if p == nil || p.w == nil {
		return nil
	}
	return p.w.Close()
}

// ParseBrokers splits a comma separated broker list.
func ParseBrokers(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Ping dials the first reachable broker. Used by the readiness probe.
func Ping(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return errors.New("kafka: no brokers configured")
	}
	var errs []error
	for _, broker := range brokers {
		conn, err := kafkago.DialContext(ctx, "tcp", broker)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return conn.Close()
	}
	return errors.Join(errs...)
}
