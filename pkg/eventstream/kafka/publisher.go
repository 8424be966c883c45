// Package kafka publishes answer events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/memorag/pkg/eventstream"
)

// DefaultTopic receives answer events when no topic is configured.
const DefaultTopic = "memorag.answers"

// Config configures a Publisher.
type Config struct {
	// Brokers are host:port addresses. Required.
	Brokers []string

	Topic string

	// BatchTimeout bounds how long messages wait to be batched.
	BatchTimeout time.Duration

	Logger *slog.Logger
}

// Publisher writes answer events keyed by answer ID, so every event for one
// answer lands on the same partition.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// ParseBrokers splits a comma-separated broker list.
func ParseBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// NewPublisher creates a publisher. It does not dial until the first write.
func NewPublisher(c Config) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	if c.BatchTimeout == 0 {
		c.BatchTimeout = 50 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}

	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(c.Brokers...),
		Topic:                  c.Topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		BatchTimeout:           c.BatchTimeout,
		AllowAutoTopicCreation: true,
	}

	return &Publisher{
		writer: w,
		logger: c.Logger.With("topic", c.Topic),
	}, nil
}

// PublishAnswer writes one event.
func (p *Publisher) PublishAnswer(ctx context.Context, event *eventstream.AnswerRecordedEvent) error {
	msg, err := Message(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing answer event %s: %w", event.EventID, err)
	}
	p.logger.Debug("answer event published", "event_id", event.EventID, "answer_id", event.Answer.ID)
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Message encodes event as a Kafka message.
func Message(event *eventstream.AnswerRecordedEvent) (kafkago.Message, error) {
	if event == nil {
		return kafkago.Message{}, eventstream.ErrNilAnswerEvent
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("encoding answer event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.Answer.ID),
		Value: payload,
		Time:  event.EmittedAt,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "schema_version", Value: []byte(fmt.Sprint(event.SchemaVersion))},
		},
	}, nil
}

var _ eventstream.Publisher = (*Publisher)(nil)
