package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/pkg/config"
	"github.com/segmentio/kafka-go"
)

// Message is the unit of data published to Kafka. Key is used for partition
// hashing; Topic is chosen per message.
type Message struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

// Producer publishes pre-encoded messages to any topic on a cluster.
type Producer struct {
	brokers []string
	writer  *kafka.Writer
	logger  *slog.Logger
}

// NewProducer creates a Producer for brokers. The writer has no fixed topic;
// each Message names its own.
func NewProducer(brokers []string, cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchSize:              100,
		BatchTimeout:           cfg.BatchTimeout,
		MaxAttempts:            cfg.MaxAttempts,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		Async:                  false,
	}
	return &Producer{
		brokers: brokers,
		writer:  w,
		logger:  slog.Default().With("component", "kafka-producer"),
	}
}

// PublishBatch writes msgs synchronously in a single call. The returned
// slice holds one entry per message, nil for messages the cluster
// acknowledged. A non-nil error means the batch as a whole failed.
func (p *Producer) PublishBatch(ctx context.Context, msgs []Message) ([]error, error) {
	messages := make([]kafka.Message, 0, len(msgs))
	for _, m := range msgs {
		km := kafka.Message{
			Topic: m.Topic,
			Key:   []byte(m.Key),
			Value: m.Value,
		}
		for k, v := range m.Headers {
			km.Headers = append(km.Headers, kafka.Header{Key: k, Value: []byte(v)})
		}
		messages = append(messages, km)
	}

	results := make([]error, len(msgs))
	err := p.writer.WriteMessages(ctx, messages...)
	if err == nil {
		p.logger.Debug("batch published", "count", len(messages))
		return results, nil
	}

	var werrs kafka.WriteErrors
	if errors.As(err, &werrs) && len(werrs) == len(msgs) {
		copy(results, werrs)
		p.logger.Warn("batch partially published",
			"count", len(messages),
			"failed", werrs.Count(),
		)
		return results, nil
	}
	p.logger.Error("failed to publish batch",
		"count", len(messages),
		"error", err,
	)
	return results, fmt.Errorf("publishing batch to kafka: %w", err)
}

// Ping dials each broker until one answers.
func (p *Producer) Ping(ctx context.Context) error {
	var lastErr error
	for _, b := range p.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", b)
		if err != nil {
			lastErr = err
			continue
		}
		conn.Close()
		return nil
	}
	if lastErr == nil {
		lastErr = &net.AddrError{Err: "no brokers configured"}
	}
	return fmt.Errorf("dialing kafka: %w", lastErr)
}

// Close flushes pending writes and closes the underlying Kafka writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
