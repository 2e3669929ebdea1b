package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/internal/ingestion/batcher"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/pkg/kafka"
)

// PipelineHeader carries the processing pipeline name on each message so
// consumers can apply it.
const PipelineHeader = "pipeline"

// Kafka publishes one message per document to the topic named by the index,
// keyed by document ID.
type Kafka struct {
	producer *kafka.Producer
	logger   *slog.Logger
}

// Brokers lists the brokers named by a kafka:// URL: the host plus any
// "broker" query parameters, e.g. kafka://k1:9092?broker=k2:9092.
func Brokers(u *url.URL) []string {
	brokers := []string{u.Host}
	for _, b := range u.Query()["broker"] {
		for _, addr := range strings.Split(b, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				brokers = append(brokers, addr)
			}
		}
	}
	return brokers
}

func NewKafka(u *url.URL, cfg config.KafkaConfig) (*Kafka, error) {
	return &Kafka{
		producer: kafka.NewProducer(Brokers(u), cfg),
		logger:   slog.Default().With("component", "kafka-sink"),
	}, nil
}

func (k *Kafka) Name() string { return "kafka" }

func (k *Kafka) Bulk(ctx context.Context, index string, chunk *batcher.Chunk) (*BulkResponse, error) {
	start := time.Now()
	msgs := make([]kafka.Message, len(chunk.Documents))
	for i, doc := range chunk.Documents {
		body, err := json.Marshal(doc.Record)
		if err != nil {
			return nil, fmt.Errorf("encoding document %s: %w", doc.ID, err)
		}
		msgs[i] = kafka.Message{Topic: index, Key: doc.ID, Value: body}
		if p := chunk.Actions[i].Index.Pipeline; p != "" {
			msgs[i].Headers = map[string]string{PipelineHeader: p}
		}
	}

	errs, err := k.producer.PublishBatch(ctx, msgs)
	if err != nil {
		return nil, err
	}
	results := make([]ItemResult, len(chunk.Documents))
	for i, doc := range chunk.Documents {
		results[i] = ItemResult{Index: index, ID: doc.ID, Status: http.StatusCreated}
		if errs[i] != nil {
			results[i].Status = http.StatusServiceUnavailable
			results[i].Error = itemError("kafka_error", errs[i])
		}
	}
	return newResponse(time.Since(start).Milliseconds(), results), nil
}

func (k *Kafka) Ping(ctx context.Context) error {
	return k.producer.Ping(ctx)
}

func (k *Kafka) Close() error {
	return k.producer.Close()
}
