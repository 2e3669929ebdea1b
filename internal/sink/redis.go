package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/internal/ingestion/batcher"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/pkg/redis"
)

// Redis stores each document as a JSON string under "<index>:<id>".
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedis(ctx context.Context, rawURL string, cfg config.RedisConfig) (*Redis, error) {
	client, err := redis.NewClient(ctx, rawURL, cfg)
	if err != nil {
		return nil, err
	}
	return &Redis{
		client: client,
		ttl:    cfg.KeyTTL,
		logger: slog.Default().With("component", "redis-sink"),
	}, nil
}

func (r *Redis) Name() string { return "redis" }

// Key returns the Redis key for a document.
func Key(index, id string) string {
	return index + ":" + id
}

func (r *Redis) Bulk(ctx context.Context, index string, chunk *batcher.Chunk) (*BulkResponse, error) {
	start := time.Now()
	noteIgnoredPipeline(r.logger, chunk)
	entries := make([]redis.Entry, len(chunk.Documents))
	for i, doc := range chunk.Documents {
		body, err := json.Marshal(doc.Record)
		if err != nil {
			return nil, fmt.Errorf("encoding document %s: %w", doc.ID, err)
		}
		entries[i] = redis.Entry{Key: Key(index, doc.ID), Value: body}
	}

	errs, err := r.client.SetMany(ctx, entries, r.ttl)
	if err != nil {
		return nil, err
	}
	results := make([]ItemResult, len(chunk.Documents))
	for i, doc := range chunk.Documents {
		results[i] = ItemResult{Index: index, ID: doc.ID, Status: http.StatusOK}
		if errs[i] != nil {
			results[i].Status = http.StatusInternalServerError
			results[i].Error = itemError("redis_error", errs[i])
		}
	}
	return newResponse(time.Since(start).Milliseconds(), results), nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}

func (r *Redis) Close() error {
	return r.client.Close()
}
