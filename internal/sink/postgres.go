package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/internal/ingestion/batcher"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/pkg/postgres"
	"github.com/lib/pq"
)

// Postgres upserts documents into a table named after the index, one
// transaction per chunk. The table is created on first use.
type Postgres struct {
	client *postgres.Client
	logger *slog.Logger

	mu     sync.Mutex
	tables map[string]bool
}

func NewPostgres(ctx context.Context, dsn string, cfg config.PostgresConfig) (*Postgres, error) {
	client, err := postgres.New(ctx, dsn, cfg)
	if err != nil {
		return nil, err
	}
	return &Postgres{
		client: client,
		logger: slog.Default().With("component", "postgres-sink"),
		tables: make(map[string]bool),
	}, nil
}

func (p *Postgres) Name() string { return "postgres" }

func createTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	doc JSONB NOT NULL,
	loaded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, pq.QuoteIdentifier(table))
}

// upsertSQL returns true in its single column when the row was inserted
// rather than updated.
func upsertSQL(table string) string {
	return fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, loaded_at = NOW()
RETURNING (xmax = 0)`, pq.QuoteIdentifier(table))
}

func (p *Postgres) ensureTable(ctx context.Context, table string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tables[table] {
		return nil
	}
	if _, err := p.client.DB.ExecContext(ctx, createTableSQL(table)); err != nil {
		return fmt.Errorf("creating table %s: %w", table, err)
	}
	p.tables[table] = true
	p.logger.Info("table ready", "table", table)
	return nil
}

// Bulk writes the chunk in one transaction. A statement rejected by the
// server rolls the whole chunk back and is reported as a failed item;
// anything else is a transport error.
func (p *Postgres) Bulk(ctx context.Context, index string, chunk *batcher.Chunk) (*BulkResponse, error) {
	start := time.Now()
	noteIgnoredPipeline(p.logger, chunk)
	if err := p.ensureTable(ctx, index); err != nil {
		return nil, err
	}

	results := make([]ItemResult, 0, chunk.Len())
	var rejected *pq.Error
	err := p.client.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertSQL(index))
		if err != nil {
			return fmt.Errorf("preparing upsert: %w", err)
		}
		defer stmt.Close()

		for _, doc := range chunk.Documents {
			body, err := json.Marshal(doc.Record)
			if err != nil {
				return fmt.Errorf("encoding document %s: %w", doc.ID, err)
			}
			var inserted bool
			if err := stmt.QueryRowContext(ctx, doc.ID, body).Scan(&inserted); err != nil {
				if errors.As(err, &rejected) {
					results = append(results, ItemResult{
						Index:  index,
						ID:     doc.ID,
						Status: http.StatusBadRequest,
						Error:  itemError(rejected.Code.Name(), rejected),
					})
				}
				return fmt.Errorf("upserting document %s: %w", doc.ID, err)
			}
			status := http.StatusOK
			if inserted {
				status = http.StatusCreated
			}
			results = append(results, ItemResult{Index: index, ID: doc.ID, Status: status})
		}
		return nil
	})
	if err != nil {
		if rejected == nil {
			return nil, err
		}
		// The transaction was rolled back, so earlier rows were not kept.
		for i := range results[:len(results)-1] {
			results[i].Status = http.StatusConflict
			results[i].Error = itemError("transaction_rolled_back", errors.New("chunk rolled back"))
		}
	}
	return newResponse(time.Since(start).Milliseconds(), results), nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

func (p *Postgres) Close() error {
	return p.client.Close()
}
