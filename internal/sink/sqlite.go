package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/internal/ingestion/batcher"
)

// SQLite upserts documents into a local database file, one table per index
// and one transaction per chunk.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger

	mu     sync.Mutex
	tables map[string]bool
}

// NewSQLite opens or creates the database at path. Parent directories are
// created if needed.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL: %w", err)
	}
	return &SQLite{
		db:     db,
		logger: slog.Default().With("component", "sqlite-sink", "path", path),
		tables: make(map[string]bool),
	}, nil
}

func (s *SQLite) Name() string { return "sqlite" }

// quoteSQLite quotes an identifier the way SQLite expects.
func quoteSQLite(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (s *SQLite) ensureTable(ctx context.Context, table string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tables[table] {
		return nil
	}
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		doc TEXT NOT NULL,
		loaded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`, quoteSQLite(table))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("creating table %s: %w", table, err)
	}
	s.tables[table] = true
	return nil
}

func (s *SQLite) Bulk(ctx context.Context, index string, chunk *batcher.Chunk) (*BulkResponse, error) {
	start := time.Now()
	noteIgnoredPipeline(s.logger, chunk)
	if err := s.ensureTable(ctx, index); err != nil {
		return nil, err
	}
	table := quoteSQLite(index)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	exists, err := tx.PrepareContext(ctx, fmt.Sprintf(`SELECT 1 FROM %s WHERE id = ?`, table))
	if err != nil {
		return nil, fmt.Errorf("preparing lookup: %w", err)
	}
	defer exists.Close()
	upsert, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET doc = excluded.doc, loaded_at = CURRENT_TIMESTAMP`, table))
	if err != nil {
		return nil, fmt.Errorf("preparing upsert: %w", err)
	}
	defer upsert.Close()

	results := make([]ItemResult, len(chunk.Documents))
	for i, doc := range chunk.Documents {
		body, err := json.Marshal(doc.Record)
		if err != nil {
			return nil, fmt.Errorf("encoding document %s: %w", doc.ID, err)
		}
		status := http.StatusCreated
		var one int
		switch err := exists.QueryRowContext(ctx, doc.ID).Scan(&one); err {
		case nil:
			status = http.StatusOK
		case sql.ErrNoRows:
		default:
			return nil, fmt.Errorf("looking up document %s: %w", doc.ID, err)
		}
		if _, err := upsert.ExecContext(ctx, doc.ID, string(body)); err != nil {
			return nil, fmt.Errorf("upserting document %s: %w", doc.ID, err)
		}
		results[i] = ItemResult{Index: index, ID: doc.ID, Status: status}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return newResponse(time.Since(start).Milliseconds(), results), nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
