package sink

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/internal/ingestion/batcher"
)

// Bleve writes documents into local bleve indexes, one directory per index
// name under root. Log fields are indexed as exact keywords.
type Bleve struct {
	root   string
	logger *slog.Logger

	mu      sync.Mutex
	indexes map[string]bleve.Index
}

func NewBleve(root string) (*Bleve, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating index root: %w", err)
	}
	return &Bleve{
		root:    root,
		logger:  slog.Default().With("component", "bleve-sink", "root", root),
		indexes: make(map[string]bleve.Index),
	}, nil
}

func (b *Bleve) Name() string { return "bleve" }

func newIndexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = keyword.Name
	return im
}

// open returns the index for name, creating it on first use.
func (b *Bleve) open(name string) (bleve.Index, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if idx, ok := b.indexes[name]; ok {
		return idx, nil
	}
	path := filepath.Join(b.root, name)
	var (
		idx bleve.Index
		err error
	)
	if _, statErr := os.Stat(path); statErr == nil {
		idx, err = bleve.Open(path)
	} else {
		idx, err = bleve.New(path, newIndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("opening bleve index %s: %w", path, err)
	}
	b.indexes[name] = idx
	b.logger.Info("index ready", "index", name)
	return idx, nil
}

// Bulk indexes the chunk as one bleve batch. Documents already present are
// replaced and reported with status 200.
func (b *Bleve) Bulk(ctx context.Context, index string, chunk *batcher.Chunk) (*BulkResponse, error) {
	start := time.Now()
	noteIgnoredPipeline(b.logger, chunk)
	idx, err := b.open(index)
	if err != nil {
		return nil, err
	}

	batch := idx.NewBatch()
	results := make([]ItemResult, len(chunk.Documents))
	for i, doc := range chunk.Documents {
		results[i] = ItemResult{Index: index, ID: doc.ID, Status: http.StatusCreated}
		if existing, err := idx.Document(doc.ID); err == nil && existing != nil {
			results[i].Status = http.StatusOK
		}
		if err := batch.Index(doc.ID, map[string]string(doc.Record)); err != nil {
			results[i].Status = http.StatusBadRequest
			results[i].Error = itemError("mapper_parsing_exception", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := idx.Batch(batch); err != nil {
		return nil, fmt.Errorf("executing bleve batch: %w", err)
	}
	return newResponse(time.Since(start).Milliseconds(), results), nil
}

// Ping checks that the root directory is still reachable.
func (b *Bleve) Ping(ctx context.Context) error {
	info, err := os.Stat(b.root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", b.root)
	}
	return nil
}

func (b *Bleve) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var firstErr error
	for name, idx := range b.indexes {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing index %s: %w", name, err)
		}
	}
	b.indexes = map[string]bleve.Index{}
	return firstErr
}
