package sink

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/blevesearch/bleve/v2"

	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/internal/ingestion/batcher"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/accesslog-loader/pkg/errors"
)

func docsChunk(ids ...string) *batcher.Chunk {
	b := batcher.New("logs", "", len(ids))
	var c *batcher.Chunk
	for _, id := range ids {
		c = b.Add(ingestion.Document{ID: id, Record: ingestion.Record{"cs-method": "GET", "id": id}})
	}
	return c
}

func statuses(resp *BulkResponse) []int {
	out := make([]int, len(resp.Items))
	for i, item := range resp.Items {
		out[i] = item["index"].Status
	}
	return out
}

func TestLocalPath(t *testing.T) {
	tests := map[string]string{
		"sqlite://data/logs.db": "data/logs.db",
		"sqlite:///var/logs.db": "/var/logs.db",
		"bleve:indexes":         "indexes",
		"bleve://":              "",
	}
	for raw, want := range tests {
		u, err := url.Parse(raw)
		if err != nil {
			t.Fatal(err)
		}
		if got := LocalPath(u); got != want {
			t.Errorf("%s: expected %q, got %q", raw, want, got)
		}
	}
}

func TestOpenFileSinkWithoutPath(t *testing.T) {
	_, err := Open(context.Background(), "bleve://", config.Default())
	if !errors.Is(err, apperrors.ErrStartup) {
		t.Errorf("expected startup error, got %v", err)
	}
}

func TestBleveBulk(t *testing.T) {
	root := filepath.Join(t.TempDir(), "indexes")
	s, err := Open(context.Background(), "bleve://"+root, config.Default())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if s.Name() != "bleve" {
		t.Fatalf("expected bleve sink, got %s", s.Name())
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}

	resp, err := s.Bulk(context.Background(), "logs", docsChunk("a1", "b2"))
	if err != nil {
		t.Fatalf("first bulk: %v", err)
	}
	if resp.Errors {
		t.Fatalf("unexpected errors: %s", resp.Body())
	}
	if got := statuses(resp); got[0] != http.StatusCreated || got[1] != http.StatusCreated {
		t.Errorf("expected 201s, got %v", got)
	}

	resp, err = s.Bulk(context.Background(), "logs", docsChunk("a1", "c3"))
	if err != nil {
		t.Fatalf("second bulk: %v", err)
	}
	if got := statuses(resp); got[0] != http.StatusOK || got[1] != http.StatusCreated {
		t.Errorf("expected [200 201], got %v", got)
	}
	s.Close()

	idx, err := bleve.Open(filepath.Join(root, "logs"))
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	count, err := idx.DocCount()
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("expected 3 documents, got %d", count)
	}

	q := bleve.NewTermQuery("GET")
	q.SetField("cs-method")
	res, err := idx.Search(bleve.NewSearchRequest(q))
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 3 {
		t.Errorf("expected keyword match on all 3 documents, got %d", res.Total)
	}
}

func TestSQLiteBulk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "logs.db")
	s, err := Open(context.Background(), "sqlite://"+path, config.Default())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	resp, err := s.Bulk(context.Background(), "access-logs", docsChunk("a1", "b2"))
	if err != nil {
		t.Fatalf("first bulk: %v", err)
	}
	if got := statuses(resp); got[0] != http.StatusCreated || got[1] != http.StatusCreated {
		t.Errorf("expected 201s, got %v", got)
	}

	resp, err = s.Bulk(context.Background(), "access-logs", docsChunk("a1"))
	if err != nil {
		t.Fatalf("second bulk: %v", err)
	}
	if got := statuses(resp); got[0] != http.StatusOK {
		t.Errorf("expected 200 on reload, got %v", got)
	}

	var count int
	if err := s.(*SQLite).db.QueryRow(`SELECT COUNT(*) FROM "access-logs"`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("expected 2 rows, got %d", count)
	}
}
