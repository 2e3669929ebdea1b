package sink

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/internal/ingestion/batcher"
)

func testChunk(n int) *batcher.Chunk {
	b := batcher.New("logs", "", n)
	var c *batcher.Chunk
	for i := 0; i < n; i++ {
		c = b.Add(ingestion.Document{ID: string(rune('a' + i)), Record: ingestion.Record{"i": "x"}})
	}
	return c
}

func newTestElastic(t *testing.T, rawURL string) *Elastic {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatal(err)
	}
	e, err := NewElastic(u)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestElasticBulkRequest(t *testing.T) {
	var gotPath, gotType, gotUser, gotPass string
	var lines int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotUser, gotPass, _ = r.BasicAuth()
		sc := bufio.NewScanner(r.Body)
		for sc.Scan() {
			lines++
		}
		w.Write([]byte(`{"took":1,"errors":false,"items":[]}`))
	}))
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	u.User = url.UserPassword("elastic", "changeme")
	u.Path = "/es/"
	e := newTestElastic(t, u.String())

	resp, err := e.Bulk(context.Background(), "logs", testChunk(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Errors {
		t.Error("expected errors=false")
	}
	if gotPath != "/es/logs/_bulk" {
		t.Errorf("expected /es/logs/_bulk, got %s", gotPath)
	}
	if gotType != "application/x-ndjson" {
		t.Errorf("expected NDJSON content type, got %s", gotType)
	}
	if gotUser != "elastic" || gotPass != "changeme" {
		t.Errorf("expected basic auth elastic/changeme, got %s/%s", gotUser, gotPass)
	}
	if lines != 6 {
		t.Errorf("expected 6 payload lines, got %d", lines)
	}
	if strings.Contains(e.BulkURL("logs"), "changeme") {
		t.Error("credentials leaked into request URL")
	}
}

func TestElasticBulkHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		w.Write([]byte(`{"error":"too big"}`))
	}))
	defer srv.Close()

	_, err := newTestElastic(t, srv.URL).Bulk(context.Background(), "logs", testChunk(1))
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Code != http.StatusRequestEntityTooLarge || string(se.Body) != `{"error":"too big"}` {
		t.Errorf("unexpected status error: %d %s", se.Code, se.Body)
	}
}

func TestElasticPing(t *testing.T) {
	status := http.StatusUnauthorized
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()
	e := newTestElastic(t, srv.URL)

	if err := e.Ping(context.Background()); err != nil {
		t.Errorf("expected 401 to count as reachable, got %v", err)
	}
	status = http.StatusServiceUnavailable
	if err := e.Ping(context.Background()); err == nil {
		t.Error("expected 503 to fail the probe")
	}
	srv.Close()
	if err := e.Ping(context.Background()); err == nil {
		t.Error("expected closed server to fail the probe")
	}
}
