// Package sink implements the bulk-write targets a chunk can be submitted
// to. Every sink answers with the same Elasticsearch-shaped BulkResponse so
// the submission verifier does not care which store is behind it.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/internal/ingestion/batcher"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/accesslog-loader/pkg/errors"
)

// Sink writes chunks of documents to a named index.
type Sink interface {
	// Bulk submits every document of chunk to index. A non-nil error is a
	// transport failure; per-document failures are reported in the
	// response.
	Bulk(ctx context.Context, index string, chunk *batcher.Chunk) (*BulkResponse, error)
	Ping(ctx context.Context) error
	Close() error
	Name() string
}

// BulkResponse mirrors the body of an Elasticsearch _bulk reply.
type BulkResponse struct {
	Took   int64      `json:"took"`
	Errors bool       `json:"errors"`
	Items  []BulkItem `json:"items"`
	// Raw is the response body as received, or the marshalled response for
	// sinks that do not speak HTTP.
	Raw []byte `json:"-"`
}

// BulkItem maps the action name ("index") to its result.
type BulkItem map[string]ItemResult

// ItemResult is the outcome of one document.
type ItemResult struct {
	Index  string          `json:"_index,omitempty"`
	ID     string          `json:"_id"`
	Status int             `json:"status"`
	Error  json.RawMessage `json:"error,omitempty"`
}

// Failed reports whether the document was rejected.
func (r ItemResult) Failed() bool {
	return len(r.Error) > 0 || r.Status >= 300
}

// Failed returns the results of every rejected document in order.
func (r *BulkResponse) Failed() []ItemResult {
	var failed []ItemResult
	for _, item := range r.Items {
		for _, res := range item {
			if res.Failed() {
				failed = append(failed, res)
			}
		}
	}
	return failed
}

// Body returns the response body for diagnostics.
func (r *BulkResponse) Body() []byte {
	if r.Raw != nil {
		return r.Raw
	}
	b, _ := json.Marshal(r)
	return b
}

// ItemError is the error object attached to a failed ItemResult.
type ItemError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func itemError(typ string, err error) json.RawMessage {
	b, _ := json.Marshal(ItemError{Type: typ, Reason: err.Error()})
	return b
}

// newResponse builds a BulkResponse for sinks that compute item results
// locally and fills Raw with its JSON form.
func newResponse(took int64, results []ItemResult) *BulkResponse {
	resp := &BulkResponse{Took: took, Items: make([]BulkItem, len(results))}
	for i, res := range results {
		if res.Failed() {
			resp.Errors = true
		}
		resp.Items[i] = BulkItem{"index": res}
	}
	resp.Raw, _ = json.Marshal(resp)
	return resp
}

// DecodeBulkResponse parses a _bulk reply. A body without a boolean
// "errors" field is rejected, since success cannot be verified from it.
func DecodeBulkResponse(body []byte) (*BulkResponse, error) {
	var wire struct {
		Took   int64      `json:"took"`
		Errors *bool      `json:"errors"`
		Items  []BulkItem `json:"items"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decoding bulk response: %w", err)
	}
	if wire.Errors == nil {
		return nil, fmt.Errorf("bulk response has no errors field")
	}
	return &BulkResponse{
		Took:   wire.Took,
		Errors: *wire.Errors,
		Items:  wire.Items,
		Raw:    body,
	}, nil
}

// Open connects to the sink named by rawURL's scheme. Connection and
// configuration failures unwrap to ErrStartup.
func Open(ctx context.Context, rawURL string, cfg *config.Config) (Sink, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrStartup, "parsing sink url: %v", err)
	}

	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case "bleve", "sqlite", "sqlite3":
		if LocalPath(u) == "" {
			return nil, apperrors.Newf(apperrors.ErrStartup, "sink url %q has no path", u.Redacted())
		}
	default:
		if u.Host == "" {
			return nil, apperrors.Newf(apperrors.ErrStartup, "sink url %q has no host", u.Redacted())
		}
	}

	var s Sink
	switch scheme {
	case "http", "https":
		s, err = NewElastic(u)
	case "postgres", "postgresql":
		s, err = NewPostgres(ctx, rawURL, cfg.Postgres)
	case "redis", "rediss":
		s, err = NewRedis(ctx, rawURL, cfg.Redis)
	case "kafka":
		s, err = NewKafka(u, cfg.Kafka)
	case "bleve":
		s, err = NewBleve(LocalPath(u))
	case "sqlite", "sqlite3":
		s, err = NewSQLite(ctx, LocalPath(u))
	default:
		return nil, apperrors.Newf(apperrors.ErrStartup, "unsupported sink scheme %q", u.Scheme)
	}
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrStartup, "opening %s sink: %v", scheme, err)
	}
	return s, nil
}

// LocalPath returns the filesystem path of a file-backed sink URL.
// "sqlite://data/logs.db" names a relative path, "sqlite:///var/logs.db" an
// absolute one.
func LocalPath(u *url.URL) string {
	if u.Opaque != "" {
		return u.Opaque
	}
	return u.Host + u.Path
}

// noteIgnoredPipeline logs once per chunk that a sink has no server-side
// pipelines to run.
func noteIgnoredPipeline(logger *slog.Logger, chunk *batcher.Chunk) {
	if len(chunk.Actions) == 0 || chunk.Actions[0].Index.Pipeline == "" {
		return
	}
	logger.Debug("sink ignores pipeline", "pipeline", chunk.Actions[0].Index.Pipeline, "chunk", chunk.Seq)
}
