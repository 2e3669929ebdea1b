package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/internal/ingestion/batcher"
)

// maxBodyBytes caps how much of a bulk reply is read.
const maxBodyBytes = 64 << 20

// StatusError is returned when the bulk endpoint answers with a non-2xx
// status. Body holds the reply for diagnostics.
type StatusError struct {
	Code int
	Body []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bulk endpoint returned HTTP %d", e.Code)
}

// Elastic posts NDJSON payloads to an Elasticsearch-compatible _bulk API.
type Elastic struct {
	base     *url.URL
	user     string
	password string
	hasAuth  bool
	client   *http.Client
	logger   *slog.Logger
}

// NewElastic builds an HTTP sink for u. Credentials in u's userinfo are sent
// as basic auth and stripped from request URLs.
func NewElastic(u *url.URL) (*Elastic, error) {
	base := *u
	e := &Elastic{
		client: &http.Client{},
		logger: slog.Default().With("component", "elastic-sink", "endpoint", u.Redacted()),
	}
	if u.User != nil {
		e.user = u.User.Username()
		e.password, _ = u.User.Password()
		e.hasAuth = true
		base.User = nil
	}
	base.RawQuery = ""
	base.Fragment = ""
	base.Path = strings.TrimRight(base.Path, "/")
	base.RawPath = ""
	e.base = &base
	return e, nil
}

func (e *Elastic) Name() string { return "elastic" }

// BulkURL returns the _bulk endpoint for index.
func (e *Elastic) BulkURL(index string) string {
	u := *e.base
	u.Path = u.Path + "/" + index + "/_bulk"
	return u.String()
}

func (e *Elastic) Bulk(ctx context.Context, index string, chunk *batcher.Chunk) (*BulkResponse, error) {
	payload, err := chunk.Payload()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BulkURL(index), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building bulk request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	req.Header.Set("Accept", "application/json")
	if e.hasAuth {
		req.SetBasicAuth(e.user, e.password)
	}

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending bulk request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading bulk response: %w", err)
	}
	e.logger.Debug("bulk request complete",
		"chunk", chunk.Seq,
		"status", resp.StatusCode,
		"bytes", len(payload),
		"elapsed", time.Since(start),
	)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: body}
	}
	return DecodeBulkResponse(body)
}

// Ping issues GET on the base URL. Only a network failure or a 5xx status
// counts as unreachable; an auth challenge still proves the endpoint is up.
func (e *Elastic) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.base.String(), nil)
	if err != nil {
		return fmt.Errorf("building ping request: %w", err)
	}
	if e.hasAuth {
		req.SetBasicAuth(e.user, e.password)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("pinging %s: %w", e.base.Redacted(), err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("pinging %s: HTTP %d", e.base.Redacted(), resp.StatusCode)
	}
	return nil
}

func (e *Elastic) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
