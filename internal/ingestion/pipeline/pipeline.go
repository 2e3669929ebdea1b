// Package pipeline drives one load: it reads the input line by line, tracks
// the #Fields: schema, decodes and enriches data lines, and submits fixed
// size chunks one at a time. The first error of any kind ends the run.
package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/internal/ingestion/batcher"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/internal/ingestion/enrich"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/internal/ingestion/identity"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/internal/ingestion/w3c"
	apperrors "github.com/Adithya-Monish-Kumar-K/accesslog-loader/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/pkg/tracing"
)

// Submitter sends one chunk and reports whether the sink accepted all of it.
type Submitter interface {
	Submit(ctx context.Context, chunk *batcher.Chunk) error
}

// Options configures a Pipeline.
type Options struct {
	Index     string
	ChunkSize int
	// Enricher is nil when enrichment is disabled.
	Enricher *enrich.CampaignEnricher
	// Pipeline is the server-side processing pipeline named in every
	// action descriptor. Empty omits it.
	Pipeline  string
	OnMissing enrich.MissingFieldPolicy
}

// Summary describes what a run read and submitted. It is returned even
// when the run fails, covering the lines processed up to the failure.
// Chunks counts chunks the sink accepted; SlowestChunk covers every
// submission attempt. InvalidUTF8 counts data lines whose bytes are not
// valid UTF-8: their JSON documents carry U+FFFD in place of the bad bytes,
// while their IDs still hash the original bytes.
type Summary struct {
	RunID             string
	Lines             int
	Blank             int
	Comments          int
	DataLines         int
	Documents         int
	Chunks            int
	SchemaGenerations int
	EnrichSkipped     int
	InvalidUTF8       int
	SlowestChunk      time.Duration
	Duration          time.Duration
}

// LogValue lets a Summary be logged as a group.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("lines", s.Lines),
		slog.Int("blank", s.Blank),
		slog.Int("comments", s.Comments),
		slog.Int("data_lines", s.DataLines),
		slog.Int("documents", s.Documents),
		slog.Int("chunks", s.Chunks),
		slog.Int("schema_generations", s.SchemaGenerations),
		slog.Int("enrich_skipped", s.EnrichSkipped),
		slog.Int("invalid_utf8", s.InvalidUTF8),
		slog.Duration("slowest_chunk", s.SlowestChunk),
		slog.Duration("duration", s.Duration),
	)
}

type Pipeline struct {
	opts      Options
	submitter Submitter
	metrics   *metrics.Metrics
}

func New(opts Options, sub Submitter, m *metrics.Metrics) *Pipeline {
	if opts.OnMissing == "" {
		opts.OnMissing = enrich.PolicyFail
	}
	return &Pipeline{opts: opts, submitter: sub, metrics: m}
}

// run holds the state owned by a single call to Run.
type run struct {
	*Pipeline
	log     *slog.Logger
	tracker *w3c.HeaderTracker
	decoder *w3c.Decoder
	batcher *batcher.Batcher
	summary Summary
}

// Run loads every line of r. Chunks are submitted in input order and never
// overlap; lines after a failure are not read.
func (p *Pipeline) Run(ctx context.Context, r io.Reader) (Summary, error) {
	runID := logger.RunIDFromContext(ctx)
	if runID == "" {
		runID = uuid.New().String()
		ctx = logger.WithRunID(ctx, runID)
	}
	ctx, span := tracing.StartSpan(ctx, "load", runID)

	tracker := w3c.NewHeaderTracker()
	st := &run{
		Pipeline: p,
		log:      logger.FromContext(ctx).With("component", "pipeline"),
		tracker:  tracker,
		decoder:  w3c.NewDecoder(tracker),
		batcher:  batcher.New(p.opts.Index, p.opts.Pipeline, p.opts.ChunkSize),
		summary:  Summary{RunID: runID},
	}
	start := time.Now()
	st.log.Info("load started", "index", p.opts.Index, "chunk_size", st.batcher.Size())

	err := st.scan(ctx, r)
	st.summary.Duration = time.Since(start)
	span.SetAttr("lines", st.summary.Lines)
	span.SetAttr("chunks", st.summary.Chunks)
	span.End(err)
	st.summary.SlowestChunk = span.ChildStats().Slowest
	span.Log(st.log)

	if err != nil {
		st.log.Error("load aborted", "kind", apperrors.Kind(err), "line", st.summary.Lines, "error", err)
		return st.summary, err
	}
	st.log.Info("load complete", "summary", st.summary)
	return st.summary, nil
}

func (st *run) scan(ctx context.Context, r io.Reader) error {
	br := bufio.NewReader(r)
	for {
		raw, readErr := br.ReadString('\n')
		if raw != "" {
			st.summary.Lines++
			if err := st.line(ctx, st.summary.Lines, strings.TrimSuffix(raw, "\n")); err != nil {
				return err
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return apperrors.Newf(apperrors.ErrStartup, "reading input at line %d: %v", st.summary.Lines+1, readErr)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if chunk := st.batcher.Flush(); chunk != nil {
		return st.submit(ctx, chunk)
	}
	return nil
}

// line handles one input line without its newline. The ID is taken from
// these exact bytes, including any carriage return.
func (st *run) line(ctx context.Context, lineNo int, line string) error {
	before := st.tracker.Schema().Generation
	kind, rec, err := st.decoder.Decode(lineNo, line)
	st.metrics.LinesTotal.WithLabelValues(kind.String()).Inc()

	switch kind {
	case w3c.KindBlank:
		st.summary.Blank++
		return nil
	case w3c.KindComment:
		st.summary.Comments++
		if schema := st.tracker.Schema(); schema.Generation != before {
			st.summary.SchemaGenerations = schema.Generation
			st.metrics.SchemaChangesTotal.Inc()
			st.metrics.SchemaFieldCount.Set(float64(len(schema.Fields)))
			st.log.Info("schema changed",
				"line", lineNo,
				"generation", schema.Generation,
				"fields", len(schema.Fields),
			)
		}
		return nil
	}

	st.summary.DataLines++
	if err != nil {
		return err
	}
	st.metrics.RecordsTotal.Inc()
	if !utf8.ValidString(line) {
		st.summary.InvalidUTF8++
		st.log.Debug("line is not valid UTF-8", "line", lineNo)
	}
	if err := st.enrich(lineNo, rec); err != nil {
		return err
	}
	doc := ingestion.Document{
		ID:     identity.DocumentID([]byte(line)),
		Line:   lineNo,
		Record: rec,
	}
	if chunk := st.batcher.Add(doc); chunk != nil {
		return st.submit(ctx, chunk)
	}
	return nil
}

func (st *run) enrich(lineNo int, rec ingestion.Record) error {
	if st.opts.Enricher == nil {
		return nil
	}
	err := st.opts.Enricher.Enrich(rec)
	var lookup *enrich.LookupError
	if errors.As(err, &lookup) && st.opts.OnMissing == enrich.PolicySkip {
		st.summary.EnrichSkipped++
		st.metrics.EnrichSkippedTotal.Inc()
		st.log.Debug("enrichment skipped", "line", lineNo, "field", lookup.Field)
		return nil
	}
	if err != nil {
		return fmt.Errorf("line %d: %w", lineNo, err)
	}
	return nil
}

func (st *run) submit(ctx context.Context, chunk *batcher.Chunk) error {
	if err := st.submitter.Submit(ctx, chunk); err != nil {
		return err
	}
	st.summary.Chunks++
	st.summary.Documents += chunk.Len()
	return nil
}
