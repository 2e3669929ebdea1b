// Package submitter sends chunks to a sink and verifies that every document
// was accepted. Any failure ends the run; nothing is retried.
package submitter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/internal/ingestion/batcher"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/internal/sink"
	apperrors "github.com/Adithya-Monish-Kumar-K/accesslog-loader/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/pkg/tracing"
)

// SubmissionError reports a chunk the sink did not fully accept. Cause is
// set for transport failures. Body holds the sink's reply when there was
// one, and Failed lists the rejected documents so a caller could resubmit
// only those.
type SubmissionError struct {
	Chunk  int
	Items  int
	Cause  error
	Body   []byte
	Failed []sink.ItemResult
}

func (e *SubmissionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("chunk %d: %s: %v", e.Chunk, apperrors.ErrSubmission, e.Cause)
	}
	return fmt.Sprintf("chunk %d: %s: %d of %d documents rejected", e.Chunk, apperrors.ErrSubmission, len(e.Failed), e.Items)
}

func (e *SubmissionError) Unwrap() []error {
	if e.Cause == nil {
		return []error{apperrors.ErrSubmission}
	}
	return []error{apperrors.ErrSubmission, e.Cause}
}

// Submitter verifies bulk writes against one index.
type Submitter struct {
	sink    sink.Sink
	index   string
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New returns a Submitter. A timeout of zero leaves each call bounded only
// by the sink's own I/O.
func New(s sink.Sink, index string, timeout time.Duration, m *metrics.Metrics) *Submitter {
	return &Submitter{
		sink:    s,
		index:   index,
		timeout: timeout,
		metrics: m,
		logger:  logger.WithComponent("submitter"),
	}
}

// Submit sends chunk and returns a *SubmissionError if the call failed or
// the sink flagged any document as failed.
func (s *Submitter) Submit(ctx context.Context, chunk *batcher.Chunk) error {
	ctx, span := tracing.StartChildSpan(ctx, "submit_chunk")
	span.SetAttr("chunk", chunk.Seq)
	span.SetAttr("documents", chunk.Len())
	log := logger.FromContext(ctx).With("component", "submitter", "chunk", chunk.Seq)

	start := time.Now()
	var resp *sink.BulkResponse
	err := resilience.WithTimeout(ctx, s.timeout, "bulk submission", func(ctx context.Context) error {
		var err error
		resp, err = s.sink.Bulk(ctx, s.index, chunk)
		return err
	})
	s.metrics.SubmitDuration.Observe(time.Since(start).Seconds())
	s.metrics.ChunkSize.Observe(float64(chunk.Len()))

	if err != nil {
		subErr := &SubmissionError{Chunk: chunk.Seq, Items: chunk.Len(), Cause: err}
		var statusErr *sink.StatusError
		if errors.As(err, &statusErr) {
			subErr.Body = statusErr.Body
		}
		s.metrics.ChunksTotal.WithLabelValues("error").Inc()
		span.End(subErr)
		log.Error("bulk submission failed", "error", err)
		return subErr
	}

	if resp.Errors {
		failed := resp.Failed()
		s.metrics.ChunksTotal.WithLabelValues("rejected").Inc()
		s.metrics.ItemsFailedTotal.Add(float64(len(failed)))
		subErr := &SubmissionError{
			Chunk:  chunk.Seq,
			Items:  chunk.Len(),
			Body:   resp.Body(),
			Failed: failed,
		}
		span.End(subErr)
		log.Error("sink rejected documents", "failed", len(failed), "documents", chunk.Len())
		return subErr
	}

	s.metrics.ChunksTotal.WithLabelValues("ok").Inc()
	span.SetAttr("took_ms", resp.Took)
	span.End(nil)
	log.Debug("chunk accepted", "documents", chunk.Len(), "took_ms", resp.Took)
	return nil
}
