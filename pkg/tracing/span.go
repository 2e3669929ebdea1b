// Package tracing records timed spans for a loader run: one root span per
// run and one child per submitted chunk. Children are folded into their
// parent's ChildStats when they end, so a run holds one span per level no
// matter how many chunks it submits.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type spanKey struct{}

// Span is one timed operation.
type Span struct {
	Name      string
	RunID     string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Err       error
	Attrs     map[string]any

	parent *Span
	mu     sync.Mutex
	stats  ChildStats
}

// ChildStats summarises the ended children of a span.
type ChildStats struct {
	Count   int
	Failed  int
	Total   time.Duration
	Slowest time.Duration
	// FirstErr is the error of the first failed child.
	FirstErr error
}

func newSpan(name, runID string, parent *Span) *Span {
	return &Span{
		Name:      name,
		RunID:     runID,
		StartTime: time.Now(),
		Attrs:     make(map[string]any),
		parent:    parent,
	}
}

// StartSpan begins a root span for runID.
func StartSpan(ctx context.Context, name string, runID string) (context.Context, *Span) {
	span := newSpan(name, runID, nil)
	return context.WithValue(ctx, spanKey{}, span), span
}

// StartChildSpan begins a span under the one in ctx. Without a parent it
// behaves like a root span with no run ID.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)
	var runID string
	if parent != nil {
		runID = parent.RunID
	}
	child := newSpan(name, runID, parent)
	return context.WithValue(ctx, spanKey{}, child), child
}

// End records the span's duration and outcome and folds it into its parent.
func (s *Span) End(err error) {
	s.mu.Lock()
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
	s.Err = err
	d := s.Duration
	s.mu.Unlock()

	if s.parent != nil {
		s.parent.fold(d, err)
	}
}

func (s *Span) fold(d time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Count++
	s.stats.Total += d
	s.stats.Slowest = max(s.stats.Slowest, d)
	if err != nil {
		s.stats.Failed++
		if s.stats.FirstErr == nil {
			s.stats.FirstErr = err
		}
	}
}

func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.Attrs[key] = value
	s.mu.Unlock()
}

// SpanFromContext returns the span in ctx, or nil.
func SpanFromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(spanKey{}).(*Span)
	return span
}

func (s *Span) ChildStats() ChildStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Log writes the span to logger at debug level, with its ChildStats when
// any child has ended.
func (s *Span) Log(logger *slog.Logger) {
	s.mu.Lock()
	attrs := []any{
		"run_id", s.RunID,
		"span", s.Name,
		"duration_ms", s.Duration.Milliseconds(),
	}
	if s.Err != nil {
		attrs = append(attrs, "error", s.Err)
	}
	for k, v := range s.Attrs {
		attrs = append(attrs, k, v)
	}
	if st := s.stats; st.Count > 0 {
		attrs = append(attrs,
			"children", st.Count,
			"children_failed", st.Failed,
			"slowest_child_ms", st.Slowest.Milliseconds(),
		)
		if st.FirstErr != nil {
			attrs = append(attrs, "first_child_error", st.FirstErr)
		}
	}
	s.mu.Unlock()

	logger.Debug("span", attrs...)
}
