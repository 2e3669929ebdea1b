// Package batcher groups documents into fixed-size chunks and renders each
// chunk as a newline-delimited bulk payload of action/document pairs.
package batcher

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/internal/ingestion"
)

// DefaultSize is the number of documents per chunk when none is configured.
const DefaultSize = 100

// Action is the descriptor line that precedes every document in a bulk
// payload.
type Action struct {
	Index IndexAction `json:"index"`
}

// IndexAction targets one document. Pipeline is omitted when empty.
type IndexAction struct {
	Index    string `json:"_index,omitempty"`
	ID       string `json:"_id"`
	Pipeline string `json:"pipeline,omitempty"`
}

// Chunk is one bulk request's worth of documents. Actions[i] describes
// Documents[i].
type Chunk struct {
	Seq       int
	Actions   []Action
	Documents []ingestion.Document
}

// Len returns the number of documents in the chunk.
func (c *Chunk) Len() int {
	return len(c.Documents)
}

// Units returns the chunk as the flat, alternating action/record sequence
// a bulk request carries.
func (c *Chunk) Units() []any {
	units := make([]any, 0, 2*len(c.Documents))
	for i, doc := range c.Documents {
		units = append(units, c.Actions[i], doc.Record)
	}
	return units
}

// Payload serialises Units as NDJSON: one compact JSON object per line,
// each terminated by a newline, including the last.
func (c *Chunk) Payload() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, unit := range c.Units() {
		if err := enc.Encode(unit); err != nil {
			return nil, fmt.Errorf("encoding bulk unit %d of chunk %d: %w", i, c.Seq, err)
		}
	}
	return buf.Bytes(), nil
}

// Batcher accumulates documents and hands back a Chunk each time Size
// documents have been added. It is not safe for concurrent use.
type Batcher struct {
	index    string
	pipeline string
	size     int
	seq      int
	pending  *Chunk
}

// New returns a Batcher that stamps each action with index and pipeline.
// A size below 1 falls back to DefaultSize.
func New(index, pipeline string, size int) *Batcher {
	if size < 1 {
		size = DefaultSize
	}
	return &Batcher{index: index, pipeline: pipeline, size: size}
}

// Size returns the configured chunk size.
func (b *Batcher) Size() int {
	return b.size
}

// Add appends doc to the pending chunk and returns the chunk once it is
// full. It returns nil while the chunk is still filling.
func (b *Batcher) Add(doc ingestion.Document) *Chunk {
	if b.pending == nil {
		b.seq++
		b.pending = &Chunk{
			Seq:       b.seq,
			Actions:   make([]Action, 0, b.size),
			Documents: make([]ingestion.Document, 0, b.size),
		}
	}
	b.pending.Actions = append(b.pending.Actions, Action{Index: IndexAction{
		Index:    b.index,
		ID:       doc.ID,
		Pipeline: b.pipeline,
	}})
	b.pending.Documents = append(b.pending.Documents, doc)
	if len(b.pending.Documents) < b.size {
		return nil
	}
	full := b.pending
	b.pending = nil
	return full
}

// Flush returns the partially filled chunk, or nil when nothing is pending.
// Empty chunks are never produced.
func (b *Batcher) Flush() *Chunk {
	c := b.pending
	b.pending = nil
	return c
}

// Pending returns the number of documents waiting for the next chunk.
func (b *Batcher) Pending() int {
	if b.pending == nil {
		return 0
	}
	return len(b.pending.Documents)
}
