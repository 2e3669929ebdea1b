package w3c

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/accesslog-loader/pkg/errors"
)

// Kind classifies an input line.
type Kind int

const (
	KindBlank Kind = iota
	KindComment
	KindData
)

func (k Kind) String() string {
	switch k {
	case KindBlank:
		return "blank"
	case KindComment:
		return "comment"
	case KindData:
		return "data"
	default:
		return "unknown"
	}
}

// SchemaGapError reports a data line that arrived before any #Fields:
// directive, so there is no schema to map it onto.
type SchemaGapError struct {
	Line int
}

func (e *SchemaGapError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, apperrors.ErrSchemaGap)
}

func (e *SchemaGapError) Unwrap() error {
	return apperrors.ErrSchemaGap
}

// Decoder turns lines into records using the schema held by its tracker.
type Decoder struct {
	tracker *HeaderTracker
}

func NewDecoder(tracker *HeaderTracker) *Decoder {
	return &Decoder{tracker: tracker}
}

// Schema returns the tracker's active schema.
func (d *Decoder) Schema() Schema {
	return d.tracker.Schema()
}

// Classify reports the kind of line. A single trailing carriage return is
// ignored so CRLF logs classify like LF logs.
func Classify(line string) Kind {
	line = strings.TrimSuffix(line, "\r")
	switch {
	case line == "":
		return KindBlank
	case strings.HasPrefix(line, CommentMarker):
		return KindComment
	default:
		return KindData
	}
}

// Decode classifies line and acts on it: comment lines go to the header
// tracker, data lines are split on tabs and zipped with the active schema.
// Only data lines return a record. lineNo is used for error reporting.
func (d *Decoder) Decode(lineNo int, line string) (Kind, ingestion.Record, error) {
	line = strings.TrimSuffix(line, "\r")
	kind := Classify(line)
	switch kind {
	case KindComment:
		d.tracker.Observe(line)
		return kind, nil, nil
	case KindData:
		schema := d.tracker.Schema()
		if !schema.Established() {
			return kind, nil, &SchemaGapError{Line: lineNo}
		}
		return kind, Zip(schema.Fields, strings.Split(line, "\t")), nil
	default:
		return kind, nil, nil
	}
}

// Zip pairs fields and tokens by position. When the lengths differ the
// record holds only the first min(len(fields), len(tokens)) pairs: surplus
// tokens and surplus field names are dropped. A name repeated within fields
// keeps its last value.
func Zip(fields, tokens []string) ingestion.Record {
	n := min(len(fields), len(tokens))
	rec := make(ingestion.Record, n)
	for i := 0; i < n; i++ {
		rec[fields[i]] = tokens[i]
	}
	return rec
}
