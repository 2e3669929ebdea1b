// Package w3c decodes W3C Extended Log File Format text. A HeaderTracker
// holds the field schema declared by the most recent #Fields: directive and
// a Decoder maps tab-separated data lines onto it.
package w3c

import "strings"

const (
	// CommentMarker starts every directive and comment line.
	CommentMarker = "#"
	// FieldsDirective declares the schema for the data lines that follow.
	FieldsDirective = "#Fields:"
)

var fieldNameReplacer = strings.NewReplacer("(", "-", ")", "")

// Schema is the ordered list of field names from one #Fields: directive.
// Generation counts directives seen so far; zero means no header has been
// observed yet.
type Schema struct {
	Fields     []string
	Generation int
}

// Established reports whether any #Fields: directive has been observed.
func (s Schema) Established() bool {
	return s.Generation > 0
}

// HeaderTracker owns the active schema. Logs concatenated over several
// periods repeat their header, so every directive replaces the schema
// wholesale.
type HeaderTracker struct {
	schema Schema
}

func NewHeaderTracker() *HeaderTracker {
	return &HeaderTracker{}
}

// Schema returns the active schema. The returned Fields slice is never
// modified in place by the tracker.
func (t *HeaderTracker) Schema() Schema {
	return t.schema
}

// Observe inspects a comment line and, if it is a #Fields: directive,
// replaces the schema. It returns true when the schema was replaced. Other
// comment lines and malformed headers leave the schema untouched.
func (t *HeaderTracker) Observe(line string) bool {
	tokens := strings.Fields(line)
	if len(tokens) == 0 || tokens[0] != FieldsDirective {
		return false
	}
	fields := make([]string, 0, len(tokens)-1)
	for _, name := range tokens[1:] {
		fields = append(fields, NormalizeFieldName(name))
	}
	t.schema = Schema{
		Fields:     fields,
		Generation: t.schema.Generation + 1,
	}
	return true
}

// NormalizeFieldName makes a declared field name safe as a JSON document
// key: "cs(User-Agent)" becomes "cs-User-Agent".
func NormalizeFieldName(name string) string {
	return fieldNameReplacer.Replace(name)
}
