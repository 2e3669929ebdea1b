// Package ingestion defines the record and document types that flow through
// the access-log loading pipeline.
package ingestion

// Record maps schema field names to the values of one data line.
type Record map[string]string

// Document is a decoded data line ready for batching. ID is derived from the
// raw line bytes, so re-loading the same line always targets the same
// document.
type Document struct {
	ID     string
	Line   int
	Record Record
}
