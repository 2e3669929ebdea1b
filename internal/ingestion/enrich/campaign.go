// Package enrich derives extra fields from decoded records. The campaign
// enricher lifts a tracking tag such as pk_campaign out of the query-string
// field into its own document field.
package enrich

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/accesslog-loader/pkg/errors"
)

// MissingFieldPolicy decides what the pipeline does when the source field
// is absent from a record.
type MissingFieldPolicy string

const (
	// PolicyFail aborts the run on the first record without the field.
	PolicyFail MissingFieldPolicy = "fail"
	// PolicySkip indexes the record unenriched and carries on.
	PolicySkip MissingFieldPolicy = "skip"
)

// ParsePolicy validates a policy name from configuration.
func ParsePolicy(s string) (MissingFieldPolicy, error) {
	switch p := MissingFieldPolicy(s); p {
	case PolicyFail, PolicySkip:
		return p, nil
	default:
		return "", fmt.Errorf("unknown missing-field policy %q (want %q or %q)", s, PolicyFail, PolicySkip)
	}
}

// LookupError reports a record without the field enrichment reads from.
type LookupError struct {
	Field string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s: field %q not present in record", apperrors.ErrLookup, e.Field)
}

func (e *LookupError) Unwrap() error {
	return apperrors.ErrLookup
}

// CampaignEnricher copies the value of a recognised query-string key into
// TargetField.
type CampaignEnricher struct {
	SourceField string
	TargetField string
	keys        map[string]struct{}
}

func NewCampaignEnricher(sourceField, targetField string, keys []string) *CampaignEnricher {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return &CampaignEnricher{
		SourceField: sourceField,
		TargetField: targetField,
		keys:        set,
	}
}

// Enrich adds TargetField to rec when the source field holds a recognised
// key. Pairs without exactly one '=' are ignored; if several recognised
// pairs are present the last one wins. Values are stored as they appear in
// the log, without URL decoding. A missing source field returns a
// *LookupError and leaves rec unchanged.
func (e *CampaignEnricher) Enrich(rec ingestion.Record) error {
	query, ok := rec[e.SourceField]
	if !ok {
		return &LookupError{Field: e.SourceField}
	}
	for _, pair := range strings.Split(query, "&") {
		if strings.Count(pair, "=") != 1 {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		if _, ok := e.keys[key]; ok {
			rec[e.TargetField] = value
		}
	}
	return nil
}
