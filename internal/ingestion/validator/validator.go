// Package validator checks a loaded configuration before any input is read
// and returns per-field error details.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/internal/ingestion/enrich"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/accesslog-loader/pkg/errors"
)

const (
	maxIndexLength = 255
	maxChunkSize   = 100000
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		keys = append(keys, field)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, field := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", field, e.Fields[field]))
	}
	return fmt.Sprintf("%s: %s", apperrors.ErrInvalidInput, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidInput
}

// ValidateConfig returns a *ValidationError listing every invalid setting,
// or nil.
func ValidateConfig(cfg *config.Config) error {
	errs := make(map[string]string)

	index := cfg.Sink.Index
	switch {
	case strings.TrimSpace(index) == "":
		errs["sink.index"] = "index is required"
	case len(index) > maxIndexLength:
		errs["sink.index"] = fmt.Sprintf("index must be at most %d characters", maxIndexLength)
	case strings.ContainsAny(index, " \t/\\*?\"<>|,#:"):
		errs["sink.index"] = "index contains a forbidden character"
	}
	if cfg.Sink.Timeout < 0 {
		errs["sink.timeout"] = "timeout must not be negative"
	}
	if cfg.Sink.ProbeOnStart && cfg.Sink.ProbeAttempts < 1 {
		errs["sink.probeAttempts"] = "at least one probe attempt is required"
	}

	if cfg.Loader.ChunkSize < 1 || cfg.Loader.ChunkSize > maxChunkSize {
		errs["loader.chunkSize"] = fmt.Sprintf("chunk size must be between 1 and %d", maxChunkSize)
	}

	if cfg.Enrich.Enabled {
		if strings.TrimSpace(cfg.Enrich.SourceField) == "" {
			errs["enrich.sourceField"] = "source field is required when enrichment is enabled"
		}
		if strings.TrimSpace(cfg.Enrich.TargetField) == "" {
			errs["enrich.targetField"] = "target field is required when enrichment is enabled"
		}
		if len(cfg.Enrich.Keys) == 0 {
			errs["enrich.keys"] = "at least one marker key is required"
		}
		if _, err := enrich.ParsePolicy(cfg.Enrich.OnMissingField); err != nil {
			errs["enrich.onMissingField"] = err.Error()
		}
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs["logging.level"] = fmt.Sprintf("unknown level %q", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs["logging.format"] = fmt.Sprintf("unknown format %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled && (cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535) {
		errs["metrics.port"] = "port must be between 1 and 65535"
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
