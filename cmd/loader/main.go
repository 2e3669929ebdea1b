// Command loader reads a W3C extended access log and bulk-loads every data
// line into a document store as a JSON document whose ID is derived from the
// line's bytes, so re-running over the same file overwrites rather than
// duplicates.
//
// The sink is chosen by the URL scheme: http(s) for an Elasticsearch
// compatible _bulk API, postgres, redis, kafka, or a local bleve index or
// sqlite file.
//
// Usage:
//
//	loader [-config configs/loader.yaml] <sink-url> <input-file>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/internal/ingestion/enrich"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/internal/ingestion/pipeline"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/internal/ingestion/submitter"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/internal/sink"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/accesslog-loader/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults only when empty)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config file] <sink-url> <input-file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := run(ctx, *configPath, flag.Args(), prometheus.DefaultRegisterer); err != nil {
		report(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// run performs one load. Every returned error names its failure kind through
// apperrors.Kind.
func run(ctx context.Context, configPath string, args []string, reg prometheus.Registerer) (pipeline.Summary, error) {
	if len(args) != 2 {
		return pipeline.Summary{}, apperrors.Newf(apperrors.ErrStartup,
			"expected 2 arguments (sink URL, input file), got %d", len(args))
	}
	sinkURL, inputPath := args[0], args[1]

	cfg, err := config.Load(configPath)
	if err != nil {
		return pipeline.Summary{}, apperrors.Newf(apperrors.ErrStartup, "loading config: %v", err)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if err := validator.ValidateConfig(cfg); err != nil {
		return pipeline.Summary{}, err
	}

	ctx = logger.WithRunID(ctx, uuid.New().String())
	log := logger.FromContext(ctx).With("component", "loader")

	input, err := os.Open(inputPath)
	if err != nil {
		return pipeline.Summary{}, apperrors.Newf(apperrors.ErrStartup, "opening input: %v", err)
	}
	defer input.Close()

	s, err := sink.Open(ctx, sinkURL, cfg)
	if err != nil {
		return pipeline.Summary{}, err
	}
	defer s.Close()
	log.Info("sink opened", "sink", s.Name(), "index", cfg.Sink.Index)

	checker := health.NewChecker()
	checker.Register("sink", health.FromError(s.Ping))
	if cfg.Sink.ProbeOnStart {
		retry := resilience.RetryConfig{MaxAttempts: cfg.Sink.ProbeAttempts}
		if err := checker.WaitUp(ctx, retry, cfg.Sink.ProbeTimeout); err != nil {
			return pipeline.Summary{}, apperrors.Newf(apperrors.ErrStartup, "sink unreachable: %v", err)
		}
	}

	m := metrics.New(reg)
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, map[string]http.HandlerFunc{
			"/health/live":  checker.LiveHandler(),
			"/health/ready": checker.ReadyHandler(),
		})
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(shutdownCtx)
		}()
	}

	opts := pipeline.Options{
		Index:     cfg.Sink.Index,
		ChunkSize: cfg.Loader.ChunkSize,
	}
	if cfg.Enrich.Enabled {
		policy, err := enrich.ParsePolicy(cfg.Enrich.OnMissingField)
		if err != nil {
			return pipeline.Summary{}, apperrors.Newf(apperrors.ErrStartup, "enrich.onMissingField: %v", err)
		}
		opts.Enricher = enrich.NewCampaignEnricher(cfg.Enrich.SourceField, cfg.Enrich.TargetField, cfg.Enrich.Keys)
		opts.Pipeline = cfg.Enrich.Pipeline
		opts.OnMissing = policy
	}

	sub := submitter.New(s, cfg.Sink.Index, cfg.Sink.Timeout, m)
	return pipeline.New(opts, sub, m).Run(ctx, input)
}

// report writes the failure kind and message, plus the sink's reply for
// rejected submissions.
func report(w io.Writer, err error) {
	fmt.Fprintf(w, "%s: %v\n", apperrors.Kind(err), err)
	var subErr *submitter.SubmissionError
	if errors.As(err, &subErr) && len(subErr.Body) > 0 {
		fmt.Fprintf(w, "response body: %s\n", subErr.Body)
	}
}
