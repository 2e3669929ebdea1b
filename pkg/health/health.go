// Package health probes the loader's dependencies. Components register a
// Check; the Checker runs them concurrently and folds the results into one
// Report. The loader gates startup on WaitUp and serves the same checks as
// liveness and readiness endpoints while a long load runs.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/pkg/resilience"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

func (s Status) rank() int {
	switch s {
	case StatusUp:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// Check probes one dependency.
type Check func(ctx context.Context) ComponentHealth

type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Report is the folded result of every check. Status is the worst
// component status.
type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

// Down lists the names of components that are down, sorted.
func (r Report) Down() []string {
	var names []string
	for name, c := range r.Components {
		if c.Status == StatusDown {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Err summarises a non-up report as an error, or returns nil.
func (r Report) Err() error {
	if r.Status == StatusUp {
		return nil
	}
	var parts []string
	for _, name := range r.Down() {
		parts = append(parts, fmt.Sprintf("%s: %s", name, r.Components[name].Message))
	}
	if len(parts) == 0 {
		return fmt.Errorf("health %s", r.Status)
	}
	return fmt.Errorf("health %s: %s", r.Status, strings.Join(parts, "; "))
}

type Checker struct {
	mu     sync.RWMutex
	checks map[string]Check
	logger *slog.Logger
}

func NewChecker() *Checker {
	return &Checker{
		checks: make(map[string]Check),
		logger: slog.Default().With("component", "health"),
	}
}

// Register adds or replaces the check called name.
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	c.checks[name] = check
	c.mu.Unlock()
}

// FromError turns an error-returning probe into a Check.
func FromError(probe func(ctx context.Context) error) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := probe(ctx); err != nil {
			return ComponentHealth{Status: StatusDown, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// Run executes every check concurrently.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	checks := make([]Check, 0, len(c.checks))
	for name, check := range c.checks {
		names = append(names, name)
		checks = append(checks, check)
	}
	c.mu.RUnlock()

	results := make([]ComponentHealth, len(checks))
	var g errgroup.Group
	for i, check := range checks {
		g.Go(func() error {
			start := time.Now()
			res := check(ctx)
			res.Latency = time.Since(start).Round(time.Millisecond).String()
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(results)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	for i, res := range results {
		report.Components[names[i]] = res
		if res.Status.rank() > report.Status.rank() {
			report.Status = res.Status
		}
		if res.Status == StatusDown {
			c.logger.Warn("component down", "name", names[i], "message", res.Message)
		}
	}
	return report
}

// WaitUp runs the checks until the report is up or retry gives up. Each
// attempt is bounded by perAttempt when it is positive.
func (c *Checker) WaitUp(ctx context.Context, retry resilience.RetryConfig, perAttempt time.Duration) error {
	return resilience.Retry(ctx, "health", retry, func(ctx context.Context) error {
		if perAttempt > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, perAttempt)
			defer cancel()
		}
		return c.Run(ctx).Err()
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// LiveHandler answers 200 while the process is running.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadyHandler runs the checks and answers 503 unless all are up.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		report := c.Run(ctx)
		status := http.StatusOK
		if report.Status != StatusUp {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	}
}
