package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/county-rates-etl/internal/domain"
	"github.com/couchcryptid/county-rates-etl/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"
)

const (
	initialBackoff  = 200 * time.Millisecond
	maxBackoff      = 5 * time.Second
	maxLoadAttempts = 5
)

// Extractor reads the raw input tables for one run.
type Extractor interface {
	Extract(ctx context.Context) (domain.Inputs, error)
}

// Loader publishes a report to one destination and returns the number of
// rows written.
type Loader interface {
	Name() string
	Load(ctx context.Context, report domain.Report) (int, error)
}

// StageError records which stage of a run failed.
type StageError struct {
	Stage string // extract, derive, or load
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

// ErrorKind classifies a run error for the run_errors_total metric: the
// domain error kind when there is one, otherwise the failed stage.
func ErrorKind(err error) string {
	if kind := domain.ErrorKind(err); kind != "" {
		return kind
	}
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return "unknown"
}

// Options tune a Pipeline.
type Options struct {
	Policy   domain.IntegrityPolicy
	Interval time.Duration   // time between runs in Run
	Clock    clockwork.Clock // defaults to the real clock
}

// Pipeline orchestrates the extract-derive-load cycle.
type Pipeline struct {
	extractor Extractor
	deriver   *Deriver
	loaders   []Loader
	interval  time.Duration
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
	latest    atomic.Pointer[domain.Report]
}

// New creates a Pipeline. Loaders are invoked in order after every metric
// has been derived.
func New(e Extractor, loaders []Loader, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		extractor: e,
		deriver:   NewDeriver(opts.Policy, logger, metrics),
		loaders:   loaders,
		interval:  opts.Interval,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once a run has completed successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if p.latest.Load() == nil {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// Latest returns the report of the most recent successful run.
func (p *Pipeline) Latest() (domain.Report, bool) {
	r := p.latest.Load()
	if r == nil {
		return domain.Report{}, false
	}
	return *r, true
}

// Run executes a run immediately and then once per interval until the
// context is cancelled. Failed runs are logged and retried on the next tick.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.interval <= 0 {
		return fmt.Errorf("pipeline: invalid refresh interval %s", p.interval)
	}
	p.logger.Info("pipeline started", "refresh_interval", p.interval, "sinks", len(p.loaders))
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("run failed", "error", err, "kind", ErrorKind(err))
		}

		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
		}
	}
}

// RunOnce performs a single extract-derive-load cycle. On success the report
// becomes the one returned by Latest.
func (p *Pipeline) RunOnce(ctx context.Context) (domain.Report, error) {
	start := p.clock.Now()
	p.metrics.RunsTotal.Inc()

	report, err := p.run(ctx)
	p.metrics.RunDuration.Observe(p.clock.Since(start).Seconds())
	if err != nil {
		p.metrics.RunErrors.WithLabelValues(ErrorKind(err)).Inc()
		return domain.Report{}, err
	}

	p.latest.Store(&report)
	p.metrics.LastSuccess.Set(float64(p.clock.Now().Unix()))
	p.logger.Info("run complete", "metrics", len(report.Metrics), "duration", p.clock.Since(start))
	return report, nil
}

func (p *Pipeline) run(ctx context.Context) (domain.Report, error) {
	inputs, err := p.extractor.Extract(ctx)
	if err != nil {
		return domain.Report{}, &StageError{Stage: "extract", Err: err}
	}

	derived, err := p.deriver.Derive(ctx, inputs)
	if err != nil {
		return domain.Report{}, &StageError{Stage: "derive", Err: err}
	}
	report := domain.Report{GeneratedAt: p.clock.Now().UTC(), Metrics: derived}

	for _, l := range p.loaders {
		if err := p.load(ctx, l, report); err != nil {
			return domain.Report{}, &StageError{Stage: "load", Err: err}
		}
	}
	return report, nil
}

// load publishes the report to one sink, retrying with capped exponential
// backoff.
func (p *Pipeline) load(ctx context.Context, l Loader, report domain.Report) error {
	backoff := initialBackoff
	var err error
	for attempt := 1; attempt <= maxLoadAttempts; attempt++ {
		var n int
		n, err = l.Load(ctx, report)
		if err == nil {
			p.metrics.RowsPublished.WithLabelValues(l.Name()).Add(float64(n))
			p.logger.Info("report published", "sink", l.Name(), "rows", n)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.Warn("load failed", "sink", l.Name(), "attempt", attempt, "error", err)
		if attempt == maxLoadAttempts {
			break
		}
		if !sleepWithContext(ctx, p.clock, backoff) {
			return ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
	return fmt.Errorf("%s sink failed after %d attempts: %w", l.Name(), maxLoadAttempts, err)
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
