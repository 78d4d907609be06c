package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/couchcryptid/county-rates-etl/internal/domain"
	"github.com/couchcryptid/county-rates-etl/internal/observability"
	"golang.org/x/sync/errgroup"
)

// Deriver turns one set of raw input tables into a report. Each metric is
// derived on its own goroutine from immutable inputs.
type Deriver struct {
	policy  domain.IntegrityPolicy
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewDeriver creates a Deriver that applies policy to zero-population counties.
func NewDeriver(policy domain.IntegrityPolicy, logger *slog.Logger, metrics *observability.Metrics) *Deriver {
	return &Deriver{policy: policy, logger: logger, metrics: metrics}
}

// Derive loads the population table once, then loads and derives every
// daily table concurrently. Metrics appear in the report in name order.
func (d *Deriver) Derive(ctx context.Context, in domain.Inputs) ([]domain.MetricReport, error) {
	if len(in.Daily) == 0 {
		return nil, errors.New("derive: no daily tables")
	}

	pop, err := domain.LoadPopulation(in.Population, domain.PopulationSchema)
	if err != nil {
		return nil, fmt.Errorf("load population: %w", err)
	}
	d.metrics.PlaceholderRowsDropped.WithLabelValues(in.Population.Name).Add(float64(pop.DroppedPlaceholders))

	names := slices.Sorted(maps.Keys(in.Daily))
	reports := make([]domain.MetricReport, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := d.deriveMetric(name, in.Daily[name], pop)
			if err != nil {
				return err
			}
			reports[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func (d *Deriver) deriveMetric(metric string, raw domain.RawTable, pop domain.PopulationTable) (domain.MetricReport, error) {
	daily, err := domain.LoadDailyPanel(metric, raw, domain.CasesSchema)
	if err != nil {
		return domain.MetricReport{}, fmt.Errorf("load %s: %w", metric, err)
	}
	d.metrics.PlaceholderRowsDropped.WithLabelValues(raw.Name).Add(float64(daily.DroppedPlaceholders))

	report, err := domain.Derive(daily, pop, d.policy)
	if err != nil {
		return domain.MetricReport{}, err
	}

	d.metrics.Entities.WithLabelValues(metric).Set(float64(report.Entities))
	d.metrics.WeeksComplete.WithLabelValues(metric).Set(float64(report.CompleteWeeks))
	d.metrics.WeeksExcluded.WithLabelValues(metric).Set(float64(len(report.ExcludedWeeks)))
	d.metrics.RateEntitiesSkipped.WithLabelValues(metric).Add(float64(len(report.Skipped)))

	for _, s := range report.Skipped {
		d.logger.Warn("county skipped from rates", "metric", metric, "county_fips", s.Entity, "reason", s.Reason)
	}
	d.logger.Info("metric derived",
		"metric", metric,
		"entities", report.Entities,
		"complete_weeks", report.CompleteWeeks,
		"excluded_weeks", report.ExcludedWeeks,
		"placeholder_rows", daily.DroppedPlaceholders,
	)
	return report, nil
}
