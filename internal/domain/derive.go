package domain

import (
	"fmt"
	"time"
)

// MetricReport is everything derived from one daily panel.
type MetricReport struct {
	Metric        string          `json:"metric"`
	CompleteWeeks int             `json:"complete_weeks"`
	ExcludedWeeks []string        `json:"excluded_weeks"`
	Incidence     IncidenceSeries `json:"incidence"`
	CurrentWeek   *IncidencePoint `json:"current_week,omitempty"`
	Rates         LongPanel       `json:"rates"`
	Skipped       []SkippedEntity `json:"skipped,omitempty"`
	Entities      int             `json:"entities"`
}

// Report is the output of one pipeline run.
type Report struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Metrics     []MetricReport `json:"metrics"`
}

// Metric returns the report for the named metric.
func (r Report) Metric(name string) (MetricReport, bool) {
	for _, m := range r.Metrics {
		if m.Metric == name {
			return m, true
		}
	}
	return MetricReport{}, false
}

// Derive runs the weekly chain for one metric: the week policy is computed
// from the panel itself, the sum-mode panel feeds the national incidence
// series, and the mean-mode panel is normalized by population and melted.
func Derive(daily DailyPanel, pop PopulationTable, policy IntegrityPolicy) (MetricReport, error) {
	weeks := ComputeWeekPolicy(daily)

	sums, err := Aggregate(daily, ModeSum, weeks)
	if err != nil {
		return MetricReport{}, err
	}
	incidence, err := NationalIncidence(sums)
	if err != nil {
		return MetricReport{}, err
	}

	means, err := Aggregate(daily, ModeMean, weeks)
	if err != nil {
		return MetricReport{}, err
	}
	rates, err := NormalizeRates(means, pop, policy)
	if err != nil {
		return MetricReport{}, fmt.Errorf("derive %s: %w", daily.Metric, err)
	}

	report := MetricReport{
		Metric:        daily.Metric,
		CompleteWeeks: len(sums.Weeks),
		Incidence:     incidence,
		Rates:         Melt(rates),
		Skipped:       rates.Skipped,
		Entities:      len(rates.Entities),
	}
	for _, end := range weeks.Excluded() {
		report.ExcludedWeeks = append(report.ExcludedWeeks, end.Format(weekLabelLayout))
	}
	if p, ok := incidence.CurrentWeekTotal(); ok {
		report.CurrentWeek = &p
	}
	return report, nil
}
