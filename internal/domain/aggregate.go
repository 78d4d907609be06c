package domain

import (
	"fmt"
	"time"
)

// AggregationMode selects how daily values are combined into a week.
type AggregationMode int

const (
	// ModeSum adds the daily values; used for incidence counts.
	ModeSum AggregationMode = iota + 1
	// ModeMean averages the daily values; used as the rate basis.
	ModeMean
)

func (m AggregationMode) String() string {
	switch m {
	case ModeSum:
		return "sum"
	case ModeMean:
		return "mean"
	default:
		return fmt.Sprintf("AggregationMode(%d)", int(m))
	}
}

// ParseAggregationMode parses "sum" or "mean".
func ParseAggregationMode(s string) (AggregationMode, error) {
	switch s {
	case "sum":
		return ModeSum, nil
	case "mean":
		return ModeMean, nil
	default:
		return 0, fmt.Errorf("unknown aggregation mode %q", s)
	}
}

// WeeklyPanel holds one value per county per complete week.
type WeeklyPanel struct {
	Metric   string
	Mode     AggregationMode
	Weeks    []WeekBucket
	Entities []EntityID
	Values   map[EntityID][]float64 // aligned with Weeks
}

func (p WeeklyPanel) WeekAxis() []WeekBucket    { return p.Weeks }
func (p WeeklyPanel) EntityAxis() []EntityID    { return p.Entities }
func (p WeeklyPanel) Row(id EntityID) []float64 { return p.Values[id] }
func (p WeeklyPanel) MetricName() string        { return p.Metric }

// Aggregate resamples a daily panel into complete weeks. The policy must
// have been computed from the same panel; incomplete weeks are dropped.
func Aggregate(panel DailyPanel, mode AggregationMode, policy WeekPolicy) (WeeklyPanel, error) {
	if mode != ModeSum && mode != ModeMean {
		return WeeklyPanel{}, fmt.Errorf("aggregate %s: unsupported mode %s", panel.Metric, mode)
	}
	if !policy.appliesTo(panel) {
		return WeeklyPanel{}, fmt.Errorf("aggregate %s with policy for %s: %w", panel.Metric, policy.Metric(), ErrPolicyMismatch)
	}

	weeks := policy.Complete()
	slot := make(map[time.Time]int, len(weeks))
	for i, w := range weeks {
		slot[w.End] = i
	}

	// Map each date column to its output week, or -1 when the week is dropped.
	dateSlot := make([]int, len(panel.Dates))
	for j, d := range panel.Dates {
		i, ok := slot[WeekEnding(d)]
		if !ok {
			i = -1
		}
		dateSlot[j] = i
	}

	out := WeeklyPanel{
		Metric:   panel.Metric,
		Mode:     mode,
		Weeks:    weeks,
		Entities: append([]EntityID(nil), panel.Entities...),
		Values:   make(map[EntityID][]float64, len(panel.Entities)),
	}
	for _, id := range panel.Entities {
		daily := panel.Values[id]
		sums := make([]float64, len(weeks))
		for j, v := range daily {
			if i := dateSlot[j]; i >= 0 {
				sums[i] += v
			}
		}
		if mode == ModeMean {
			for i := range sums {
				sums[i] /= float64(weeks[i].Observed)
			}
		}
		out.Values[id] = sums
	}
	return out, nil
}

// IncidencePoint is the national total for one complete week.
type IncidencePoint struct {
	Week    string    `json:"week"`
	WeekEnd time.Time `json:"week_end"`
	Total   float64   `json:"total"`
}

// IncidenceSeries is the national weekly incidence for one metric.
type IncidenceSeries struct {
	Metric string           `json:"metric"`
	Points []IncidencePoint `json:"points"`
}

// CurrentWeekTotal returns the most recent complete week's total.
func (s IncidenceSeries) CurrentWeekTotal() (IncidencePoint, bool) {
	if len(s.Points) == 0 {
		return IncidencePoint{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// NationalIncidence sums a sum-mode weekly panel across all counties.
func NationalIncidence(panel WeeklyPanel) (IncidenceSeries, error) {
	if panel.Mode != ModeSum {
		return IncidenceSeries{}, fmt.Errorf("national incidence for %s requires sum mode, got %s", panel.Metric, panel.Mode)
	}
	series := IncidenceSeries{
		Metric: panel.Metric,
		Points: make([]IncidencePoint, len(panel.Weeks)),
	}
	for i, w := range panel.Weeks {
		series.Points[i] = IncidencePoint{Week: w.Label(), WeekEnd: w.End}
	}
	for _, id := range panel.Entities {
		for i, v := range panel.Values[id] {
			series.Points[i].Total += v
		}
	}
	return series, nil
}
