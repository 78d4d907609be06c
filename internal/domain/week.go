package domain

import (
	"slices"
	"time"
)

const (
	daysPerWeek     = 7
	weekLabelLayout = "2006-01-02"
)

// WeekBucket is a Sunday-to-Saturday calendar week identified by its
// Saturday end date. Observed counts the dates of the source panel that
// fall inside the bucket.
type WeekBucket struct {
	End      time.Time `json:"end"`
	Observed int       `json:"observed"`
}

// Start returns the Sunday that opens the bucket.
func (w WeekBucket) Start() time.Time {
	return w.End.AddDate(0, 0, -(daysPerWeek - 1))
}

// Complete reports whether all seven days were observed.
func (w WeekBucket) Complete() bool {
	return w.Observed == daysPerWeek
}

// Contains reports whether d falls on one of the bucket's calendar days.
func (w WeekBucket) Contains(d time.Time) bool {
	return WeekEnding(d).Equal(w.End)
}

// Label is the canonical string form used as a category key downstream.
func (w WeekBucket) Label() string {
	return w.End.Format(weekLabelLayout)
}

// WeekEnding returns the Saturday on or after d's calendar date, at UTC midnight.
func WeekEnding(d time.Time) time.Time {
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(time.Saturday) - int(day.Weekday()) + daysPerWeek) % daysPerWeek
	return day.AddDate(0, 0, offset)
}

// WeekPolicy is the completeness verdict for every week spanned by one
// daily panel. It remembers the axis it was computed from so that it cannot
// be applied to a panel with a different gap pattern.
type WeekPolicy struct {
	metric  string
	axis    []time.Time
	buckets []WeekBucket
}

// ComputeWeekPolicy partitions the panel's date axis into every week from
// the first observed date to the last, including weeks with no observed
// dates, and records how many days each one covers.
func ComputeWeekPolicy(panel DailyPanel) WeekPolicy {
	policy := WeekPolicy{
		metric: panel.Metric,
		axis:   slices.Clone(panel.Dates),
	}
	if len(panel.Dates) == 0 {
		return policy
	}

	counts := make(map[time.Time]int, len(panel.Dates)/daysPerWeek+2)
	for _, d := range panel.Dates {
		counts[WeekEnding(d)]++
	}

	first := WeekEnding(panel.Dates[0])
	last := WeekEnding(panel.Dates[len(panel.Dates)-1])
	for end := first; !end.After(last); end = end.AddDate(0, 0, daysPerWeek) {
		policy.buckets = append(policy.buckets, WeekBucket{End: end, Observed: counts[end]})
	}
	return policy
}

// Metric returns the metric of the panel the policy was computed from.
func (p WeekPolicy) Metric() string {
	return p.metric
}

// Buckets returns every week in the range, complete or not, in order.
func (p WeekPolicy) Buckets() []WeekBucket {
	return slices.Clone(p.buckets)
}

// Complete returns the weeks that survive aggregation, in order.
func (p WeekPolicy) Complete() []WeekBucket {
	var out []WeekBucket
	for _, b := range p.buckets {
		if b.Complete() {
			out = append(out, b)
		}
	}
	return out
}

// Excluded returns the end dates of incomplete weeks, in order.
func (p WeekPolicy) Excluded() []time.Time {
	var out []time.Time
	for _, b := range p.buckets {
		if !b.Complete() {
			out = append(out, b.End)
		}
	}
	return out
}

// IsExcluded reports whether the week ending on end is incomplete. Weeks
// outside the policy's range are excluded.
func (p WeekPolicy) IsExcluded(end time.Time) bool {
	for _, b := range p.buckets {
		if b.End.Equal(end) {
			return !b.Complete()
		}
	}
	return true
}

// appliesTo reports whether the policy was computed from panel's axis.
func (p WeekPolicy) appliesTo(panel DailyPanel) bool {
	return p.metric == panel.Metric && slices.EqualFunc(p.axis, panel.Dates, time.Time.Equal)
}
