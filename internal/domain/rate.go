package domain

import (
	"fmt"
	"math"
)

// RateScale converts a per-capita rate into a rate per 100,000 residents.
const RateScale = 100_000

// IntegrityPolicy decides how NormalizeRates handles a county whose
// population cannot serve as a denominator.
type IntegrityPolicy int

const (
	// IntegrityAbort fails the whole derivation.
	IntegrityAbort IntegrityPolicy = iota
	// IntegritySkip drops the county and records it in RatePanel.Skipped.
	IntegritySkip
)

func (p IntegrityPolicy) String() string {
	switch p {
	case IntegrityAbort:
		return "abort"
	case IntegritySkip:
		return "skip"
	default:
		return fmt.Sprintf("IntegrityPolicy(%d)", int(p))
	}
}

// ParseIntegrityPolicy parses "abort" or "skip".
func ParseIntegrityPolicy(s string) (IntegrityPolicy, error) {
	switch s {
	case "abort":
		return IntegrityAbort, nil
	case "skip":
		return IntegritySkip, nil
	default:
		return 0, fmt.Errorf("unknown integrity policy %q", s)
	}
}

// SkippedEntity records a county left out of a rate panel and why.
type SkippedEntity struct {
	Entity EntityID `json:"entity"`
	Reason string   `json:"reason"`
}

// RatePanel holds rates per 100,000 residents per county per complete week.
type RatePanel struct {
	Metric   string
	Weeks    []WeekBucket
	Entities []EntityID
	Values   map[EntityID][]float64
	Skipped  []SkippedEntity
}

func (p RatePanel) WeekAxis() []WeekBucket    { return p.Weeks }
func (p RatePanel) EntityAxis() []EntityID    { return p.Entities }
func (p RatePanel) Row(id EntityID) []float64 { return p.Values[id] }
func (p RatePanel) MetricName() string        { return p.Metric }

// NormalizeRates divides a mean-mode weekly panel by county population and
// scales the result to a rate per 100,000. A county missing from the
// population table is an AlignmentError. A zero population is a
// DataIntegrityError handled according to policy.
func NormalizeRates(panel WeeklyPanel, pop PopulationTable, policy IntegrityPolicy) (RatePanel, error) {
	if panel.Mode != ModeMean {
		return RatePanel{}, fmt.Errorf("normalize %s rates: requires mean mode, got %s", panel.Metric, panel.Mode)
	}

	out := RatePanel{
		Metric: panel.Metric,
		Weeks:  panel.Weeks,
		Values: make(map[EntityID][]float64, len(panel.Entities)),
	}
	for _, id := range panel.Entities {
		n, ok := pop.Lookup(id)
		if !ok {
			return RatePanel{}, &AlignmentError{Entity: id, Missing: "population table"}
		}
		if n == 0 {
			ie := &DataIntegrityError{
				Table:  panel.Metric,
				Entity: string(id),
				Reason: "population is zero, rate is undefined",
			}
			if policy != IntegritySkip {
				return RatePanel{}, ie
			}
			out.Skipped = append(out.Skipped, SkippedEntity{Entity: id, Reason: ie.Reason})
			continue
		}

		means := panel.Values[id]
		rates := make([]float64, len(means))
		for i, m := range means {
			r := m * RateScale / float64(n)
			if math.IsNaN(r) || math.IsInf(r, 0) {
				return RatePanel{}, &DataIntegrityError{
					Table:  panel.Metric,
					Entity: string(id),
					Reason: fmt.Sprintf("non-finite rate for week %s", panel.Weeks[i].Label()),
				}
			}
			rates[i] = r
		}
		out.Entities = append(out.Entities, id)
		out.Values[id] = rates
	}
	return out, nil
}
