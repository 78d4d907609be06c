package domain

import "fmt"

// Wide is an entity-by-week matrix.
type Wide interface {
	MetricName() string
	WeekAxis() []WeekBucket
	EntityAxis() []EntityID
	Row(id EntityID) []float64
}

// LongRow is one (county, week, value) tuple.
type LongRow struct {
	Entity EntityID `json:"countyFIPS"`
	Week   string   `json:"variable"`
	Value  float64  `json:"value"`
}

// LongPanel is the tidy form of a wide panel, ordered entity-major.
type LongPanel struct {
	Metric string    `json:"metric"`
	Rows   []LongRow `json:"rows"`
}

// Weeks returns the distinct week labels in first-seen order.
func (p LongPanel) Weeks() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range p.Rows {
		if !seen[r.Week] {
			seen[r.Week] = true
			out = append(out, r.Week)
		}
	}
	return out
}

// FilterWeek returns the rows for a single week label.
func (p LongPanel) FilterWeek(label string) LongPanel {
	out := LongPanel{Metric: p.Metric}
	for _, r := range p.Rows {
		if r.Week == label {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// Melt reshapes a wide panel into one row per (county, week).
func Melt(w Wide) LongPanel {
	weeks := w.WeekAxis()
	entities := w.EntityAxis()
	out := LongPanel{
		Metric: w.MetricName(),
		Rows:   make([]LongRow, 0, len(weeks)*len(entities)),
	}
	for _, id := range entities {
		row := w.Row(id)
		for i, wk := range weeks {
			out.Rows = append(out.Rows, LongRow{Entity: id, Week: wk.Label(), Value: row[i]})
		}
	}
	return out
}

// WideTable is a wide panel rebuilt from its long form.
type WideTable struct {
	Metric   string
	Weeks    []string
	Entities []EntityID
	Values   map[EntityID][]float64
}

// Widen regroups a long panel by county and week. The rows must form the
// full cross product of their counties and weeks with no duplicates.
func Widen(long LongPanel) (WideTable, error) {
	out := WideTable{
		Metric: long.Metric,
		Weeks:  long.Weeks(),
		Values: make(map[EntityID][]float64),
	}
	col := make(map[string]int, len(out.Weeks))
	for i, w := range out.Weeks {
		col[w] = i
	}

	filled := make(map[EntityID][]bool)
	for _, r := range long.Rows {
		row, ok := out.Values[r.Entity]
		if !ok {
			row = make([]float64, len(out.Weeks))
			out.Values[r.Entity] = row
			filled[r.Entity] = make([]bool, len(out.Weeks))
			out.Entities = append(out.Entities, r.Entity)
		}
		i := col[r.Week]
		if filled[r.Entity][i] {
			return WideTable{}, fmt.Errorf("widen %s: duplicate row for %s week %s", long.Metric, r.Entity, r.Week)
		}
		row[i] = r.Value
		filled[r.Entity][i] = true
	}

	for _, id := range out.Entities {
		for i, ok := range filled[id] {
			if !ok {
				return WideTable{}, fmt.Errorf("widen %s: missing row for %s week %s", long.Metric, id, out.Weeks[i])
			}
		}
	}
	return out, nil
}
