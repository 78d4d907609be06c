package domain

import (
	"slices"
	"strconv"
	"testing"
	"time"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("bad test date %q: %v", s, err)
	}
	return d
}

// dateRange returns n consecutive dates starting at start.
func dateRange(t *testing.T, start string, n int) []time.Time {
	t.Helper()
	first := day(t, start)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = first.AddDate(0, 0, i)
	}
	return out
}

// rawDaily builds a USAFacts-shaped case table with one row per id.
func rawDaily(name string, dates []time.Time, ids []string, values [][]float64) RawTable {
	header := []string{"countyFIPS", "County Name", "State", "StateFIPS"}
	for _, d := range dates {
		header = append(header, d.Format("2006-01-02"))
	}
	raw := RawTable{Name: name, Header: header}
	for i, id := range ids {
		row := []string{id, "County " + id, "ST", "1"}
		for _, v := range values[i] {
			row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
		}
		raw.Rows = append(raw.Rows, row)
	}
	return raw
}

// panelOf builds a DailyPanel directly, bypassing the loader.
func panelOf(metric string, dates []time.Time, rows map[EntityID][]float64) DailyPanel {
	p := DailyPanel{Metric: metric, Dates: dates, Values: make(map[EntityID][]float64)}
	for _, id := range sortedIDs(rows) {
		p.Entities = append(p.Entities, id)
		p.Values[id] = rows[id]
	}
	return p
}

func sortedIDs(rows map[EntityID][]float64) []EntityID {
	ids := make([]EntityID, 0, len(rows))
	for id := range rows {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func populationOf(pops map[EntityID]int64) PopulationTable {
	p := PopulationTable{Population: make(map[EntityID]int64)}
	for id, n := range pops {
		p.Entities = append(p.Entities, id)
		p.Population[id] = n
	}
	return p
}
