package domain

import "time"

// Metric names used throughout the pipeline.
const (
	MetricCases  = "cases"
	MetricDeaths = "deaths"
)

// RawTable is an already-parsed input table: a header row and data rows of
// string cells. Name identifies the table in errors and logs.
type RawTable struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Inputs bundles the raw tables for one pipeline run.
type Inputs struct {
	Daily      map[string]RawTable // keyed by metric name
	Population RawTable
}

// TableSchema describes the columns of a USAFacts table.
type TableSchema struct {
	IDColumn string
	Metadata []string // required columns that carry no values

	// ValueColumn names the single value column of a population table. If it
	// is absent from the header and exactly one non-metadata column remains,
	// that column is used instead.
	ValueColumn string
}

var (
	// CasesSchema matches the confirmed-cases and deaths tables.
	CasesSchema = TableSchema{
		IDColumn: "countyFIPS",
		Metadata: []string{"County Name", "State", "StateFIPS"},
	}

	// PopulationSchema matches the county population table.
	PopulationSchema = TableSchema{
		IDColumn:    "countyFIPS",
		Metadata:    []string{"County Name", "State"},
		ValueColumn: "population",
	}
)

// DailyPanel holds one metric's daily counts per county over a common,
// ascending date axis. It is read-only once loaded.
type DailyPanel struct {
	Metric   string
	Dates    []time.Time
	Entities []EntityID // input row order
	Values   map[EntityID][]float64

	DroppedPlaceholders int
}

// PopulationTable maps each county to its most recent population estimate.
// It is read-only once loaded.
type PopulationTable struct {
	Entities   []EntityID
	Population map[EntityID]int64

	DroppedPlaceholders int
}

// Lookup returns the population for id.
func (p PopulationTable) Lookup(id EntityID) (int64, bool) {
	v, ok := p.Population[id]
	return v, ok
}
