package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are the header formats USAFacts has used over time.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"1/2/2006",
	"1/2/06",
}

// LoadDailyPanel builds a DailyPanel from a wide case or death table. Every
// column other than the identifier and the schema's metadata columns must be
// a date header. Placeholder rows are dropped.
func LoadDailyPanel(metric string, raw RawTable, schema TableSchema) (DailyPanel, error) {
	cols, err := resolveColumns(raw, schema)
	if err != nil {
		return DailyPanel{}, err
	}

	type dateCol struct {
		date  time.Time
		index int
	}
	var dcols []dateCol
	seen := make(map[time.Time]string)
	for _, i := range cols.rest {
		h := raw.Header[i]
		d, err := parseDateHeader(h)
		if err != nil {
			return DailyPanel{}, &SchemaError{Table: raw.Name, Column: h, Reason: "unparseable date header"}
		}
		if prev, dup := seen[d]; dup {
			return DailyPanel{}, &SchemaError{
				Table:  raw.Name,
				Column: h,
				Reason: fmt.Sprintf("duplicate date, already given by column %q", prev),
			}
		}
		seen[d] = h
		dcols = append(dcols, dateCol{date: d, index: i})
	}
	if len(dcols) == 0 {
		return DailyPanel{}, &SchemaError{Table: raw.Name, Reason: "no date columns"}
	}
	sort.Slice(dcols, func(a, b int) bool { return dcols[a].date.Before(dcols[b].date) })

	panel := DailyPanel{
		Metric: metric,
		Dates:  make([]time.Time, len(dcols)),
		Values: make(map[EntityID][]float64, len(raw.Rows)),
	}
	for j, dc := range dcols {
		panel.Dates[j] = dc.date
	}

	for n, row := range raw.Rows {
		if err := checkWidth(raw, n, row); err != nil {
			return DailyPanel{}, err
		}
		id, keep, err := rowEntity(raw.Name, row[cols.id])
		if err != nil {
			return DailyPanel{}, err
		}
		if !keep {
			panel.DroppedPlaceholders++
			continue
		}
		if _, dup := panel.Values[id]; dup {
			return DailyPanel{}, &DataIntegrityError{Table: raw.Name, Entity: string(id), Reason: "duplicate county identifier"}
		}

		values := make([]float64, len(dcols))
		for j, dc := range dcols {
			v, err := parseCount(row[dc.index])
			if err != nil {
				return DailyPanel{}, &DataIntegrityError{
					Table:  raw.Name,
					Entity: string(id),
					Reason: fmt.Sprintf("%s: %v", dc.date.Format(weekLabelLayout), err),
				}
			}
			values[j] = v
		}
		panel.Entities = append(panel.Entities, id)
		panel.Values[id] = values
	}

	return panel, nil
}

// LoadPopulation builds a PopulationTable from the county population table.
// Placeholder rows are dropped.
func LoadPopulation(raw RawTable, schema TableSchema) (PopulationTable, error) {
	cols, err := resolveColumns(raw, schema)
	if err != nil {
		return PopulationTable{}, err
	}

	valueIdx := -1
	for _, i := range cols.rest {
		if strings.TrimSpace(raw.Header[i]) == schema.ValueColumn {
			valueIdx = i
			break
		}
	}
	if valueIdx < 0 {
		if len(cols.rest) != 1 {
			return PopulationTable{}, &SchemaError{
				Table:  raw.Name,
				Column: schema.ValueColumn,
				Reason: fmt.Sprintf("missing population column and %d candidate columns remain", len(cols.rest)),
			}
		}
		valueIdx = cols.rest[0]
	}

	table := PopulationTable{Population: make(map[EntityID]int64, len(raw.Rows))}
	for n, row := range raw.Rows {
		if err := checkWidth(raw, n, row); err != nil {
			return PopulationTable{}, err
		}
		id, keep, err := rowEntity(raw.Name, row[cols.id])
		if err != nil {
			return PopulationTable{}, err
		}
		if !keep {
			table.DroppedPlaceholders++
			continue
		}
		if _, dup := table.Population[id]; dup {
			return PopulationTable{}, &DataIntegrityError{Table: raw.Name, Entity: string(id), Reason: "duplicate county identifier"}
		}
		pop, err := parsePopulation(row[valueIdx])
		if err != nil {
			return PopulationTable{}, &DataIntegrityError{Table: raw.Name, Entity: string(id), Reason: err.Error()}
		}
		table.Entities = append(table.Entities, id)
		table.Population[id] = pop
	}

	return table, nil
}

// columns holds header positions resolved against a schema.
type columns struct {
	id   int
	rest []int // neither identifier nor metadata, in header order
}

func resolveColumns(raw RawTable, schema TableSchema) (columns, error) {
	index := make(map[string]int, len(raw.Header))
	for i, h := range raw.Header {
		h = strings.TrimSpace(h)
		if _, ok := index[h]; !ok {
			index[h] = i
		}
	}

	id, ok := index[schema.IDColumn]
	if !ok {
		return columns{}, &SchemaError{Table: raw.Name, Column: schema.IDColumn, Reason: "missing identifier column"}
	}
	skip := map[int]bool{id: true}
	for _, m := range schema.Metadata {
		i, ok := index[m]
		if !ok {
			return columns{}, &SchemaError{Table: raw.Name, Column: m, Reason: "missing metadata column"}
		}
		skip[i] = true
	}

	cols := columns{id: id}
	for i := range raw.Header {
		if !skip[i] {
			cols.rest = append(cols.rest, i)
		}
	}
	return cols, nil
}

func checkWidth(raw RawTable, n int, row []string) error {
	if len(row) != len(raw.Header) {
		return &SchemaError{
			Table:  raw.Name,
			Reason: fmt.Sprintf("data row %d has %d cells, header has %d", n+1, len(row), len(raw.Header)),
		}
	}
	return nil
}

// rowEntity normalizes a row identifier. keep is false for placeholder rows.
func rowEntity(table, raw string) (id EntityID, keep bool, err error) {
	id, err = NormalizeFIPS(raw)
	if err != nil {
		var ie *DataIntegrityError
		if errors.As(err, &ie) {
			ie.Table = table
		}
		return "", false, err
	}
	return id, !id.IsPlaceholder(), nil
}

func parseDateHeader(h string) (time.Time, error) {
	h = strings.TrimSpace(h)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, h); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", h)
}

func parseCount(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, errors.New("empty count")
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid count %q", cell)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite count %q", cell)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative count %q", cell)
	}
	return v, nil
}

func parsePopulation(cell string) (int64, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, errors.New("empty population")
	}
	if n, err := strconv.ParseInt(cell, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative population %q", cell)
		}
		return n, nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, fmt.Errorf("invalid population %q", cell)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative population %q", cell)
	}
	return int64(v), nil
}
