// Command genmock writes deterministic USAFacts-shaped fixtures: a confirmed
// cases table, a deaths table, and a county population table. The fixtures
// carry the quirks the pipeline has to handle: unallocated "0" rows, a
// Wednesday start, a trailing partial week, and a one-day gap in the deaths
// series.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -days 60 -format csv
package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

type county struct {
	fips       string
	name       string
	state      string
	stateFIPS  int
	population int
}

// counties is a fixed sample so fixtures are stable across runs. FIPS codes
// are written without leading zeros, as in the USAFacts exports.
var counties = []county{
	{"1001", "Autauga County", "AL", 1, 55869},
	{"1003", "Baldwin County", "AL", 1, 223234},
	{"2020", "Anchorage Municipality", "AK", 2, 288000},
	{"4013", "Maricopa County", "AZ", 4, 4485414},
	{"6037", "Los Angeles County", "CA", 6, 10039107},
	{"6075", "San Francisco County", "CA", 6, 881549},
	{"8031", "Denver County", "CO", 8, 727211},
	{"12086", "Miami-Dade County", "FL", 12, 2716940},
	{"13121", "Fulton County", "GA", 13, 1063937},
	{"17031", "Cook County", "IL", 17, 5150233},
	{"25025", "Suffolk County", "MA", 25, 803907},
	{"26163", "Wayne County", "MI", 26, 1749343},
	{"32003", "Clark County", "NV", 32, 2266715},
	{"36061", "New York County", "NY", 36, 1628706},
	{"42101", "Philadelphia County", "PA", 42, 1584064},
	{"48201", "Harris County", "TX", 48, 4713325},
	{"53033", "King County", "WA", 53, 2252782},
	{"56045", "Weston County", "WY", 56, 6927},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out", "", "output directory for the fixture tables")
	start := flag.String("start", "2020-01-22", "first date of the series (YYYY-MM-DD)")
	days := flag.Int("days", 60, "number of daily columns")
	seed := flag.Uint64("seed", 1, "random seed")
	format := flag.String("format", "csv", "output format: csv or xlsx")
	flag.Parse()

	if *outDir == "" {
		flag.Usage()
		return errors.New("missing required flag: -out")
	}
	first, err := time.Parse(time.DateOnly, *start)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}
	if *days < 8 {
		return errors.New("-days must be at least 8")
	}

	var write func(path string, records [][]string) error
	switch *format {
	case "csv":
		write = writeCSV
	case "xlsx":
		write = writeXLSX
	default:
		return fmt.Errorf("unknown -format %q", *format)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	dates := dateAxis(first, *days)
	// Deaths skip one mid-series day so their excluded weeks differ from cases.
	gap := dates[len(dates)/2]
	deathDates := make([]time.Time, 0, len(dates)-1)
	for _, d := range dates {
		if !d.Equal(gap) {
			deathDates = append(deathDates, d)
		}
	}

	tables := []struct {
		name    string
		records [][]string
	}{
		{"covid_confirmed_usafacts", dailyTable(rng, dates, 8)},
		{"covid_deaths_usafacts", dailyTable(rng, deathDates, 0.15)},
		{"covid_county_population_usafacts", populationTable()},
	}
	for _, t := range tables {
		path := filepath.Join(*outDir, t.name+"."+*format)
		if err := write(path, t.records); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		log.Printf("wrote %s: %d rows", path, len(t.records)-1)
	}
	log.Printf("deaths series skips %s", gap.Format(time.DateOnly))
	return nil
}

func dateAxis(first time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = first.AddDate(0, 0, i)
	}
	return out
}

// dailyTable builds a wide table of daily increments. Each county's mean
// daily count scales with perCapita events per 100,000 residents.
func dailyTable(rng *rand.Rand, dates []time.Time, perCapita float64) [][]string {
	header := []string{"countyFIPS", "County Name", "State", "StateFIPS"}
	for _, d := range dates {
		header = append(header, d.Format(time.DateOnly))
	}
	records := [][]string{header}

	// One unallocated row per state, as USAFacts publishes them.
	seen := make(map[string]bool)
	for _, c := range counties {
		if seen[c.state] {
			continue
		}
		seen[c.state] = true
		row := []string{"0", "Statewide Unallocated", c.state, strconv.Itoa(c.stateFIPS)}
		for range dates {
			row = append(row, strconv.Itoa(rng.IntN(3)))
		}
		records = append(records, row)
	}

	for _, c := range counties {
		row := []string{c.fips, c.name, c.state, strconv.Itoa(c.stateFIPS)}
		mean := float64(c.population) * perCapita / 100_000
		for range dates {
			row = append(row, strconv.Itoa(poissonish(rng, mean)))
		}
		records = append(records, row)
	}
	return records
}

// poissonish draws a non-negative count around mean using a normal
// approximation, which is close enough for fixtures.
func poissonish(rng *rand.Rand, mean float64) int {
	if mean <= 0 {
		return 0
	}
	v := mean + rng.NormFloat64()*max(1, mean*0.25)
	if v < 0 {
		return 0
	}
	return int(v + 0.5)
}

func populationTable() [][]string {
	records := [][]string{{"countyFIPS", "County Name", "State", "population"}}
	records = append(records, []string{"0", "Statewide Unallocated", "AL", "0"})
	for _, c := range counties {
		records = append(records, []string{c.fips, c.name, c.state, strconv.Itoa(c.population)})
	}
	return records
}

func writeCSV(path string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeXLSX(path string, records [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		row := make([]any, len(rec))
		for j, v := range rec {
			row[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}
