// Command validate checks an exported report.json for internal consistency
// and, when the input tables are given, re-derives every metric from them
// and compares the results exactly.
//
// Usage:
//
//	go run ./cmd/validate -report out/report.json
//	go run ./cmd/validate -report out/report.json \
//	  -cases data/mock/covid_confirmed_usafacts.csv \
//	  -deaths data/mock/covid_deaths_usafacts.csv \
//	  -population data/mock/covid_county_population_usafacts.csv
package main

import (
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/couchcryptid/county-rates-etl/internal/adapter/file"
	"github.com/couchcryptid/county-rates-etl/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type options struct {
	report     string
	cases      string
	deaths     string
	population string
	sheet      string
	policy     string
}

func main() {
	var opts options
	flag.StringVar(&opts.report, "report", "", "path to report.json written by the file sink")
	flag.StringVar(&opts.cases, "cases", "", "optional cases table to re-derive from")
	flag.StringVar(&opts.deaths, "deaths", "", "optional deaths table to re-derive from")
	flag.StringVar(&opts.population, "population", "", "population table, required with -cases/-deaths")
	flag.StringVar(&opts.sheet, "sheet", "", "worksheet name for .xlsx inputs")
	flag.StringVar(&opts.policy, "policy", "abort", "rate integrity policy used by the run: abort or skip")
	flag.Parse()

	if opts.report == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(opts); code != 0 {
		os.Exit(code)
	}
}

func run(opts options) int {
	fmt.Println("=== County Rates Report Validation ===")
	fmt.Println()

	report, err := file.ReadReport(opts.report)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateStructure(report),
		validateRatePanels(report),
	}
	if opts.cases != "" || opts.deaths != "" {
		p, err := validateRederivation(report, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			return 1
		}
		phases = append(phases, p)
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	for _, m := range report.Metrics {
		fmt.Printf("%s: %d counties, %d complete weeks, %d excluded, %d rate rows\n",
			m.Metric, m.Entities, m.CompleteWeeks, len(m.ExcludedWeeks), len(m.Rates.Rows))
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Report structure ──

func validateStructure(report domain.Report) *phase {
	p := &phase{name: "Report structure"}
	if len(report.Metrics) == 0 {
		p.errorf("report has no metrics")
	}

	for _, m := range report.Metrics {
		checkWeekLabels(p, m.Metric+" excluded weeks", m.ExcludedWeeks)

		labels := make([]string, len(m.Incidence.Points))
		for i, pt := range m.Incidence.Points {
			labels[i] = pt.Week
			if pt.Total < 0 || math.IsNaN(pt.Total) || math.IsInf(pt.Total, 0) {
				p.errorf("%s incidence %s: invalid total %v", m.Metric, pt.Week, pt.Total)
			}
		}
		checkWeekLabels(p, m.Metric+" incidence", labels)

		if m.CompleteWeeks != len(m.Incidence.Points) {
			p.errorf("%s: complete_weeks=%d but %d incidence points", m.Metric, m.CompleteWeeks, len(m.Incidence.Points))
		}
		for _, ex := range m.ExcludedWeeks {
			for _, l := range labels {
				if ex == l {
					p.errorf("%s: week %s is both excluded and in the incidence series", m.Metric, ex)
				}
			}
		}

		last, ok := m.Incidence.CurrentWeekTotal()
		switch {
		case ok && m.CurrentWeek == nil:
			p.errorf("%s: current week missing", m.Metric)
		case ok && (m.CurrentWeek.Week != last.Week || m.CurrentWeek.Total != last.Total):
			p.errorf("%s: current week %s does not match last incidence point %s", m.Metric, m.CurrentWeek.Week, last.Week)
		case !ok && m.CurrentWeek != nil:
			p.errorf("%s: current week set on an empty series", m.Metric)
		}
	}
	return p
}

// checkWeekLabels verifies labels are strictly ascending Saturdays.
func checkWeekLabels(p *phase, what string, labels []string) {
	var prev time.Time
	for _, l := range labels {
		d, err := time.Parse(time.DateOnly, l)
		if err != nil {
			p.errorf("%s: bad week label %q", what, l)
			continue
		}
		if d.Weekday() != time.Saturday {
			p.errorf("%s: week %s does not end on a Saturday", what, l)
		}
		if !prev.IsZero() && !d.After(prev) {
			p.errorf("%s: week %s out of order", what, l)
		}
		prev = d
	}
}

// ── Rate panels ──

func validateRatePanels(report domain.Report) *phase {
	p := &phase{name: "Rate panel shape"}
	for _, m := range report.Metrics {
		for _, r := range m.Rates.Rows {
			if r.Entity.IsPlaceholder() {
				p.errorf("%s: placeholder county %s in rates", m.Metric, r.Entity)
			}
			if len(r.Entity) != 5 {
				p.errorf("%s: county %q is not a 5-digit FIPS code", m.Metric, r.Entity)
			}
			if r.Value < 0 || math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
				p.errorf("%s: county %s week %s has invalid rate %v", m.Metric, r.Entity, r.Week, r.Value)
			}
		}

		wide, err := domain.Widen(m.Rates)
		if err != nil {
			p.errorf("%s: %v", m.Metric, err)
			continue
		}
		if len(wide.Entities) != m.Entities {
			p.errorf("%s: entities=%d but rate panel has %d counties", m.Metric, m.Entities, len(wide.Entities))
		}
		if len(wide.Entities) > 0 && len(wide.Weeks) != len(m.Incidence.Points) {
			p.errorf("%s: rate panel has %d weeks, incidence has %d", m.Metric, len(wide.Weeks), len(m.Incidence.Points))
		}
		for i, w := range wide.Weeks {
			if i < len(m.Incidence.Points) && m.Incidence.Points[i].Week != w {
				p.errorf("%s: rate week %s does not match incidence week %s", m.Metric, w, m.Incidence.Points[i].Week)
			}
		}
	}
	return p
}

// ── Re-derivation ──

func validateRederivation(report domain.Report, opts options) (*phase, error) {
	p := &phase{name: "Re-derivation from inputs"}

	if opts.population == "" {
		return nil, errors.New("-population is required to re-derive")
	}
	policy, err := domain.ParseIntegrityPolicy(opts.policy)
	if err != nil {
		return nil, err
	}

	popRaw, err := file.ReadTable(opts.population, opts.sheet)
	if err != nil {
		return nil, err
	}
	pop, err := domain.LoadPopulation(popRaw, domain.PopulationSchema)
	if err != nil {
		return nil, err
	}

	for metric, path := range map[string]string{domain.MetricCases: opts.cases, domain.MetricDeaths: opts.deaths} {
		if path == "" {
			continue
		}
		got, ok := report.Metric(metric)
		if !ok {
			p.errorf("%s: not in report", metric)
			continue
		}
		raw, err := file.ReadTable(path, opts.sheet)
		if err != nil {
			return nil, err
		}
		daily, err := domain.LoadDailyPanel(metric, raw, domain.CasesSchema)
		if err != nil {
			p.errorf("%s: %v", metric, err)
			continue
		}
		want, err := domain.Derive(daily, pop, policy)
		if err != nil {
			p.errorf("%s: %v", metric, err)
			continue
		}
		if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
			p.errorf("%s mismatch (-derived +report):\n%s", metric, diff)
		}
	}
	return p, nil
}
