package file

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/county-rates-etl/internal/domain"
)

// ReportFile is the name of the JSON report written next to the CSV outputs.
const ReportFile = "report.json"

// Writer stores each report under Dir, replacing the previous run's files.
// It implements pipeline.Loader.
type Writer struct {
	Dir string
}

func (w *Writer) Name() string { return "file" }

// Load writes <metric>_incidence.csv, <metric>_rates.csv, and report.json.
// It returns the number of CSV data rows written.
func (w *Writer) Load(ctx context.Context, report domain.Report) (int, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}

	rows := 0
	for _, m := range report.Metrics {
		if err := ctx.Err(); err != nil {
			return rows, err
		}

		incidence := [][]string{{"week", "total"}}
		for _, p := range m.Incidence.Points {
			incidence = append(incidence, []string{p.Week, formatFloat(p.Total)})
		}
		if err := w.writeCSV(m.Metric+"_incidence.csv", incidence); err != nil {
			return rows, err
		}

		rates := [][]string{{"countyFIPS", "variable", "value"}}
		for _, r := range m.Rates.Rows {
			rates = append(rates, []string{string(r.Entity), r.Week, formatFloat(r.Value)})
		}
		if err := w.writeCSV(m.Metric+"_rates.csv", rates); err != nil {
			return rows, err
		}
		rows += len(incidence) - 1 + len(rates) - 1
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return rows, fmt.Errorf("encode report: %w", err)
	}
	if err := writeAtomic(filepath.Join(w.Dir, ReportFile), func(f *os.File) error {
		_, err := f.Write(data)
		return err
	}); err != nil {
		return rows, err
	}
	return rows, nil
}

func (w *Writer) writeCSV(name string, records [][]string) error {
	return writeAtomic(filepath.Join(w.Dir, name), func(f *os.File) error {
		cw := csv.NewWriter(f)
		if err := cw.WriteAll(records); err != nil {
			return err
		}
		return cw.Error()
	})
}

// writeAtomic writes to a temporary file and renames it over path so readers
// never observe a partially written file.
func writeAtomic(path string, write func(*os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ReadReport decodes a report previously written by Writer.
func ReadReport(path string) (domain.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Report{}, fmt.Errorf("read report: %w", err)
	}
	var report domain.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return domain.Report{}, fmt.Errorf("decode report %s: %w", path, err)
	}
	return report, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
