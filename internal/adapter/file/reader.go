// Package file reads USAFacts input tables from disk and writes derived
// reports as CSV and JSON.
package file

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/county-rates-etl/internal/domain"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"
)

// ReadTable reads a .csv or .xlsx table into a RawTable named after the
// file. For workbooks, sheet selects the worksheet; empty means the first.
func ReadTable(path, sheet string) (domain.RawTable, error) {
	var (
		records [][]string
		err     error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		records, err = readCSV(path)
	case ".xlsx":
		records, err = readXLSX(path, sheet)
	default:
		return domain.RawTable{}, fmt.Errorf("read %s: unsupported file type %q", path, ext)
	}
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return domain.RawTable{}, fmt.Errorf("read %s: no header row", path)
	}
	return domain.RawTable{
		Name:   filepath.Base(path),
		Header: records[0],
		Rows:   records[1:],
	}, nil
}

// readCSV keeps every column as a string so identifiers keep their leading
// zeros and counts are parsed by the domain loader. The header is returned
// exactly as written: gota renames duplicate and blank column names, which
// would hide a repeated date column from the loader.
func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header, err := csv.NewReader(f).Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	df := dataframe.ReadCSV(f,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nil),
	)
	if df.Err != nil {
		return nil, df.Err
	}
	records := df.Records()
	if len(records) == 0 {
		return nil, nil
	}
	if len(records[0]) != len(header) {
		return nil, fmt.Errorf("header has %d columns, parsed %d", len(header), len(records[0]))
	}
	records[0] = header
	return records, nil
}

func readXLSX(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	// Raw values keep counts free of display formats such as thousands
	// separators.
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if err := convertDateHeaders(f, sheet, rows[0]); err != nil {
		return nil, fmt.Errorf("sheet %q: %w", sheet, err)
	}

	// GetRows trims trailing empty cells; pad data rows back to the header
	// width so the loader only rejects rows that are genuinely too long.
	width := len(rows[0])
	for i := 1; i < len(rows); i++ {
		for len(rows[i]) < width {
			rows[i] = append(rows[i], "")
		}
	}
	return rows, nil
}

// convertDateHeaders rewrites header cells holding date serials as ISO dates.
// Spreadsheet apps save date headers as numbers with a date number format.
func convertDateHeaders(f *excelize.File, sheet string, header []string) error {
	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}
	for i, v := range header {
		serial, err := strconv.ParseFloat(v, 64)
		if err != nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		isDate, err := hasDateFormat(f, sheet, cell)
		if err != nil {
			return fmt.Errorf("header %s: %w", cell, err)
		}
		if !isDate {
			continue
		}
		d, err := excelize.ExcelDateToTime(serial, date1904)
		if err != nil {
			return fmt.Errorf("header %s: %w", cell, err)
		}
		header[i] = d.Format(time.DateOnly)
	}
	return nil
}

func hasDateFormat(f *excelize.File, sheet, cell string) (bool, error) {
	idx, err := f.GetCellStyle(sheet, cell)
	if err != nil || idx == 0 {
		return false, err
	}
	style, err := f.GetStyle(idx)
	if err != nil {
		return false, err
	}
	if style.CustomNumFmt != nil {
		return isDateFormatCode(*style.CustomNumFmt), nil
	}
	switch n := style.NumFmt; {
	case n >= 14 && n <= 22, n >= 27 && n <= 36, n >= 45 && n <= 47, n >= 50 && n <= 58:
		return true, nil
	}
	return false, nil
}

// isDateFormatCode reports whether a custom number format shows a day or a
// year. Quoted literals and bracketed locale or color sections are ignored.
func isDateFormatCode(code string) bool {
	var quoted, bracket bool
	for _, r := range strings.ToLower(code) {
		switch {
		case r == '"':
			quoted = !quoted
		case quoted:
		case r == '[':
			bracket = true
		case r == ']':
			bracket = false
		case bracket:
		case r == 'd' || r == 'y':
			return true
		}
	}
	return false
}

// Extractor reads the cases, deaths, and population tables from disk.
// It implements pipeline.Extractor.
type Extractor struct {
	CasesPath      string
	DeathsPath     string
	PopulationPath string
	Sheet          string
}

// Extract reads all three tables. The files are re-read on every call so a
// refreshed snapshot is picked up by the next run.
func (e *Extractor) Extract(ctx context.Context) (domain.Inputs, error) {
	in := domain.Inputs{Daily: make(map[string]domain.RawTable, 2)}
	for metric, path := range map[string]string{
		domain.MetricCases:  e.CasesPath,
		domain.MetricDeaths: e.DeathsPath,
	} {
		if err := ctx.Err(); err != nil {
			return domain.Inputs{}, err
		}
		raw, err := ReadTable(path, e.Sheet)
		if err != nil {
			return domain.Inputs{}, err
		}
		in.Daily[metric] = raw
	}

	pop, err := ReadTable(e.PopulationPath, e.Sheet)
	if err != nil {
		return domain.Inputs{}, err
	}
	in.Population = pop
	return in, nil
}
