package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/signalsfoundry/soilcn-simulator/core"
)

// CSVSink writes one CSV file per table and unit into a directory, named
// <study>_<unit>_<table>.csv.
type CSVSink struct {
	dir string
}

// NewCSVSink creates dir if needed.
func NewCSVSink(dir string) (*CSVSink, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &CSVSink{dir: dir}, nil
}

// Dir returns the output directory.
func (s *CSVSink) Dir() string { return s.dir }

// Write writes the carbon, nitrogen, water and summary tables of a unit.
// Units without a converged steady state produce no files.
func (s *CSVSink) Write(ctx context.Context, study string, outcome core.UnitOutcome) error {
	res := outcome.Result
	if res == nil || res.SteadyState == nil {
		return nil
	}
	for _, tbl := range unitTables(res) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.writeTable(s.path(study, outcome.Unit, tbl.Name), tbl); err != nil {
			return err
		}
	}
	return s.writeSummary(s.path(study, outcome.Unit, "summary"), core.SummaryTable(res))
}

// Close is a no-op; every file is closed once written.
func (s *CSVSink) Close() error { return nil }

func (s *CSVSink) path(study, unit, table string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{study, unit, table} {
		if p = safeName(p); p != "" {
			parts = append(parts, p)
		}
	}
	return filepath.Join(s.dir, strings.Join(parts, "_")+".csv")
}

func (s *CSVSink) writeTable(path string, tbl core.Table) error {
	header := append([]string{"period", "month", "tstep"}, tbl.Columns...)
	records := make([][]string, 0, len(tbl.Rows))
	for _, r := range tbl.Rows {
		rec := make([]string, 0, len(header))
		rec = append(rec, string(r.Period), strconv.Itoa(r.Month), strconv.Itoa(r.Timestep))
		for _, v := range r.Values {
			rec = append(rec, formatFloat(v))
		}
		records = append(records, rec)
	}
	return writeCSV(path, header, records)
}

func (s *CSVSink) writeSummary(path string, rows []core.SummaryRow) error {
	header := append([]string{"label"}, core.SummaryColumns...)
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		rec := []string{r.Label}
		for _, v := range r.Values() {
			rec = append(rec, formatFloat(v))
		}
		records = append(records, rec)
	}
	return writeCSV(path, header, records)
}

func writeCSV(path string, header []string, records [][]string) (retErr error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if err := f.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("close %s: %w", path, err)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		case r == ' ' || r == '_' || r == '/':
			return '-'
		default:
			return -1
		}
	}, s)
}
