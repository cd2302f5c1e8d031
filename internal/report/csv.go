// Package report accumulates per-iteration metrics into a CSV file and
// renders a multi-panel progress plot from it. Everything here is
// best-effort reporting: callers log and swallow errors rather than let a
// reporting failure abort an optimization run.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// MetricsCSVName is the accumulator file within a run directory.
const MetricsCSVName = "metrics.csv"

// Columns is the fixed CSV layout. Consumers (plots, spreadsheets) rely on
// the order.
var Columns = []string{"iteration", "ac_gain_db", "tran_gain_db", "unity_bandwidth_hz", "score"}

// AppendMetricsCSV appends one iteration row to the run's metrics.csv,
// creating it with a header when absent. Metrics missing from the map leave
// their cell empty. Returns the CSV path.
func AppendMetricsCSV(runDir string, iteration int, metrics map[string]float64) (string, error) {
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}
	path := filepath.Join(runDir, MetricsCSVName)

	_, statErr := os.Stat(path)
	writeHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(Columns); err != nil {
			return "", fmt.Errorf("failed to write CSV header: %w", err)
		}
	}

	row := make([]string, len(Columns))
	row[0] = strconv.Itoa(iteration)
	for i, col := range Columns[1:] {
		if v, ok := metrics[col]; ok {
			row[i+1] = strconv.FormatFloat(v, 'g', -1, 64)
		}
	}
	if err := w.Write(row); err != nil {
		return "", fmt.Errorf("failed to write CSV row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush CSV: %w", err)
	}
	return path, nil
}

// row is one parsed CSV line; values holds only the cells that were
// non-empty and numeric.
type row struct {
	iteration int
	values    map[string]float64
}

// readMetricsCSV parses the accumulator leniently: unreadable files yield
// no rows, unparsable cells are skipped.
func readMetricsCSV(path string) []row {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil || len(records) < 2 {
		return nil
	}

	header := records[0]
	var rows []row
	for _, rec := range records[1:] {
		parsed := row{values: map[string]float64{}}
		for i, cell := range rec {
			if i >= len(header) || cell == "" {
				continue
			}
			if header[i] == "iteration" {
				if n, err := strconv.Atoi(cell); err == nil {
					parsed.iteration = n
				}
				continue
			}
			if v, err := strconv.ParseFloat(cell, 64); err == nil {
				parsed.values[header[i]] = v
			}
		}
		rows = append(rows, parsed)
	}
	return rows
}
