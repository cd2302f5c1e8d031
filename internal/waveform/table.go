// Package waveform extracts scalar engineering metrics from simulator output.
//
// The simulator deposits whitespace-delimited numeric tables (one header row,
// first column is the sweep variable) and a free-text operating-point log.
// Everything in this package is deliberately tolerant: malformed or missing
// input degrades to zero values, never to an error, because a failed metric
// must not abort an evaluation.
package waveform

import (
	"bufio"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Table holds a parsed sweep table. Imag is all zeros when the source file
// carried no imaginary column.
type Table struct {
	Sweep []float64
	Real  []float64
	Imag  []float64
}

// Empty reports whether the table carries no samples.
func (t *Table) Empty() bool { return len(t.Sweep) == 0 }

// readTable parses the file at path, skipping one header row. Rows that do
// not parse as at least two numeric columns are dropped; an unreadable file
// yields an empty table.
func readTable(path string) *Table {
	tab := &Table{}

	f, err := os.Open(path)
	if err != nil {
		slog.Debug("waveform table unreadable", "path", path, "error", err)
		return tab
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if first {
			// header row
			first = false
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		sweep, err1 := strconv.ParseFloat(fields[0], 64)
		re, err2 := strconv.ParseFloat(fields[1], 64)
		if err1 != nil || err2 != nil {
			continue
		}

		im := 0.0
		if len(fields) > 2 {
			// optional imaginary column; a bad token degrades to zero
			if v, err := strconv.ParseFloat(fields[2], 64); err == nil {
				im = v
			}
		}

		tab.Sweep = append(tab.Sweep, sweep)
		tab.Real = append(tab.Real, re)
		tab.Imag = append(tab.Imag, im)
	}
	if err := scanner.Err(); err != nil {
		slog.Debug("waveform table scan error", "path", path, "error", err)
	}

	return tab
}
