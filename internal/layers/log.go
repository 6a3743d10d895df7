package layers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Column names in the print log written by the monitor. Other columns
// (State, TempBed, TempNozzle) are carried but ignored.
const (
	ColTimestamp = "RelativeTimestamp"
	ColZ         = "Z"
)

// ErrMissingColumn is returned when the log header lacks a required column.
var ErrMissingColumn = errors.New("print log missing required column")

// Sample is one usable log record.
type Sample struct {
	Timestamp float64 // seconds since recording start
	Z         float64 // mm
}

// ReadStats counts what ReadSamples saw. Skipped rows are not errors.
type ReadStats struct {
	Rows    int
	Skipped int
}

// ReadSamples parses the CSV print log. Rows whose timestamp or Z is
// missing, non-numeric or non-finite are skipped silently and counted in
// ReadStats.Skipped. An unreadable stream or a header without the required
// columns is an error.
func ReadSamples(r io.Reader) ([]Sample, ReadStats, error) {
	var stats ReadStats

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, stats, fmt.Errorf("%w: empty log", ErrMissingColumn)
		}
		return nil, stats, fmt.Errorf("read log header: %w", err)
	}
	tsIdx, zIdx := -1, -1
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		switch name {
		case ColTimestamp:
			tsIdx = i
		case ColZ:
			zIdx = i
		}
	}
	if tsIdx < 0 {
		return nil, stats, fmt.Errorf("%w: %s", ErrMissingColumn, ColTimestamp)
	}
	if zIdx < 0 {
		return nil, stats, fmt.Errorf("%w: %s", ErrMissingColumn, ColZ)
	}

	var samples []Sample
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				stats.Rows++
				stats.Skipped++
				continue
			}
			return nil, stats, fmt.Errorf("read log: %w", err)
		}
		stats.Rows++

		ts, ok := field(rec, tsIdx)
		if !ok {
			stats.Skipped++
			continue
		}
		z, ok := field(rec, zIdx)
		if !ok {
			stats.Skipped++
			continue
		}
		samples = append(samples, Sample{Timestamp: ts, Z: z})
	}
	return samples, stats, nil
}

// field parses rec[idx] as a finite float.
func field(rec []string, idx int) (float64, bool) {
	if idx >= len(rec) {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(rec[idx]), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
