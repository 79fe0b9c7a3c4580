package gtfs

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"transitcore.delaycast.org/internal/logging"
)

// tableRow gives header-indexed access to one CSV record.
type tableRow struct {
	columns map[string]int
	record  []string
	line    int
}

// get returns the trimmed cell for column, or "" when the column is absent
// or the record is short.
func (r tableRow) get(column string) string {
	idx, ok := r.columns[column]
	if !ok || idx >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[idx])
}

// integer parses a required integer column.
func (r tableRow) integer(column string) (int, error) {
	raw := r.get(column)
	v, err := strconv.Atoi(raw)
	if err != nil {
		// Some exporters write integer columns as floats.
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, fmt.Errorf("line %d: %s %q is not an integer", r.line, column, raw)
		}
		v = int(f)
	}
	return v, nil
}

// optionalFloat parses a float column that may be empty or absent.
func (r tableRow) optionalFloat(column string) (*float64, error) {
	raw := r.get(column)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("line %d: %s %q is not a number", r.line, column, raw)
	}
	return &v, nil
}

// readTable streams a GTFS CSV file, calling fn for every data row. The
// header must contain every column in required.
func readTable(path string, required []string, fn func(tableRow) error) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrMissingTable, path)
		}
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer logging.SafeCloseWithLogging(file,
		slog.Default().With(slog.String("component", "gtfs_loader")),
		"gtfs_table")

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: %s is empty", ErrMalformedTable, path)
		}
		return fmt.Errorf("%w: %s header: %v", ErrMalformedTable, path, err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		columns[strings.TrimSpace(name)] = i
	}
	for _, column := range required {
		if _, ok := columns[column]; !ok {
			return fmt.Errorf("%w: %s has no %s column", ErrMissingTable, path, column)
		}
	}

	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		line++
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMalformedTable, path, err)
		}
		if isBlankRecord(record) {
			continue
		}
		if err := fn(tableRow{columns: columns, record: record, line: line}); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMalformedTable, path, err)
		}
	}
}

func isBlankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
