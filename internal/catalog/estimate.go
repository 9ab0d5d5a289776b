package catalog

import (
	"errors"
	"fmt"
)

// Observed average gzip ratio of the dumps: compressed size is roughly
// 30% of the raw TSV.
const gzipRatio = 0.3

var (
	// ErrInvalidRange is returned when the end date is before the start date.
	ErrInvalidRange = errors.New("end date is before start date")

	// ErrUnknownTable is returned for a table name outside the registry.
	ErrUnknownTable = errors.New("unknown table")
)

// Estimate converts a date range and table set into a rough
// compressed/uncompressed gigabyte figure from the per-table daily volume
// constants. It is a planning aid only; the real fetch never depends on it.
func Estimate(start, end string, tables []string) (compressedGB, uncompressedGB float64, err error) {
	startDate, err := ParseDate(start)
	if err != nil {
		return 0, 0, err
	}
	endDate, err := ParseDate(end)
	if err != nil {
		return 0, 0, err
	}
	if endDate.Before(startDate) {
		return 0, 0, fmt.Errorf("%w: %s..%s", ErrInvalidRange, start, end)
	}

	days := float64(endDate.Sub(startDate).Hours()/24) + 1

	var totalMB float64
	for _, table := range tables {
		mbPerDay, ok := dailyVolumeMB[table]
		if !ok {
			return 0, 0, fmt.Errorf("%w: %q", ErrUnknownTable, table)
		}
		totalMB += mbPerDay * days
	}

	compressedGB = totalMB / 1024
	uncompressedGB = compressedGB / gzipRatio
	return compressedGB, uncompressedGB, nil
}
