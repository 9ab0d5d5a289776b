package catalog

import (
	"fmt"
	"path/filepath"
	"time"
)

// Date token used in the remote file names. Blockchair publishes dumps
// under the dashed form; older tooling sometimes generated undashed
// names, which do not exist on the mirror.
const dateLayout = "2006-01-02"

// Approximate compressed megabytes published per table per day.
var dailyVolumeMB = map[string]float64{
	"blocks":       0.8,
	"transactions": 150,
	"outputs":      250,
}

// DefaultTables lists the known tables in their default processing order.
var DefaultTables = []string{"blocks", "transactions", "outputs"}

// KnownTable reports whether name is a table this tool knows how to fetch.
func KnownTable(name string) bool {
	_, ok := dailyVolumeMB[name]
	return ok
}

// FileName returns the canonical dump file name for a table and day,
// without the .gz suffix when compressed is false.
func FileName(table string, date time.Time, compressed bool) string {
	name := fmt.Sprintf("blockchair_bitcoin_%s_%s.tsv", table, date.Format(dateLayout))
	if compressed {
		name += ".gz"
	}
	return name
}

// URL returns the remote URL for one table/day dump file.
func URL(baseURL, table string, date time.Time) string {
	return baseURL + table + "/" + FileName(table, date, true)
}

// RawPath returns where the compressed artifact is stored locally.
func RawPath(outputDir, table string, date time.Time) string {
	return filepath.Join(outputDir, "raw", table, FileName(table, date, true))
}

// ExtractedPath returns where the decompressed TSV is stored locally.
// Repeated calls for the same input always resolve to the same location,
// which is what makes presence-on-disk a valid resume check.
func ExtractedPath(outputDir, table string, date time.Time) string {
	return filepath.Join(outputDir, "extracted", table, FileName(table, date, false))
}

// WorkItem is one (table, day) unit of fetch-and-extract work.
type WorkItem struct {
	Table string
	Date  time.Time
}

func (w WorkItem) String() string {
	return fmt.Sprintf("%s %s", w.Table, w.Date.Format(dateLayout))
}

// URL returns the remote URL for this item.
func (w WorkItem) URL(baseURL string) string {
	return URL(baseURL, w.Table, w.Date)
}

// RawPath returns the local compressed path for this item.
func (w WorkItem) RawPath(outputDir string) string {
	return RawPath(outputDir, w.Table, w.Date)
}

// ExtractedPath returns the local decompressed path for this item.
func (w WorkItem) ExtractedPath(outputDir string) string {
	return ExtractedPath(outputDir, w.Table, w.Date)
}

// DateRange returns every day from start to end inclusive.
func DateRange(start, end time.Time) []time.Time {
	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// BuildWorkItems expands a date range and table set into the fixed
// processing order: days ascending on the outside, tables in their
// configured order on the inside. The item count never changes mid-run.
func BuildWorkItems(start, end time.Time, tables []string) []WorkItem {
	dates := DateRange(start, end)
	items := make([]WorkItem, 0, len(dates)*len(tables))
	for _, d := range dates {
		for _, t := range tables {
			items = append(items, WorkItem{Table: t, Date: d})
		}
	}
	return items
}

// ParseDate parses a YYYY-MM-DD day string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate renders a day in the same YYYY-MM-DD form ParseDate accepts.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}
