package catalog

import (
	"path/filepath"
	"testing"
	"time"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

func TestURL(t *testing.T) {
	d := date(t, "2021-01-05")
	got := URL("https://gz.blockchair.com/bitcoin/", "blocks", d)
	want := "https://gz.blockchair.com/bitcoin/blocks/blockchair_bitcoin_blocks_2021-01-05.tsv.gz"
	if got != want {
		t.Errorf("URL = %q, want %q", got, want)
	}
}

func TestPaths(t *testing.T) {
	d := date(t, "2021-01-05")

	raw := RawPath("/data", "transactions", d)
	wantRaw := filepath.Join("/data", "raw", "transactions", "blockchair_bitcoin_transactions_2021-01-05.tsv.gz")
	if raw != wantRaw {
		t.Errorf("RawPath = %q, want %q", raw, wantRaw)
	}

	extracted := ExtractedPath("/data", "transactions", d)
	wantExtracted := filepath.Join("/data", "extracted", "transactions", "blockchair_bitcoin_transactions_2021-01-05.tsv")
	if extracted != wantExtracted {
		t.Errorf("ExtractedPath = %q, want %q", extracted, wantExtracted)
	}
}

func TestPathsDeterministic(t *testing.T) {
	d := date(t, "2021-06-30")
	a := ExtractedPath("/out", "blocks", d)
	b := ExtractedPath("/out", "blocks", d)
	if a != b {
		t.Errorf("repeated derivation differs: %q vs %q", a, b)
	}
}

func TestDateRange(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		want       int
	}{
		{"single day", "2021-01-01", "2021-01-01", 1},
		{"three days", "2021-01-01", "2021-01-03", 3},
		{"month boundary", "2021-01-30", "2021-02-02", 4},
		{"empty when inverted", "2021-01-03", "2021-01-01", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DateRange(date(t, tt.start), date(t, tt.end))
			if len(got) != tt.want {
				t.Errorf("DateRange(%s, %s) has %d days, want %d", tt.start, tt.end, len(got), tt.want)
			}
		})
	}
}

func TestBuildWorkItemsOrder(t *testing.T) {
	items := BuildWorkItems(date(t, "2021-01-01"), date(t, "2021-01-02"), []string{"transactions", "blocks"})

	want := []struct {
		table string
		day   string
	}{
		{"transactions", "2021-01-01"},
		{"blocks", "2021-01-01"},
		{"transactions", "2021-01-02"},
		{"blocks", "2021-01-02"},
	}
	if len(items) != len(want) {
		t.Fatalf("got %d items, want %d", len(items), len(want))
	}
	for i, w := range want {
		if items[i].Table != w.table || FormatDate(items[i].Date) != w.day {
			t.Errorf("item %d = (%s, %s), want (%s, %s)",
				i, items[i].Table, FormatDate(items[i].Date), w.table, w.day)
		}
	}
}

func TestBuildWorkItemsScenario(t *testing.T) {
	// Three days, one table: exactly three items in date order.
	items := BuildWorkItems(date(t, "2021-01-01"), date(t, "2021-01-03"), []string{"blocks"})
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
	for i, day := range []string{"2021-01-01", "2021-01-02", "2021-01-03"} {
		if items[i].Table != "blocks" || FormatDate(items[i].Date) != day {
			t.Errorf("item %d = %s, want (blocks, %s)", i, items[i], day)
		}
	}
}

func TestKnownTable(t *testing.T) {
	for _, name := range DefaultTables {
		if !KnownTable(name) {
			t.Errorf("KnownTable(%q) = false, want true", name)
		}
	}
	if KnownTable("addresses") {
		t.Error("KnownTable(addresses) = true, want false")
	}
}

func TestParseDateRejectsUndashed(t *testing.T) {
	if _, err := ParseDate("20210105"); err == nil {
		t.Error("ParseDate accepted undashed date")
	}
}
