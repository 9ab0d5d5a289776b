package catalog

import (
	"errors"
	"math"
	"testing"
)

func TestEstimate(t *testing.T) {
	compressed, uncompressed, err := Estimate("2021-01-01", "2021-01-10", []string{"blocks", "transactions"})
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}

	// 10 days of (0.8 + 150) MB.
	wantCompressed := 10 * (0.8 + 150) / 1024
	if math.Abs(compressed-wantCompressed) > 1e-9 {
		t.Errorf("compressed = %f, want %f", compressed, wantCompressed)
	}
	if math.Abs(uncompressed-wantCompressed/0.3) > 1e-9 {
		t.Errorf("uncompressed = %f, want %f", uncompressed, wantCompressed/0.3)
	}
}

func TestEstimateNonNegativeAndOrdered(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		tables     []string
	}{
		{"single day single table", "2021-01-01", "2021-01-01", []string{"blocks"}},
		{"all tables", "2020-06-01", "2020-12-31", DefaultTables},
		{"year of outputs", "2019-01-01", "2019-12-31", []string{"outputs"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compressed, uncompressed, err := Estimate(tt.start, tt.end, tt.tables)
			if err != nil {
				t.Fatalf("Estimate: %v", err)
			}
			if compressed < 0 || uncompressed < 0 {
				t.Errorf("negative estimate: %f / %f", compressed, uncompressed)
			}
			if uncompressed < compressed {
				t.Errorf("uncompressed %f < compressed %f", uncompressed, compressed)
			}
		})
	}
}

func TestEstimateInvalidRange(t *testing.T) {
	_, _, err := Estimate("2021-01-10", "2021-01-01", []string{"blocks"})
	if !errors.Is(err, ErrInvalidRange) {
		t.Errorf("err = %v, want ErrInvalidRange", err)
	}
}

func TestEstimateUnknownTable(t *testing.T) {
	_, _, err := Estimate("2021-01-01", "2021-01-02", []string{"addresses"})
	if !errors.Is(err, ErrUnknownTable) {
		t.Errorf("err = %v, want ErrUnknownTable", err)
	}
}

func TestEstimateBadDate(t *testing.T) {
	if _, _, err := Estimate("not-a-date", "2021-01-01", []string{"blocks"}); err == nil {
		t.Error("Estimate accepted malformed start date")
	}
}
