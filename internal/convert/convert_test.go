package convert

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chairdump/chairdump/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeTSV(t *testing.T, dir, table, name, content string) string {
	t.Helper()
	tableDir := filepath.Join(dir, "extracted", table)
	if err := os.MkdirAll(tableDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(tableDir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBuildSchemaTypeInference(t *testing.T) {
	headers := []string{"height", "fee_rate", "hash", "weird col!"}
	firstRow := []string{"123456", "12.5", "deadbeef", "x"}

	meta := buildSchema(headers, firstRow)
	if len(meta) != 4 {
		t.Fatalf("got %d columns, want 4", len(meta))
	}

	checks := []struct{ want string }{
		{"name=height, type=INT64"},
		{"name=fee_rate, type=DOUBLE"},
		{"name=hash, type=BYTE_ARRAY, convertedtype=UTF8"},
		{"name=weird_col_, type=BYTE_ARRAY"},
	}
	for i, c := range checks {
		if !strings.Contains(meta[i], c.want) {
			t.Errorf("meta[%d] = %q, want substring %q", i, meta[i], c.want)
		}
	}
	for _, m := range meta {
		if !strings.Contains(m, "repetitiontype=OPTIONAL") {
			t.Errorf("column not optional: %q", m)
		}
	}
}

func TestBuildSchemaNoDataRow(t *testing.T) {
	meta := buildSchema([]string{"a", "b"}, nil)
	for _, m := range meta {
		if !strings.Contains(m, "type=BYTE_ARRAY") {
			t.Errorf("header-only schema should default to strings, got %q", m)
		}
	}
}

func TestBuildSchemaEmptyHeader(t *testing.T) {
	meta := buildSchema([]string{""}, []string{"1"})
	if !strings.Contains(meta[0], "name=column_0") {
		t.Errorf("blank header should get a placeholder name, got %q", meta[0])
	}
}

func TestRunConvertsSkipsAndCounts(t *testing.T) {
	dir := t.TempDir()
	writeTSV(t, dir, "blocks", "blockchair_bitcoin_blocks_2021-01-01.tsv",
		"height\thash\tsize\n1\tdeadbeef\t285\n2\tcafebabe\t310\n")
	writeTSV(t, dir, "transactions", "blockchair_bitcoin_transactions_2021-01-01.tsv",
		"hash\tfee\nabc\t100\n")

	cfg := config.Config{OutputDir: dir, Workers: 2}
	res, err := Run(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Converted != 2 || res.Skipped != 0 || res.Failed != 0 {
		t.Fatalf("first pass: %+v", res)
	}

	for _, p := range []string{
		filepath.Join(dir, "parquet", "blocks", "blockchair_bitcoin_blocks_2021-01-01.parquet"),
		filepath.Join(dir, "parquet", "transactions", "blockchair_bitcoin_transactions_2021-01-01.parquet"),
	} {
		fi, err := os.Stat(p)
		if err != nil {
			t.Fatalf("expected parquet output %s: %v", p, err)
		}
		if fi.Size() == 0 {
			t.Errorf("parquet output %s is empty", p)
		}
	}

	// Second pass skips everything already converted.
	res, err = Run(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if res.Converted != 0 || res.Skipped != 2 || res.Failed != 0 {
		t.Fatalf("second pass: %+v", res)
	}
}

func TestRunEmptyTSVCountsAsFailed(t *testing.T) {
	dir := t.TempDir()
	writeTSV(t, dir, "blocks", "blockchair_bitcoin_blocks_2021-01-01.tsv", "")
	writeTSV(t, dir, "blocks", "blockchair_bitcoin_blocks_2021-01-02.tsv",
		"height\thash\n1\tdeadbeef\n")

	res, err := Run(context.Background(), config.Config{OutputDir: dir, Workers: 1}, testLogger())
	if res.Failed != 1 {
		t.Fatalf("expected 1 failed, got %+v", res)
	}
	if res.Converted != 1 {
		t.Fatalf("good file should still convert, got %+v", res)
	}
	if err == nil {
		t.Fatal("expected joined error reporting the empty file")
	}
}

func TestRunNothingToConvert(t *testing.T) {
	res, err := Run(context.Background(), config.Config{OutputDir: t.TempDir()}, testLogger())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res != (Result{}) {
		t.Fatalf("expected zero result, got %+v", res)
	}
}
