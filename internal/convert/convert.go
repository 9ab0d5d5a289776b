// Package convert turns extracted TSV dumps into Parquet files for
// analytical use. Conversion is local CPU work, so unlike downloads it
// runs on several workers.
package convert

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
	"golang.org/x/sync/errgroup"

	"github.com/chairdump/chairdump/internal/config"
)

// Result summarises one conversion pass.
type Result struct {
	Converted int
	Skipped   int
	Failed    int
}

// Run converts every extracted TSV under {OutputDir}/extracted into a
// Parquet file under {OutputDir}/parquet, mirroring the table
// subdirectories. Files whose output already exists are skipped.
// Per-file failures are counted and logged; the pass continues.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) (Result, error) {
	pattern := filepath.Join(cfg.OutputDir, "extracted", "*", "*.tsv")
	tsvFiles, err := filepath.Glob(pattern)
	if err != nil {
		return Result{}, fmt.Errorf("glob %s: %w", pattern, err)
	}
	if len(tsvFiles) == 0 {
		logger.Info("no extracted TSV files to convert", slog.String("pattern", pattern))
		return Result{}, nil
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = config.DefaultConvertWorkers
	}
	logger.Info("starting conversion", slog.Int("files", len(tsvFiles)), slog.Int("workers", workers))

	var converted, skipped, failed atomic.Int64
	var mu sync.Mutex
	var errs []error

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, tsvPath := range tsvFiles {
		tsvPath := tsvPath
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			table := filepath.Base(filepath.Dir(tsvPath))
			outDir := filepath.Join(cfg.OutputDir, "parquet", table)
			outName := strings.TrimSuffix(filepath.Base(tsvPath), ".tsv") + ".parquet"
			outPath := filepath.Join(outDir, outName)

			if _, err := os.Stat(outPath); err == nil {
				logger.Debug("parquet exists, skipping", slog.String("file", outName))
				skipped.Add(1)
				return nil
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", outDir, err)
			}

			if err := convertFile(tsvPath, outPath, logger); err != nil {
				logger.Error("conversion failed", slog.String("file", filepath.Base(tsvPath)), "error", err)
				failed.Add(1)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(tsvPath), err))
				mu.Unlock()
				return nil // keep going, per-file failures are not fatal
			}
			converted.Add(1)
			logger.Info("converted", slog.String("file", outName))
			return nil
		})
	}

	waitErr := g.Wait()
	res := Result{
		Converted: int(converted.Load()),
		Skipped:   int(skipped.Load()),
		Failed:    int(failed.Load()),
	}
	return res, errors.Join(append(errs, waitErr)...)
}

// convertFile streams one TSV into a Snappy-compressed Parquet file.
// Column types are inferred from the first data row: integers become
// INT64, decimals DOUBLE, everything else UTF8.
func convertFile(tsvPath, outPath string, logger *slog.Logger) error {
	in, err := os.Open(tsvPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", tsvPath, err)
	}
	defer in.Close()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read header of %s: %w", tsvPath, err)
		}
		return fmt.Errorf("empty TSV %s", tsvPath)
	}
	headers := strings.Split(scanner.Text(), "\t")

	// Peek the first data row for type inference. An empty file (header
	// only) still produces a valid all-string parquet.
	var firstRow []string
	if scanner.Scan() {
		firstRow = strings.Split(scanner.Text(), "\t")
	} else if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", tsvPath, err)
	}

	meta := buildSchema(headers, firstRow)

	fw, err := local.NewLocalFileWriter(outPath)
	if err != nil {
		return fmt.Errorf("create parquet file %s: %w", outPath, err)
	}
	pw, err := writer.NewCSVWriter(meta, fw, 4)
	if err != nil {
		fw.Close()
		os.Remove(outPath)
		return fmt.Errorf("create parquet writer %s: %w", outPath, err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	writeRow := func(fields []string) error {
		recPtrs := make([]*string, len(headers))
		for i := range headers {
			if i >= len(fields) || fields[i] == "" {
				if strings.Contains(meta[i], "type=BYTE_ARRAY") && i < len(fields) {
					empty := ""
					recPtrs[i] = &empty
				}
				continue
			}
			v := fields[i]
			recPtrs[i] = &v
		}
		return pw.WriteString(recPtrs)
	}

	var rows int64
	if firstRow != nil {
		if err := writeRow(firstRow); err != nil {
			return abortWrite(pw, fw, outPath, fmt.Errorf("write row 1 of %s: %w", tsvPath, err))
		}
		rows++
	}
	for scanner.Scan() {
		if err := writeRow(strings.Split(scanner.Text(), "\t")); err != nil {
			return abortWrite(pw, fw, outPath, fmt.Errorf("write row %d of %s: %w", rows+1, tsvPath, err))
		}
		rows++
	}
	if err := scanner.Err(); err != nil {
		return abortWrite(pw, fw, outPath, fmt.Errorf("scan %s: %w", tsvPath, err))
	}

	if err := pw.WriteStop(); err != nil {
		fw.Close()
		os.Remove(outPath)
		return fmt.Errorf("finalize parquet %s: %w", outPath, err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("close parquet %s: %w", outPath, err)
	}
	logger.Debug("wrote parquet", slog.String("path", outPath), slog.Int64("rows", rows))
	return nil
}

func abortWrite(pw *writer.CSVWriter, fw interface{ Close() error }, outPath string, err error) error {
	_ = pw.WriteStop()
	fw.Close()
	os.Remove(outPath)
	return err
}

func buildSchema(headers, firstRow []string) []string {
	meta := make([]string, len(headers))
	for i, h := range headers {
		clean := strings.Map(func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
				return r
			}
			return '_'
		}, strings.TrimSpace(h))
		if clean == "" {
			clean = fmt.Sprintf("column_%d", i)
		}

		typ := "BYTE_ARRAY"
		if i < len(firstRow) && firstRow[i] != "" {
			val := firstRow[i]
			if _, err := strconv.ParseInt(val, 10, 64); err == nil {
				typ = "INT64"
			} else if _, err := strconv.ParseFloat(val, 64); err == nil {
				typ = "DOUBLE"
			}
		}

		if typ == "BYTE_ARRAY" {
			meta[i] = fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL", clean)
		} else {
			meta[i] = fmt.Sprintf("name=%s, type=%s, repetitiontype=OPTIONAL", clean, typ)
		}
	}
	return meta
}
