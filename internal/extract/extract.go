// Package extract decompresses downloaded .gz artifacts.
package extract

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// GzToFile streams gzPath decompressed to outPath. The data is written
// to a temporary file in the destination directory and renamed into
// place only on success: the resume check treats "outPath exists" as
// "fully done", so a crash mid-extraction must never leave a truncated
// file under the final name.
func GzToFile(gzPath, outPath string) error {
	in, err := os.Open(gzPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", gzPath, err)
	}
	defer in.Close()

	gz, err := gzip.NewReader(in)
	if err != nil {
		return fmt.Errorf("gzip reader for %s: %w", gzPath, err)
	}
	defer gz.Close()

	dir := filepath.Dir(outPath)
	tmp, err := os.CreateTemp(dir, filepath.Base(outPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, gz); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("decompress %s: %w", gzPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %s to %s: %w", tmpPath, outPath, err)
	}
	return nil
}
