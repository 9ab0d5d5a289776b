package config

import "runtime"

const (
	// Root of the Blockchair Bitcoin dump mirror. Every table directory
	// lives directly under it.
	DefaultBaseURL = "https://gz.blockchair.com/bitcoin/"

	// Per-attempt HTTP timeout. The mirror can be slow on large tables
	// but a single request should never hang longer than this.
	DefaultHTTPTimeoutSeconds = 60
)

var (
	// Default number of conversion workers, set to CPU count. Downloads
	// themselves are always sequential.
	DefaultConvertWorkers = runtime.NumCPU()
)

// Config holds application settings shared by all commands.
type Config struct {
	OutputDir string // root for raw/, extracted/ and parquet/
	DbPath    string // DuckDB event-log database file
	BaseURL   string
	Workers   int // conversion workers only
}
