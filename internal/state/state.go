// Package state persists the last configured run so an interrupted
// download can be offered for resumption on the next start.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chairdump/chairdump/internal/catalog"
)

// FileName is the state file kept at the root of the output directory.
const FileName = ".download_state.json"

// State is the durable snapshot of the last configured run. Which items
// of that run are already done is not recorded here; it is re-derived
// from the extracted files on disk.
type State struct {
	OutputDir string   `json:"output_dir"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	Tables    []string `json:"tables"`
	RemoveGz  bool     `json:"remove_gz"`
}

// Path returns the state file location for an output directory.
func Path(outputDir string) string {
	return filepath.Join(outputDir, FileName)
}

// Load reads the persisted state from outputDir. An absent or malformed
// file yields an empty state and no error: there is simply nothing to
// resume.
func Load(outputDir string) State {
	data, err := os.ReadFile(Path(outputDir))
	if err != nil {
		return State{}
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}
	}
	return s
}

// Save overwrites the state file wholesale.
func (s State) Save() error {
	if err := os.MkdirAll(s.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create state directory %s: %w", s.OutputDir, err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := os.WriteFile(Path(s.OutputDir), data, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

// IsZero reports whether no run has ever been recorded.
func (s State) IsZero() bool {
	return s.StartDate == "" && s.EndDate == "" && len(s.Tables) == 0
}

// Range parses the recorded date bounds.
func (s State) Range() (start, end time.Time, err error) {
	start, err = catalog.ParseDate(s.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err = catalog.ParseDate(s.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}
