package engine

import (
	"fmt"
	"time"
)

// Event is anything the engine publishes on its event channel. The
// presentation layer subscribes and maps these to its own update
// mechanism.
type Event interface{}

// LogLevel indicates the severity of a LogEvent.
type LogLevel int

const (
	LevelInfo LogLevel = iota
	LevelWarning
	LevelError
)

// ProgressEvent is emitted after every item, whether it succeeded,
// skipped, or failed.
type ProgressEvent struct {
	ItemsDone  int
	ItemsTotal int
	ETA        time.Duration // zero until at least one item is processed
	Item       string        // the item just finished
}

func (p ProgressEvent) String() string {
	return fmt.Sprintf("progress %d/%d", p.ItemsDone, p.ItemsTotal)
}

// FileProgressEvent reports chunk-level progress of the in-flight
// download. Pct is -1 when the server declared no total length.
type FileProgressEvent struct {
	Item       string
	Pct        float64
	Bytes      int64
	TotalBytes int64
}

// LogEvent carries a human-readable line about the current item.
type LogEvent struct {
	Message string
	Level   LogLevel
}

// DoneEvent is the last event of a run, emitted on completion or
// cancellation. The channel is closed right after it.
type DoneEvent struct {
	Stats     Stats
	Cancelled bool
}

// Stats are the counters accumulated during one run. They are owned by
// the run loop; events carry copies.
type Stats struct {
	Total           int
	Successful      int
	Skipped         int
	Failed          int
	DownloadedBytes int64
}

func (s Stats) String() string {
	return fmt.Sprintf("total=%d successful=%d skipped=%d failed=%d downloaded=%.1fMB",
		s.Total, s.Successful, s.Skipped, s.Failed, float64(s.DownloadedBytes)/1024/1024)
}
