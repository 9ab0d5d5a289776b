// Package engine drives the fetch-and-extract loop over the cross
// product of dates and tables in a fixed deterministic order, with
// pause, resume, and cancel controls.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/chairdump/chairdump/internal/catalog"
	"github.com/chairdump/chairdump/internal/config"
	"github.com/chairdump/chairdump/internal/extract"
	"github.com/chairdump/chairdump/internal/transport"
)

// RunState is the lifecycle of one engine instance.
type RunState int32

const (
	StateIdle RunState = iota
	StateRunning
	StatePaused
	StateCancelling
	StateCompleted
	StateCancelled
)

func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateCancelling:
		return "cancelling"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// ErrAlreadyRan is returned by Run on any call after the first. An
// engine instance drives exactly one run.
var ErrAlreadyRan = errors.New("engine has already run")

// Item lifecycle events passed to the Recorder.
const (
	EventDownloadStart = "download_start"
	EventDownloadEnd   = "download_end"
	EventExtractEnd    = "extract_end"
	EventSkip          = "skip"
	EventError         = "error"
)

// Recorder receives per-item lifecycle events, typically backed by the
// event-log database. A nil Recorder is valid and records nothing.
type Recorder interface {
	Record(ctx context.Context, item catalog.WorkItem, event, message string, bytes int64, duration time.Duration)
}

// RunConfig describes one run. Immutable once the run starts.
type RunConfig struct {
	OutputDir string
	Start     time.Time
	End       time.Time
	Tables    []string // unique, order defines processing priority
	RemoveGz  bool     // delete the compressed artifact after successful extraction
	BaseURL   string
}

// Engine executes one configured run.
type Engine struct {
	cfg      RunConfig
	client   *transport.Client
	recorder Recorder
	logger   *slog.Logger

	ctrl   *control
	state  atomic.Int32
	events chan Event
}

// New creates an engine for one run. client, recorder and logger may be
// nil; defaults are substituted.
func New(cfg RunConfig, client *transport.Client, recorder Recorder, logger *slog.Logger) *Engine {
	if client == nil {
		client = transport.NewClient()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = config.DefaultBaseURL
	}
	return &Engine{
		cfg:      cfg,
		client:   client,
		recorder: recorder,
		logger:   logger,
		ctrl:     newControl(),
		events:   make(chan Event, 256),
	}
}

// Events returns the channel the run publishes on. It is closed after
// the final DoneEvent.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Pause suspends the loop at the next chunk or item boundary. No-op
// once cancelled. The CAS keeps a late Pause from clobbering a
// terminal state the run just reached.
func (e *Engine) Pause() {
	e.ctrl.pause()
	e.state.CompareAndSwap(int32(StateRunning), int32(StatePaused))
}

// Resume lifts a pause.
func (e *Engine) Resume() {
	e.ctrl.resume()
	e.state.CompareAndSwap(int32(StatePaused), int32(StateRunning))
}

// Cancel stops the run after the in-flight item is abandoned. One-way.
func (e *Engine) Cancel() {
	e.ctrl.cancel()
	if !e.state.CompareAndSwap(int32(StateRunning), int32(StateCancelling)) {
		e.state.CompareAndSwap(int32(StatePaused), int32(StateCancelling))
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() RunState {
	return RunState(e.state.Load())
}

// Run executes the configured run to completion or cancellation and
// returns the accumulated statistics. Per-item failures are counted and
// the loop continues; only setup errors (directory creation) abort the
// run before any item is processed. Run blocks; callers wanting a
// responsive control surface start it on its own goroutine.
func (e *Engine) Run(ctx context.Context) (Stats, error) {
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return Stats{}, ErrAlreadyRan
	}

	if e.cfg.End.Before(e.cfg.Start) {
		e.finish(Stats{}, false)
		return Stats{}, fmt.Errorf("%w: %s..%s", catalog.ErrInvalidRange,
			catalog.FormatDate(e.cfg.Start), catalog.FormatDate(e.cfg.End))
	}

	// Setup phase: required directories. Failures here are fatal.
	for _, table := range e.cfg.Tables {
		for _, dir := range []string{
			catalog.RawPath(e.cfg.OutputDir, table, e.cfg.Start),
			catalog.ExtractedPath(e.cfg.OutputDir, table, e.cfg.Start),
		} {
			if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
				e.finish(Stats{}, false)
				return Stats{}, fmt.Errorf("create directory for table %s: %w", table, err)
			}
		}
	}

	items := catalog.BuildWorkItems(e.cfg.Start, e.cfg.End, e.cfg.Tables)
	stats := Stats{Total: len(items)}
	startTime := time.Now()
	processed := 0

	e.logger.Info("run started",
		slog.String("start", catalog.FormatDate(e.cfg.Start)),
		slog.String("end", catalog.FormatDate(e.cfg.End)),
		slog.Any("tables", e.cfg.Tables),
		slog.Int("items", stats.Total))

	for _, item := range items {
		// Blocks while paused; false means cancelled. The in-flight
		// item is never counted as success or failure on cancel.
		if !e.ctrl.Wait() || ctx.Err() != nil {
			e.log(LevelWarning, "run cancelled")
			e.logger.Warn("run cancelled", slog.String("item", item.String()))
			e.finish(stats, true)
			return stats, nil
		}

		processed++
		e.log(LevelInfo, fmt.Sprintf("[%d/%d] %s (ETA %s)", processed, stats.Total, item, etaString(e.eta(startTime, processed-1, stats.Total))))

		e.processItem(ctx, item, &stats)
		if e.ctrl.isCancelled() {
			e.finish(stats, true)
			return stats, nil
		}

		e.emit(ProgressEvent{
			ItemsDone:  processed,
			ItemsTotal: stats.Total,
			ETA:        e.eta(startTime, processed, stats.Total),
			Item:       item.String(),
		})
	}

	e.logger.Info("run complete", slog.String("stats", stats.String()))
	e.finish(stats, false)
	return stats, nil
}

// processItem runs one (table, day) unit: skip, download, extract,
// cleanup. Errors are folded into stats, never returned.
func (e *Engine) processItem(ctx context.Context, item catalog.WorkItem, stats *Stats) {
	l := e.logger.With(slog.String("table", item.Table), slog.String("date", catalog.FormatDate(item.Date)))

	extractedPath := item.ExtractedPath(e.cfg.OutputDir)
	if _, err := os.Stat(extractedPath); err == nil {
		// Presence of the extracted file is the sole resume mechanism.
		l.Debug("already extracted, skipping")
		e.log(LevelInfo, "  already exists, skipping")
		stats.Skipped++
		e.record(ctx, item, EventSkip, "already extracted", 0, 0)
		return
	}

	url := item.URL(e.cfg.BaseURL)
	rawPath := item.RawPath(e.cfg.OutputDir)
	itemStart := time.Now()

	e.record(ctx, item, EventDownloadStart, "", 0, 0)
	res := e.client.Fetch(ctx, url, rawPath, e.ctrl, func(pct float64, bytes, total int64) {
		e.emit(FileProgressEvent{Item: item.String(), Pct: pct, Bytes: bytes, TotalBytes: total})
	})

	switch res.Outcome {
	case transport.OutcomeCancelled:
		return
	case transport.OutcomeNotFound:
		l.Info("not published for this day, skipping")
		e.log(LevelInfo, "  not found (404), skipping")
		stats.Skipped++
		e.record(ctx, item, EventSkip, "not published", 0, time.Since(itemStart))
		return
	case transport.OutcomeError:
		l.Error("download failed", "error", res.Err)
		e.log(LevelError, fmt.Sprintf("  download failed: %v", res.Err))
		stats.Failed++
		e.record(ctx, item, EventError, res.Err.Error(), res.Bytes, time.Since(itemStart))
		return
	}

	e.record(ctx, item, EventDownloadEnd, "", res.Bytes, time.Since(itemStart))

	if err := extract.GzToFile(rawPath, extractedPath); err != nil {
		// Keep the raw artifact for inspection and manual retry.
		l.Error("extraction failed", "error", err)
		e.log(LevelError, fmt.Sprintf("  extraction failed: %v", err))
		stats.Failed++
		e.record(ctx, item, EventError, err.Error(), res.Bytes, time.Since(itemStart))
		return
	}

	if e.cfg.RemoveGz {
		if err := os.Remove(rawPath); err != nil {
			l.Warn("failed to remove compressed artifact", "error", err)
		}
	}

	stats.Successful++
	stats.DownloadedBytes += res.Bytes
	e.record(ctx, item, EventExtractEnd, "", res.Bytes, time.Since(itemStart))
	l.Info("item complete", slog.Int64("bytes", res.Bytes), slog.Duration("duration", time.Since(itemStart).Round(time.Millisecond)))
	e.log(LevelInfo, fmt.Sprintf("  complete (%.1f MB)", float64(res.Bytes)/1024/1024))
}

// eta extrapolates remaining wall-clock time from the average so far.
func (e *Engine) eta(start time.Time, done, total int) time.Duration {
	if done == 0 {
		return 0
	}
	avg := time.Since(start) / time.Duration(done)
	return avg * time.Duration(total-done)
}

func etaString(d time.Duration) string {
	if d == 0 {
		return "calculating"
	}
	return d.Round(time.Second).String()
}

func (e *Engine) finish(stats Stats, cancelled bool) {
	if cancelled {
		e.state.Store(int32(StateCancelled))
	} else {
		e.state.Store(int32(StateCompleted))
	}
	e.emitTerminal(DoneEvent{Stats: stats, Cancelled: cancelled})
	close(e.events)
}

// emitTerminal guarantees delivery of the final event: when the buffer
// is full it evicts stale progress events until the send lands. Only
// this goroutine sends at this point, so the loop terminates.
func (e *Engine) emitTerminal(ev Event) {
	for {
		select {
		case e.events <- ev:
			return
		default:
		}
		select {
		case <-e.events:
		default:
		}
	}
}

// emit never blocks the loop: if the subscriber has fallen behind the
// buffered channel, intermediate progress is dropped.
func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
	}
}

func (e *Engine) log(level LogLevel, msg string) {
	e.emit(LogEvent{Message: msg, Level: level})
}

func (e *Engine) record(ctx context.Context, item catalog.WorkItem, event, message string, bytes int64, duration time.Duration) {
	if e.recorder != nil {
		e.recorder.Record(ctx, item, event, message, bytes, duration)
	}
}

