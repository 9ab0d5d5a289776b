// Package transport fetches single remote files to disk with chunked
// streaming, so table dumps of hundreds of megabytes never sit fully in
// memory.
package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/chairdump/chairdump/internal/config"
)

// Outcome classifies one fetch attempt. A missing remote file is an
// expected condition on this mirror (not every table has data for every
// day) and must never be treated as a failure.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeNotFound
	OutcomeError
	OutcomeCancelled
)

// Result carries the outcome of one fetch attempt.
type Result struct {
	Outcome Outcome
	Bytes   int64
	Err     error
}

// Gate is polled between chunk reads. Wait blocks while the caller is
// paused and reports false once the run is cancelled.
type Gate interface {
	Wait() bool
}

// ProgressFunc receives per-chunk progress. pct is -1 when the server
// declared no Content-Length.
type ProgressFunc func(pct float64, bytes, total int64)

const chunkSize = 32 * 1024

// Client downloads files over HTTP. Timeouts bound each phase of a
// request (dial, headers, per-chunk stall), never the transfer as a
// whole: a large dump on a slow link is healthy as long as bytes keep
// arriving, and a pause may hold a transfer open indefinitely.
type Client struct {
	httpClient   *http.Client
	stallTimeout time.Duration
}

// NewClient returns a Client with the default phase timeouts.
func NewClient() *Client {
	timeout := config.DefaultHTTPTimeoutSeconds * time.Second
	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: timeout}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
			},
		},
		stallTimeout: timeout,
	}
}

// NewClientWithHTTP wraps an existing http.Client, mainly for tests.
func NewClientWithHTTP(hc *http.Client) *Client {
	return &Client{
		httpClient:   hc,
		stallTimeout: config.DefaultHTTPTimeoutSeconds * time.Second,
	}
}

// Fetch streams url to destPath in fixed-size chunks. The gate is
// checked before every chunk read so a pause or cancel takes effect
// mid-transfer, not only at file boundaries; the stall watchdog is held
// while the gate blocks, so paused time never counts against the
// timeout. A partially written file is left behind on cancel or error;
// the next attempt simply overwrites it.
func (c *Client) Fetch(ctx context.Context, url, destPath string, gate Gate, onProgress ProgressFunc) Result {
	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{Outcome: OutcomeError, Err: fmt.Errorf("create request for %s: %w", url, err)}
	}
	req.Header.Set("Accept", "application/gzip,application/octet-stream,*/*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if parent.Err() != nil {
			return Result{Outcome: OutcomeCancelled, Err: parent.Err()}
		}
		return Result{Outcome: OutcomeError, Err: fmt.Errorf("http get %s: %w", url, err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Result{Outcome: OutcomeNotFound}
	case resp.StatusCode != http.StatusOK:
		limited := io.LimitReader(resp.Body, 512)
		body, _ := io.ReadAll(limited)
		return Result{Outcome: OutcomeError, Err: fmt.Errorf("bad status %q fetching %s: %s", resp.Status, url, body)}
	}

	total := resp.ContentLength // -1 when the server declared no length

	out, err := os.Create(destPath)
	if err != nil {
		return Result{Outcome: OutcomeError, Err: fmt.Errorf("create %s: %w", destPath, err)}
	}
	defer out.Close()

	// The watchdog aborts the body read when no chunk arrives within
	// the stall timeout. It is reset on every chunk and stopped while
	// the gate blocks.
	var stalled atomic.Bool
	watchdog := time.AfterFunc(c.stallTimeout, func() {
		stalled.Store(true)
		cancel()
	})
	defer watchdog.Stop()

	var written int64
	buf := make([]byte, chunkSize)
	for {
		if gate != nil {
			watchdog.Stop()
			if !gate.Wait() {
				return Result{Outcome: OutcomeCancelled, Bytes: written}
			}
			watchdog.Reset(c.stallTimeout)
		}
		if err := parent.Err(); err != nil {
			return Result{Outcome: OutcomeCancelled, Bytes: written, Err: err}
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			watchdog.Reset(c.stallTimeout)
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				return Result{Outcome: OutcomeError, Bytes: written, Err: fmt.Errorf("write %s: %w", destPath, writeErr)}
			}
			written += int64(n)
			if onProgress != nil {
				pct := -1.0
				if total > 0 {
					pct = float64(written) / float64(total) * 100
				}
				onProgress(pct, written, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			switch {
			case stalled.Load():
				return Result{Outcome: OutcomeError, Bytes: written, Err: fmt.Errorf("no data from %s for %s: %w", url, c.stallTimeout, readErr)}
			case parent.Err() != nil:
				return Result{Outcome: OutcomeCancelled, Bytes: written, Err: parent.Err()}
			}
			return Result{Outcome: OutcomeError, Bytes: written, Err: fmt.Errorf("read body of %s: %w", url, readErr)}
		}
	}

	if err := out.Close(); err != nil {
		return Result{Outcome: OutcomeError, Bytes: written, Err: fmt.Errorf("close %s: %w", destPath, err)}
	}
	return Result{Outcome: OutcomeSuccess, Bytes: written}
}
