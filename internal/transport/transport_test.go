package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// countingGate cancels after a fixed number of chunk checks.
type countingGate struct {
	calls    int
	cancelAt int
}

func (g *countingGate) Wait() bool {
	g.calls++
	return g.calls < g.cancelAt
}

// sleepingGate blocks once, on the pauseAt-th check, then always passes.
type sleepingGate struct {
	calls   int
	pauseAt int
	pause   time.Duration
}

func (g *sleepingGate) Wait() bool {
	g.calls++
	if g.calls == g.pauseAt {
		time.Sleep(g.pause)
	}
	return true
}

// dripHandler streams count chunks of chunk bytes, one every interval.
func dripHandler(chunk, count int, interval time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.WriteHeader(http.StatusOK)
		body := strings.Repeat("x", chunk)
		for i := 0; i < count; i++ {
			if _, err := w.Write([]byte(body)); err != nil {
				return
			}
			flusher.Flush()
			time.Sleep(interval)
		}
	}
}

func newServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NewClientWithHTTP(srv.Client())
}

func TestFetchSuccess(t *testing.T) {
	payload := strings.Repeat("0123456789abcdef", 4096) // 64KiB, several chunks
	srv, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	})

	dest := filepath.Join(t.TempDir(), "out.gz")
	var lastPct float64
	var lastBytes int64
	res := client.Fetch(context.Background(), srv.URL, dest, nil, func(pct float64, bytes, total int64) {
		lastPct = pct
		lastBytes = bytes
	})

	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %v, err = %v", res.Outcome, res.Err)
	}
	if res.Bytes != int64(len(payload)) {
		t.Errorf("bytes = %d, want %d", res.Bytes, len(payload))
	}
	if lastBytes != int64(len(payload)) {
		t.Errorf("final progress bytes = %d, want %d", lastBytes, len(payload))
	}
	if lastPct != 100 {
		t.Errorf("final pct = %f, want 100", lastPct)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != payload {
		t.Error("written file does not match payload")
	}
}

func TestFetchNotFound(t *testing.T) {
	srv, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	dest := filepath.Join(t.TempDir(), "out.gz")
	res := client.Fetch(context.Background(), srv.URL, dest, nil, nil)

	if res.Outcome != OutcomeNotFound {
		t.Errorf("outcome = %v, want OutcomeNotFound", res.Outcome)
	}
	if res.Err != nil {
		t.Errorf("NotFound carried an error: %v", res.Err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("destination file created for a 404")
	}
}

func TestFetchServerError(t *testing.T) {
	srv, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	})

	res := client.Fetch(context.Background(), srv.URL, filepath.Join(t.TempDir(), "out.gz"), nil, nil)
	if res.Outcome != OutcomeError {
		t.Errorf("outcome = %v, want OutcomeError", res.Outcome)
	}
	if res.Err == nil {
		t.Error("error outcome without error")
	}
}

func TestFetchNoContentLength(t *testing.T) {
	srv, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("chunked body"))
		flusher.Flush()
	})

	sawUnknownPct := false
	res := client.Fetch(context.Background(), srv.URL, filepath.Join(t.TempDir(), "out.gz"), nil,
		func(pct float64, bytes, total int64) {
			if pct == -1 {
				sawUnknownPct = true
			}
		})

	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %v, err = %v", res.Outcome, res.Err)
	}
	if !sawUnknownPct {
		t.Error("expected pct == -1 progress when no Content-Length is declared")
	}
}

func TestFetchSlowTransferOutlivesStallTimeout(t *testing.T) {
	// Total transfer time far exceeds the stall budget, but every chunk
	// arrives well within it. The transfer must not be killed.
	srv, client := newServer(t, dripHandler(1024, 10, 50*time.Millisecond))
	client.stallTimeout = 200 * time.Millisecond

	dest := filepath.Join(t.TempDir(), "out.gz")
	res := client.Fetch(context.Background(), srv.URL, dest, nil, nil)

	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %v, err = %v", res.Outcome, res.Err)
	}
	if res.Bytes != 10*1024 {
		t.Errorf("bytes = %d, want %d", res.Bytes, 10*1024)
	}
}

func TestFetchStalledBodyTimesOut(t *testing.T) {
	srv, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(strings.Repeat("x", 1024)))
		flusher.Flush()
		<-r.Context().Done() // stall until the client gives up
	})
	client.stallTimeout = 100 * time.Millisecond

	res := client.Fetch(context.Background(), srv.URL, filepath.Join(t.TempDir(), "out.gz"), nil, nil)
	if res.Outcome != OutcomeError {
		t.Fatalf("outcome = %v, want OutcomeError", res.Outcome)
	}
	if res.Err == nil || !strings.Contains(res.Err.Error(), "no data") {
		t.Errorf("stall error not reported: %v", res.Err)
	}
}

func TestFetchSurvivesPauseLongerThanStallTimeout(t *testing.T) {
	// A gate holding the transfer paused for longer than the stall
	// budget must suspend it, not fail it; already-written bytes are
	// kept and the transfer completes after resume.
	srv, client := newServer(t, dripHandler(1024, 6, 10*time.Millisecond))
	client.stallTimeout = 100 * time.Millisecond

	dest := filepath.Join(t.TempDir(), "out.gz")
	gate := &sleepingGate{pauseAt: 2, pause: 400 * time.Millisecond}
	res := client.Fetch(context.Background(), srv.URL, dest, gate, nil)

	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %v, err = %v", res.Outcome, res.Err)
	}
	if res.Bytes != 6*1024 {
		t.Errorf("bytes = %d, want %d", res.Bytes, 6*1024)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 6*1024 {
		t.Errorf("file has %d bytes, want %d", len(data), 6*1024)
	}
}

func TestFetchCancelledByGate(t *testing.T) {
	payload := strings.Repeat("x", 256*1024)
	srv, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	})

	dest := filepath.Join(t.TempDir(), "out.gz")
	gate := &countingGate{cancelAt: 3}
	res := client.Fetch(context.Background(), srv.URL, dest, gate, nil)

	if res.Outcome != OutcomeCancelled {
		t.Errorf("outcome = %v, want OutcomeCancelled", res.Outcome)
	}
	if res.Bytes >= int64(len(payload)) {
		t.Errorf("cancelled fetch reported full payload (%d bytes)", res.Bytes)
	}
}

func TestFetchContextCancelled(t *testing.T) {
	srv, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data"))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := client.Fetch(ctx, srv.URL, filepath.Join(t.TempDir(), "out.gz"), nil, nil)
	if res.Outcome == OutcomeSuccess {
		t.Error("fetch succeeded under a cancelled context")
	}
}
