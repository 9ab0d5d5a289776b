package engine

import "sync"

// control holds the two run flags. paused may toggle freely until
// cancelled is set, after which it is forced false and stays false;
// cancelled is never reset for the lifetime of a run.
type control struct {
	mu        sync.Mutex
	cond      *sync.Cond
	paused    bool
	cancelled bool
}

func newControl() *control {
	c := &control{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *control) pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.cancelled {
		c.paused = true
	}
}

func (c *control) resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
	c.cond.Broadcast()
}

func (c *control) cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = true
	c.paused = false
	c.cond.Broadcast()
}

// Wait blocks while paused and reports false once cancelled. It
// satisfies transport.Gate so a pause takes effect between chunk reads,
// not only at item boundaries.
func (c *control) Wait() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.paused && !c.cancelled {
		c.cond.Wait()
	}
	return !c.cancelled
}

func (c *control) isCancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

func (c *control) isPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}
