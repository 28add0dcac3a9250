package clock

import (
	"sync"
	"time"
)

// FrameClock is the wall-clock implementation of Clock. Frame callbacks
// fire once per refresh interval and timers through time.AfterFunc.
//
// When a locker is supplied, it is held for the duration of every
// callback, so callbacks serialize with whoever else takes that lock.
// Cancelling a handle while holding the locker guarantees the callback
// will not run afterwards, even if its timer already expired.
type FrameClock struct {
	interval time.Duration
	locker   sync.Locker

	mu      sync.Mutex
	next    Handle
	pending map[Handle]*time.Timer
	stopped bool
}

// NewFrameClock creates a clock refreshing frameRate times per second.
func NewFrameClock(frameRate int, locker sync.Locker) *FrameClock {
	return &FrameClock{
		interval: FrameInterval(frameRate),
		locker:   locker,
		pending:  make(map[Handle]*time.Timer),
	}
}

// Now returns the current time; it carries a monotonic reading.
func (c *FrameClock) Now() time.Time {
	return time.Now()
}

// Schedule runs fn after one frame interval.
func (c *FrameClock) Schedule(fn func()) Handle {
	return c.after(fn, c.interval)
}

// Cancel drops a pending frame callback.
func (c *FrameClock) Cancel(h Handle) {
	c.stop(h)
}

// SetTimer runs fn once after delay.
func (c *FrameClock) SetTimer(fn func(), delay time.Duration) Handle {
	return c.after(fn, delay)
}

// ClearTimer drops a pending timer.
func (c *FrameClock) ClearTimer(h Handle) {
	c.stop(h)
}

// Pending returns the number of callbacks that have not fired yet.
func (c *FrameClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Stop cancels every pending callback; later scheduling is ignored.
func (c *FrameClock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopped = true
	for h, t := range c.pending {
		t.Stop()
		delete(c.pending, h)
	}
}

func (c *FrameClock) after(fn func(), delay time.Duration) Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return 0
	}

	c.next++
	h := c.next
	c.pending[h] = time.AfterFunc(delay, func() { c.fire(h, fn) })
	return h
}

func (c *FrameClock) stop(h Handle) {
	if h == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.pending[h]; ok {
		t.Stop()
		delete(c.pending, h)
	}
}

// fire runs fn unless its handle was cancelled in the meantime.
// Lock order is locker, then mu.
func (c *FrameClock) fire(h Handle, fn func()) {
	if c.locker != nil {
		c.locker.Lock()
		defer c.locker.Unlock()
	}

	c.mu.Lock()
	_, ok := c.pending[h]
	delete(c.pending, h)
	c.mu.Unlock()

	if !ok {
		return
	}
	fn()
}
