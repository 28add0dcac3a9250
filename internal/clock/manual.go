package clock

import (
	"sort"
	"sync"
	"time"
)

// Manual is a Clock driven explicitly by tests. Nothing fires until
// Advance is called.
type Manual struct {
	locker sync.Locker

	mu     sync.Mutex
	now    time.Time
	next   Handle
	frames []Handle
	funcs  map[Handle]func()
	timers map[Handle]time.Time
}

// NewManual creates a manual clock reading start. A non-nil locker is held
// while callbacks run, the same way FrameClock does.
func NewManual(start time.Time, locker sync.Locker) *Manual {
	return &Manual{
		locker: locker,
		now:    start,
		funcs:  make(map[Handle]func()),
		timers: make(map[Handle]time.Time),
	}
}

// Now returns the current manual reading.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Schedule queues fn for the next Advance.
func (m *Manual) Schedule(fn func()) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.next++
	h := m.next
	m.frames = append(m.frames, h)
	m.funcs[h] = fn
	return h
}

// Cancel drops a queued frame callback.
func (m *Manual) Cancel(h Handle) {
	m.drop(h)
}

// SetTimer arms fn to run once the clock has advanced by delay.
func (m *Manual) SetTimer(fn func(), delay time.Duration) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.next++
	h := m.next
	m.funcs[h] = fn
	m.timers[h] = m.now.Add(delay)
	return h
}

// ClearTimer drops an armed timer.
func (m *Manual) ClearTimer(h Handle) {
	m.drop(h)
}

// Pending returns the number of frame callbacks and timers not yet run.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.funcs)
}

// PendingFrames returns the number of queued frame callbacks.
func (m *Manual) PendingFrames() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, h := range m.frames {
		if _, ok := m.funcs[h]; ok {
			n++
		}
	}
	return n
}

// Advance moves the clock forward by d and plays one display refresh:
// due timers run first in deadline order, then every frame callback that
// was queued before the call. Callbacks queued while advancing wait for
// the next call.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now

	due := make([]Handle, 0, len(m.timers))
	for h, at := range m.timers {
		if !at.After(now) {
			due = append(due, h)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		ai, aj := m.timers[due[i]], m.timers[due[j]]
		if ai.Equal(aj) {
			return due[i] < due[j]
		}
		return ai.Before(aj)
	})

	frames := m.frames
	m.frames = nil
	m.mu.Unlock()

	for _, h := range due {
		m.run(h)
	}
	for _, h := range frames {
		m.run(h)
	}
}

// RunFrames calls Advance n times with a step of d.
func (m *Manual) RunFrames(n int, d time.Duration) {
	for i := 0; i < n; i++ {
		m.Advance(d)
	}
}

// RunUntilIdle advances by d until no frame callback is queued, or limit
// refreshes have been played. It returns the number of refreshes played.
func (m *Manual) RunUntilIdle(d time.Duration, limit int) int {
	played := 0
	for played < limit && m.PendingFrames() > 0 {
		m.Advance(d)
		played++
	}
	return played
}

func (m *Manual) run(h Handle) {
	if m.locker != nil {
		m.locker.Lock()
		defer m.locker.Unlock()
	}

	m.mu.Lock()
	fn, ok := m.funcs[h]
	delete(m.funcs, h)
	delete(m.timers, h)
	m.mu.Unlock()

	if ok {
		fn()
	}
}

func (m *Manual) drop(h Handle) {
	if h == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.funcs, h)
	delete(m.timers, h)
}
