// Package clock provides the time source the spin engine runs on: a
// monotonic reading, a once-per-frame callback and fire-once timers.
package clock

import "time"

// Handle identifies a scheduled frame callback or timer. The zero Handle
// never refers to anything, so cancelling it is always safe.
type Handle uint64

// Clock is the time collaborator of the spin engine.
type Clock interface {
	// Now returns a monotonic clock reading.
	Now() time.Time

	// Schedule runs fn once on the next display refresh.
	Schedule(fn func()) Handle

	// Cancel drops a pending frame callback.
	Cancel(h Handle)

	// SetTimer runs fn once after delay.
	SetTimer(fn func(), delay time.Duration) Handle

	// ClearTimer drops a pending timer.
	ClearTimer(h Handle)
}

// FrameInterval returns the refresh period for the given frame rate.
func FrameInterval(frameRate int) time.Duration {
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}
	return time.Second / time.Duration(frameRate)
}

// DefaultFrameRate is the display refresh target.
const DefaultFrameRate = 60
