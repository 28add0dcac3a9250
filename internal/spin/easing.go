package spin

import "time"

// EaseOutQuart is 1 - (1-p)^4. It tracks the cubic-bezier(0.1, 0, 0.18, 1)
// transform the presentation layer animates, closely enough for ticks to
// line up with what is on screen.
func EaseOutQuart(p float64) float64 {
	if p <= 0 {
		return 0
	}
	if p >= 1 {
		return 1
	}
	q := 1 - p
	return 1 - q*q*q*q
}

// Progress returns elapsed/duration clamped to [0, 1].
func Progress(elapsed, duration time.Duration) float64 {
	if duration <= 0 {
		return 1
	}
	if elapsed <= 0 {
		return 0
	}
	p := float64(elapsed) / float64(duration)
	if p > 1 {
		return 1
	}
	return p
}

// RotationAt interpolates between start and target by an eased progress.
func RotationAt(start, target, eased float64) float64 {
	return start + (target-start)*eased
}
