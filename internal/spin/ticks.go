package spin

import "math"

// SegmentSize is the angular width of one slice.
func SegmentSize(participantCount int) float64 {
	if participantCount <= 0 {
		return 360
	}
	return 360 / float64(participantCount)
}

// TickTracker detects slice-boundary crossings of a forward-only rotation.
type TickTracker struct {
	segment float64
	last    int
}

// NewTickTracker starts tracking from startRotation, so the boundary the
// wheel is resting on does not count as a crossing.
func NewTickTracker(startRotation float64, participantCount int) TickTracker {
	segment := SegmentSize(participantCount)
	return TickTracker{
		segment: segment,
		last:    tickIndex(startRotation, segment),
	}
}

// Advance reports whether rotation lies past the last crossed boundary.
// Several boundaries skipped in one step still count as one crossing.
func (t *TickTracker) Advance(rotation float64) (int, bool) {
	idx := tickIndex(rotation, t.segment)
	if idx <= t.last {
		return t.last, false
	}
	t.last = idx
	return idx, true
}

// Last returns the last crossed boundary index.
func (t *TickTracker) Last() int {
	return t.last
}

func tickIndex(rotation, segment float64) int {
	return int(math.Floor(rotation / segment))
}
