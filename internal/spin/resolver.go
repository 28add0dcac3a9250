package spin

import "math"

// NormalizeRotation folds any rotation into [0, 360).
func NormalizeRotation(rotation float64) float64 {
	if math.IsNaN(rotation) || math.IsInf(rotation, 0) {
		return 0
	}
	r := math.Mod(rotation, 360)
	if r < 0 {
		r += 360
	}
	if r >= 360 {
		r = 0
	}
	return r
}

// SliceAngle is the angle of one participant's slice.
func SliceAngle(participantCount int) float64 {
	return 360 / float64(participantCount)
}

// WinnerIndex returns the slice resting under the top pointer after the
// wheel turned clockwise by finalRotation. Slices are laid out from angle 0
// in list order, so the lookup walks backwards through the same angle.
// It returns -1 when there is nothing to pick from.
func WinnerIndex(finalRotation float64, participantCount int) int {
	if participantCount <= 0 {
		return -1
	}

	n := float64(participantCount)
	actual := NormalizeRotation(finalRotation)
	slice := SliceAngle(participantCount)

	idx := int(math.Floor(n-math.Mod(actual/slice, n))) % participantCount
	if idx < 0 {
		idx += participantCount
	}
	return idx
}

// Pick resolves finalRotation against items, which must be the list as it
// stood when the spin started.
func Pick[T any](finalRotation float64, items []T) (T, int, bool) {
	var zero T
	idx := WinnerIndex(finalRotation, len(items))
	if idx < 0 {
		return zero, -1, false
	}
	return items[idx], idx, true
}
