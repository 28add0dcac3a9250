package domain

import "time"

// DefaultHistoryLimit is how many recent winners a wheel remembers
const DefaultHistoryLimit = 5

// HistoryEntry records one resolved spin. It keeps a copy of the winner so
// the entry outlives the participant's removal from the wheel.
type HistoryEntry struct {
	Participant Participant `json:"participant"`
	Spin        int         `json:"spin"`     // 1-based spin number on this wheel
	Rotation    float64     `json:"rotation"` // final accumulated rotation
	WonAt       time.Time   `json:"wonAt"`
}

// History is most-recent-first
type History []HistoryEntry

// Push prepends an entry and truncates to limit
func (h History) Push(entry HistoryEntry, limit int) History {
	if limit < 1 {
		limit = DefaultHistoryLimit
	}

	out := make(History, 0, min(len(h)+1, limit))
	out = append(out, entry)
	out = append(out, h...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Latest returns the most recent entry
func (h History) Latest() (HistoryEntry, bool) {
	if len(h) == 0 {
		return HistoryEntry{}, false
	}
	return h[0], true
}

// Participants returns the winners, most recent first
func (h History) Participants() []Participant {
	out := make([]Participant, 0, len(h))
	for _, e := range h {
		out = append(out, e.Participant)
	}
	return out
}
