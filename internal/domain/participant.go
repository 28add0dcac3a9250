package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Participant is one slice of the wheel
type Participant struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Color   string    `json:"color"`
	AddedAt time.Time `json:"addedAt"`
}

// NewParticipant creates a participant with a fresh ID
func NewParticipant(name, color string) *Participant {
	return &Participant{
		ID:      uuid.NewString(),
		Name:    name,
		Color:   color,
		AddedAt: time.Now(),
	}
}

// SameName reports whether two names collide (case-insensitive, trimmed)
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// ColorFor returns the palette colour for the slice at position i
func ColorFor(i int) string {
	if i < 0 {
		i = -i
	}
	return WheelColors[i%len(WheelColors)]
}

// Copy returns a value copy of each participant
func Copy(list []*Participant) []Participant {
	out := make([]Participant, 0, len(list))
	for _, p := range list {
		out = append(out, *p)
	}
	return out
}
