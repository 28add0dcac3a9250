package domain

import (
	"strings"
	"time"
)

// Limits bounds what a single wheel holds
type Limits struct {
	MaxParticipants int `json:"maxParticipants"`
	MaxNameLength   int `json:"maxNameLength"`
	HistoryLimit    int `json:"historyLimit"`
}

// DefaultLimits returns the default wheel limits
func DefaultLimits() Limits {
	return Limits{
		MaxParticipants: 64,
		MaxNameLength:   40,
		HistoryLimit:    DefaultHistoryLimit,
	}
}

func (l Limits) normalize() Limits {
	d := DefaultLimits()
	if l.MaxParticipants < 2 {
		l.MaxParticipants = d.MaxParticipants
	}
	if l.MaxNameLength < 1 {
		l.MaxNameLength = d.MaxNameLength
	}
	if l.HistoryLimit < 1 {
		l.HistoryLimit = d.HistoryLimit
	}
	return l
}

// Wheel is the state container for one spin wheel. It is not safe for
// concurrent use; the owning session serializes access.
type Wheel struct {
	ID           string         `json:"id"`
	Participants []*Participant `json:"participants"`
	History      History        `json:"history"`
	Settings     Settings       `json:"settings"`
	Phase        SpinPhase      `json:"phase"`
	Rotation     float64        `json:"rotation"` // accumulated, never wrapped
	Winner       *Participant   `json:"winner,omitempty"`
	SpinCount    int            `json:"spinCount"`
	Limits       Limits         `json:"limits"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`

	// Roster captured when the current spin started
	spinRoster []*Participant
}

// NewWheel creates an idle wheel, seeded with the demo roster when demo
// mode is on
func NewWheel(id string, limits Limits, settings Settings) *Wheel {
	now := time.Now()
	w := &Wheel{
		ID:           id,
		Participants: make([]*Participant, 0),
		History:      make(History, 0),
		Settings:     settings,
		Phase:        PhaseIdle,
		Limits:       limits.normalize(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if settings.DemoMode {
		w.seedDemo()
	}
	return w
}

func (w *Wheel) seedDemo() {
	for _, name := range DemoRoster {
		if len(w.Participants) >= w.Limits.MaxParticipants {
			return
		}
		w.Participants = append(w.Participants, NewParticipant(name, ColorFor(len(w.Participants))))
	}
}

func (w *Wheel) touch() {
	w.UpdatedAt = time.Now()
}

func (w *Wheel) checkEditable() error {
	if w.Phase == PhaseSpinning {
		return ErrSpinInProgress
	}
	return nil
}

func (w *Wheel) hasName(name string) bool {
	for _, p := range w.Participants {
		if SameName(p.Name, name) {
			return true
		}
	}
	return false
}

// AddParticipant adds a named participant to the end of the roster
func (w *Wheel) AddParticipant(name string) (*Participant, error) {
	if err := w.checkEditable(); err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if len([]rune(name)) > w.Limits.MaxNameLength {
		return nil, ErrNameTooLong
	}
	if w.hasName(name) {
		return nil, ErrDuplicateName
	}
	if len(w.Participants) >= w.Limits.MaxParticipants {
		return nil, ErrWheelFull
	}

	p := NewParticipant(name, ColorFor(len(w.Participants)))
	w.Participants = append(w.Participants, p)
	w.touch()
	return p, nil
}

// RemoveParticipant removes a participant by ID
func (w *Wheel) RemoveParticipant(id string) (*Participant, error) {
	if err := w.checkEditable(); err != nil {
		return nil, err
	}

	i := w.indexOf(id)
	if i < 0 {
		return nil, ErrParticipantNotFound
	}

	p := w.Participants[i]
	w.Participants = append(w.Participants[:i], w.Participants[i+1:]...)
	w.touch()
	return p, nil
}

// ReorderParticipant moves the participant at from to position to
func (w *Wheel) ReorderParticipant(from, to int) error {
	if err := w.checkEditable(); err != nil {
		return err
	}

	n := len(w.Participants)
	if from < 0 || from >= n || to < 0 || to >= n {
		return ErrInvalidIndex
	}
	if from == to {
		return nil
	}

	p := w.Participants[from]
	rest := append(w.Participants[:from:from], w.Participants[from+1:]...)
	out := make([]*Participant, 0, n)
	out = append(out, rest[:to]...)
	out = append(out, p)
	out = append(out, rest[to:]...)
	w.Participants = out
	w.touch()
	return nil
}

// AddPreset appends demo roster names that are not already on the wheel.
// It returns how many were added.
func (w *Wheel) AddPreset() (int, error) {
	if err := w.checkEditable(); err != nil {
		return 0, err
	}

	added := 0
	for _, name := range DemoRoster {
		if len(w.Participants) >= w.Limits.MaxParticipants {
			break
		}
		if w.hasName(name) {
			continue
		}
		w.Participants = append(w.Participants, NewParticipant(name, ColorFor(len(w.Participants))))
		added++
	}
	if added > 0 {
		w.touch()
	}
	return added, nil
}

// Reset restores the starting roster and forgets history and any shown winner
func (w *Wheel) Reset() error {
	if err := w.checkEditable(); err != nil {
		return err
	}

	w.Participants = make([]*Participant, 0)
	if w.Settings.DemoMode {
		w.seedDemo()
	}
	w.History = make(History, 0)
	w.Winner = nil
	w.Phase = PhaseIdle
	w.touch()
	return nil
}

// UpdateSettings applies a settings patch and returns the new settings
func (w *Wheel) UpdateSettings(patch SettingsPatch) Settings {
	w.Settings = w.Settings.Apply(patch)
	w.touch()
	return w.Settings
}

// CanSpin reports whether a spin may start now
func (w *Wheel) CanSpin() bool {
	return w.Phase == PhaseIdle && len(w.Participants) >= 2
}

// BeginSpin freezes the roster for a new spin
func (w *Wheel) BeginSpin() error {
	if !w.CanSpin() {
		return ErrSpinUnavailable
	}

	w.spinRoster = make([]*Participant, len(w.Participants))
	copy(w.spinRoster, w.Participants)
	w.Phase = PhaseSpinning
	w.touch()
	return nil
}

// SpinRoster returns the roster captured for the current spin
func (w *Wheel) SpinRoster() []*Participant {
	return w.spinRoster
}

// Resolve records the winner at index of the captured roster
func (w *Wheel) Resolve(finalRotation float64, index int) (*HistoryEntry, error) {
	if !w.Phase.CanTransitionTo(PhaseResolved) {
		return nil, ErrInvalidPhase
	}
	if index < 0 || index >= len(w.spinRoster) {
		return nil, ErrInvalidIndex
	}

	winner := w.spinRoster[index]
	w.SpinCount++
	entry := HistoryEntry{
		Participant: *winner,
		Spin:        w.SpinCount,
		Rotation:    finalRotation,
		WonAt:       time.Now(),
	}
	w.History = w.History.Push(entry, w.Limits.HistoryLimit)
	w.Rotation = finalRotation
	w.Winner = winner
	w.Phase = PhaseResolved
	w.spinRoster = nil
	w.touch()
	return &entry, nil
}

// Acknowledge dismisses the shown winner. With elimination mode on the
// winner leaves the roster in the same step. It returns the winner and
// whether it was eliminated.
func (w *Wheel) Acknowledge() (*Participant, bool, error) {
	if w.Phase != PhaseResolved {
		return nil, false, ErrInvalidPhase
	}

	winner := w.Winner
	eliminated := false
	if w.Settings.EliminationMode && winner != nil {
		if i := w.indexOf(winner.ID); i >= 0 {
			w.Participants = append(w.Participants[:i], w.Participants[i+1:]...)
			eliminated = true
		}
	}

	w.Winner = nil
	w.Phase = PhaseIdle
	w.touch()
	return winner, eliminated, nil
}

// AbortSpin returns a spinning wheel to idle without a winner
func (w *Wheel) AbortSpin() bool {
	if w.Phase != PhaseSpinning {
		return false
	}
	w.spinRoster = nil
	w.Phase = PhaseIdle
	w.touch()
	return true
}

// Restore seeds the wheel from persisted records
func (w *Wheel) Restore(participants []Participant, history History, settings Settings, rotation float64) {
	w.Participants = make([]*Participant, 0, len(participants))
	for i := range participants {
		p := participants[i]
		if strings.TrimSpace(p.Name) == "" || w.hasName(p.Name) {
			continue
		}
		if len(w.Participants) >= w.Limits.MaxParticipants {
			break
		}
		if p.ID == "" {
			p = *NewParticipant(p.Name, p.Color)
		}
		if p.Color == "" {
			p.Color = ColorFor(len(w.Participants))
		}
		w.Participants = append(w.Participants, &p)
	}

	if len(history) > w.Limits.HistoryLimit {
		history = history[:w.Limits.HistoryLimit]
	}
	w.History = append(make(History, 0, len(history)), history...)
	if latest, ok := w.History.Latest(); ok && latest.Spin > w.SpinCount {
		w.SpinCount = latest.Spin
	}

	w.Settings = settings
	w.Rotation = rotation
	w.Phase = PhaseIdle
	w.Winner = nil
	w.spinRoster = nil
	w.touch()
}

// GetParticipant returns a participant by ID
func (w *Wheel) GetParticipant(id string) (*Participant, error) {
	i := w.indexOf(id)
	if i < 0 {
		return nil, ErrParticipantNotFound
	}
	return w.Participants[i], nil
}

func (w *Wheel) indexOf(id string) int {
	for i, p := range w.Participants {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// State returns the current wheel state for broadcasting
func (w *Wheel) State() *WheelState {
	var winner *Participant
	if w.Winner != nil {
		cp := *w.Winner
		winner = &cp
	}

	return &WheelState{
		WheelID:      w.ID,
		Phase:        w.Phase,
		Participants: Copy(w.Participants),
		History:      append(make(History, 0, len(w.History)), w.History...),
		Settings:     w.Settings,
		Rotation:     w.Rotation,
		Winner:       winner,
		SpinCount:    w.SpinCount,
		CanSpin:      w.CanSpin(),
	}
}
