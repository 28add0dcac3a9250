package domain

import "time"

// EventType represents the type of wheel event
type EventType string

const (
	EventParticipantsUpdated EventType = "PARTICIPANTS_UPDATED"
	EventSettingsUpdated     EventType = "SETTINGS_UPDATED"
	EventSpinStarted         EventType = "SPIN_STARTED"
	EventTick                EventType = "TICK"
	EventFinalApproach       EventType = "FINAL_APPROACH"
	EventSpinResolved        EventType = "SPIN_RESOLVED"
	EventResultAcknowledged  EventType = "RESULT_ACKNOWLEDGED"
	EventAudioCue            EventType = "AUDIO_CUE"
	EventWheelReset          EventType = "WHEEL_RESET"
)

// WheelEvent represents something that happened on a wheel
type WheelEvent struct {
	Type      EventType   `json:"type"`
	WheelID   string      `json:"wheelId"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent creates a new wheel event
func NewEvent(eventType EventType, wheelID string, payload interface{}) *WheelEvent {
	return &WheelEvent{
		Type:      eventType,
		WheelID:   wheelID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Payload types for different events

// WheelState is the full client view of a wheel
type WheelState struct {
	WheelID      string        `json:"wheelId"`
	Phase        SpinPhase     `json:"phase"`
	Participants []Participant `json:"participants"`
	History      History       `json:"history"`
	Settings     Settings      `json:"settings"`
	Rotation     float64       `json:"rotation"`
	Winner       *Participant  `json:"winner,omitempty"`
	SpinCount    int           `json:"spinCount"`
	CanSpin      bool          `json:"canSpin"`
	Spin         *SpinPayload  `json:"spin,omitempty"` // set while spinning
}

// ParticipantsPayload is sent when the roster changes
type ParticipantsPayload struct {
	Participants []Participant `json:"participants"`
	CanSpin      bool          `json:"canSpin"`
}

// SettingsPayload is sent when settings change
type SettingsPayload struct {
	Settings Settings `json:"settings"`
}

// SpinPayload describes a running spin so clients can animate it locally.
// Rotation is the target the presentation transform eases toward.
type SpinPayload struct {
	Epoch         uint64        `json:"epoch"`
	Rotation      float64       `json:"rotation"`
	StartRotation float64       `json:"startRotation"`
	IsSpinning    bool          `json:"isSpinning"`
	StartTime     time.Time     `json:"startTime"`
	DurationMs    int64         `json:"durationMs"`
	Participants  []Participant `json:"participants"`
}

// TickPayload is sent when the pointer crosses a slice boundary
type TickPayload struct {
	Epoch     uint64  `json:"epoch"`
	TickIndex int     `json:"tickIndex"`
	Rotation  float64 `json:"rotation"`
}

// FinalApproachPayload is sent when the spin enters its final approach
type FinalApproachPayload struct {
	Epoch uint64 `json:"epoch"`
}

// SpinResolvedPayload is sent once per spin with the winner
type SpinResolvedPayload struct {
	Epoch       uint64      `json:"epoch"`
	WinnerID    string      `json:"winnerId"`
	Winner      Participant `json:"winner"`
	WinnerIndex int         `json:"winnerIndex"`
	Rotation    float64     `json:"rotation"`
	IsSpinning  bool        `json:"isSpinning"`
	Message     string      `json:"message"`
	History     History     `json:"history"`
}

// ResultAcknowledgedPayload is sent when the shown winner is dismissed
type ResultAcknowledgedPayload struct {
	Winner       *Participant  `json:"winner,omitempty"`
	Eliminated   bool          `json:"eliminated"`
	Participants []Participant `json:"participants"`
	CanSpin      bool          `json:"canSpin"`
}

// AudioCuePayload tells clients which sound to play
type AudioCuePayload struct {
	Cue string `json:"cue"`
}

// ErrorPayload is sent when an error occurs
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
