package app

import (
	"github.com/D371L/asmodeus/internal/domain"
	"github.com/D371L/asmodeus/internal/spin"
)

// audioBridge turns engine audio cues into AUDIO_CUE events. Muting is
// decided here, so the engine behaves the same with sound on or off.
// Runs with the session lock held.
type audioBridge struct {
	s *WheelSession
}

func (a audioBridge) Signal(cue spin.Cue) {
	if !a.s.wheel.Settings.SoundEnabled {
		return
	}
	a.s.queueEvent(domain.NewEvent(domain.EventAudioCue, a.s.wheel.ID, &domain.AudioCuePayload{
		Cue: string(cue),
	}))
}
