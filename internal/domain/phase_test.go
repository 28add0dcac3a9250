package domain_test

import (
	"testing"

	"github.com/D371L/asmodeus/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestSpinPhase_CanTransitionTo(t *testing.T) {
	assert.True(t, domain.PhaseIdle.CanTransitionTo(domain.PhaseSpinning))
	assert.True(t, domain.PhaseSpinning.CanTransitionTo(domain.PhaseResolved))
	assert.True(t, domain.PhaseResolved.CanTransitionTo(domain.PhaseIdle))

	assert.False(t, domain.PhaseIdle.CanTransitionTo(domain.PhaseResolved))
	assert.False(t, domain.PhaseResolved.CanTransitionTo(domain.PhaseSpinning))
	assert.False(t, domain.SpinPhase("BOGUS").CanTransitionTo(domain.PhaseIdle))
}

func TestHistory_Push(t *testing.T) {
	var h domain.History
	for i := 1; i <= 3; i++ {
		h = h.Push(domain.HistoryEntry{Spin: i}, 2)
	}

	assert.Len(t, h, 2)
	assert.Equal(t, 3, h[0].Spin)
	assert.Equal(t, 2, h[1].Spin)

	latest, ok := h.Latest()
	assert.True(t, ok)
	assert.Equal(t, 3, latest.Spin)
}

func TestSettings_Apply(t *testing.T) {
	s := domain.DefaultSettings()
	assert.True(t, s.SoundEnabled)
	assert.False(t, s.EliminationMode)
	assert.True(t, s.DemoMode)

	on := true
	got := s.Apply(domain.SettingsPatch{EliminationMode: &on})
	assert.True(t, got.EliminationMode)
	assert.True(t, got.SoundEnabled)
	assert.True(t, domain.SettingsPatch{}.IsEmpty())
}
