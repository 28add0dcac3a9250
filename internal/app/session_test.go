package app

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/D371L/asmodeus/internal/clock"
	"github.com/D371L/asmodeus/internal/domain"
	"github.com/D371L/asmodeus/internal/spin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const frame = 16 * time.Millisecond

type fixedRNG float64

func (f fixedRNG) Float64() float64 { return float64(f) }

// fakeClient records every event it is sent
type fakeClient struct {
	id     string
	mu     sync.Mutex
	events []*domain.WheelEvent
	closed bool
}

func (c *fakeClient) Send(message interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := message.(*domain.WheelEvent); ok {
		c.events = append(c.events, e)
	}
	return nil
}

func (c *fakeClient) GetClientID() string { return c.id }

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeClient) types() []domain.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.EventType, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Type)
	}
	return out
}

func (c *fakeClient) count(t domain.EventType) int {
	n := 0
	for _, got := range c.types() {
		if got == t {
			n++
		}
	}
	return n
}

func (c *fakeClient) last(t domain.EventType) *domain.WheelEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].Type == t {
			return c.events[i]
		}
	}
	return nil
}

type testSession struct {
	*WheelSession
	clock  *clock.Manual
	client *fakeClient
}

func newTestSession(t *testing.T, settings domain.Settings, names ...string) *testSession {
	t.Helper()

	wheel := domain.NewWheel("TEST01", domain.DefaultLimits(), settings)
	for _, n := range names {
		_, err := wheel.AddParticipant(n)
		require.NoError(t, err)
	}

	var manual *clock.Manual
	s := NewWheelSession(wheel, SessionOptions{
		Spin: spin.DefaultConfig(),
		NewClock: func(l sync.Locker) clock.Clock {
			manual = clock.NewManual(time.Unix(0, 0), l)
			return manual
		},
		RNG: fixedRNG(0.5),
	}, nil)
	t.Cleanup(s.Close)

	client := &fakeClient{id: "client-1"}
	s.RegisterClient(client.id, client)

	return &testSession{WheelSession: s, clock: manual, client: client}
}

func quiet() domain.Settings {
	return domain.Settings{SoundEnabled: false}
}

func TestWheelSession_SpinToResolution(t *testing.T) {
	ts := newTestSession(t, quiet(), "A", "B", "C")

	require.True(t, ts.Spin())
	assert.Equal(t, domain.PhaseSpinning, ts.GetPhase())

	state := ts.GetState()
	require.NotNil(t, state.Spin)
	assert.Equal(t, 3060.0, state.Spin.Rotation, "0 + 8 turns + floor(0.5*360)")
	assert.Equal(t, int64(10000), state.Spin.DurationMs)

	played := ts.clock.RunUntilIdle(frame, 2000)
	assert.Equal(t, 625, played)

	assert.Equal(t, domain.PhaseResolved, ts.GetPhase())
	history := ts.GetHistory()
	require.Len(t, history, 1)
	assert.Equal(t, "B", history[0].Participant.Name)

	assert.Eventually(t, func() bool {
		return ts.client.count(domain.EventSpinResolved) == 1
	}, time.Second, 5*time.Millisecond)

	resolved := ts.client.last(domain.EventSpinResolved).Payload.(*domain.SpinResolvedPayload)
	assert.Equal(t, "B", resolved.Winner.Name)
	assert.Equal(t, 1, resolved.WinnerIndex)
	assert.Equal(t, 3060.0, resolved.Rotation)
	assert.False(t, resolved.IsSpinning)
	assert.Contains(t, VictoryMessages, resolved.Message)

	assert.Equal(t, 1, ts.client.count(domain.EventSpinStarted))
	assert.Equal(t, 1, ts.client.count(domain.EventFinalApproach))
	assert.Positive(t, ts.client.count(domain.EventTick))
	assert.Zero(t, ts.client.count(domain.EventAudioCue), "sound is off")
}

func TestWheelSession_SpinGuards(t *testing.T) {
	t.Run("fewer than two participants", func(t *testing.T) {
		ts := newTestSession(t, quiet(), "A")

		assert.False(t, ts.Spin())
		assert.Equal(t, domain.PhaseIdle, ts.GetPhase())
		assert.Zero(t, ts.clock.Pending())
	})

	t.Run("while spinning", func(t *testing.T) {
		ts := newTestSession(t, quiet(), "A", "B")
		require.True(t, ts.Spin())
		target := ts.GetState().Spin.Rotation

		assert.False(t, ts.Spin())
		assert.Equal(t, target, ts.GetState().Spin.Rotation)
	})

	t.Run("while a result is shown", func(t *testing.T) {
		ts := newTestSession(t, quiet(), "A", "B")
		require.True(t, ts.Spin())
		ts.clock.RunUntilIdle(frame, 2000)

		assert.False(t, ts.Spin())
		assert.Equal(t, domain.PhaseResolved, ts.GetPhase())
	})

	t.Run("roster is frozen while spinning", func(t *testing.T) {
		ts := newTestSession(t, quiet(), "A", "B")
		require.True(t, ts.Spin())

		_, err := ts.AddParticipant("C")
		assert.ErrorIs(t, err, domain.ErrSpinInProgress)
		assert.ErrorIs(t, ts.Reset(), domain.ErrSpinInProgress)
	})
}

func TestWheelSession_EliminationEndToEnd(t *testing.T) {
	ts := newTestSession(t, domain.Settings{EliminationMode: true}, "A", "B", "C")

	require.True(t, ts.Spin())
	ts.clock.RunUntilIdle(frame, 2000)
	require.NoError(t, ts.Acknowledge())

	state := ts.GetState()
	assert.Equal(t, domain.PhaseIdle, state.Phase)
	names := []string{}
	for _, p := range state.Participants {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"A", "C"}, names)
	require.Len(t, state.History, 1)
	assert.Equal(t, "B", state.History[0].Participant.Name)

	assert.Eventually(t, func() bool {
		return ts.client.count(domain.EventResultAcknowledged) == 1
	}, time.Second, 5*time.Millisecond)
	ack := ts.client.last(domain.EventResultAcknowledged).Payload.(*domain.ResultAcknowledgedPayload)
	assert.True(t, ack.Eliminated)
	assert.Equal(t, "B", ack.Winner.Name)
}

func TestWheelSession_NextSpinStartsFromResolvedRotation(t *testing.T) {
	ts := newTestSession(t, quiet(), "A", "B", "C")

	require.True(t, ts.Spin())
	ts.clock.RunUntilIdle(frame, 2000)
	require.NoError(t, ts.Acknowledge())

	require.True(t, ts.Spin())
	sp := ts.GetState().Spin
	assert.Equal(t, 3060.0, sp.StartRotation)
	assert.Equal(t, 3060.0+3060.0, sp.Rotation)
}

func TestWheelSession_AudioCues(t *testing.T) {
	ts := newTestSession(t, domain.Settings{SoundEnabled: true}, "A", "B", "C", "D")

	require.True(t, ts.Spin())
	ts.clock.RunUntilIdle(frame, 2000)

	assert.Eventually(t, func() bool {
		e := ts.client.last(domain.EventAudioCue)
		return e != nil && e.Payload.(*domain.AudioCuePayload).Cue == string(spin.CueWon)
	}, time.Second, 5*time.Millisecond)

	cues := map[string]int{}
	ts.client.mu.Lock()
	for _, e := range ts.client.events {
		if e.Type == domain.EventAudioCue {
			cues[e.Payload.(*domain.AudioCuePayload).Cue]++
		}
	}
	ticks := 0
	for _, e := range ts.client.events {
		if e.Type == domain.EventTick {
			ticks++
		}
	}
	ts.client.mu.Unlock()

	assert.Equal(t, 1, cues[string(spin.CueSpinStarted)])
	assert.Equal(t, 1, cues[string(spin.CueWon)])
	assert.Equal(t, ticks, cues[string(spin.CueTick)])
}

func TestWheelSession_TickPayloadMatchesIndex(t *testing.T) {
	ts := newTestSession(t, quiet(), "A", "B", "C")

	require.True(t, ts.Spin())
	ts.clock.RunUntilIdle(frame, 2000)

	assert.Eventually(t, func() bool {
		return ts.client.count(domain.EventSpinResolved) == 1
	}, time.Second, 5*time.Millisecond)

	ts.client.mu.Lock()
	defer ts.client.mu.Unlock()
	segment := spin.SegmentSize(3)
	ticks := 0
	for _, e := range ts.client.events {
		if e.Type != domain.EventTick {
			continue
		}
		p := e.Payload.(*domain.TickPayload)
		assert.Equal(t, p.TickIndex, int(math.Floor(p.Rotation/segment)), "tick %d", p.TickIndex)
		ticks++
	}
	assert.Positive(t, ticks)
}

func TestWheelSession_MuteMidSpinKeepsEngineRunning(t *testing.T) {
	ts := newTestSession(t, domain.Settings{SoundEnabled: true}, "A", "B")

	require.True(t, ts.Spin())
	ts.clock.RunFrames(10, frame)
	off := false
	ts.UpdateSettings(domain.SettingsPatch{SoundEnabled: &off})
	ts.clock.RunUntilIdle(frame, 2000)

	assert.Equal(t, domain.PhaseResolved, ts.GetPhase())
	assert.Eventually(t, func() bool {
		return ts.client.count(domain.EventSettingsUpdated) == 1
	}, time.Second, 5*time.Millisecond)

	ts.client.mu.Lock()
	defer ts.client.mu.Unlock()
	for _, e := range ts.client.events {
		if e.Type == domain.EventAudioCue {
			assert.NotEqual(t, string(spin.CueWon), e.Payload.(*domain.AudioCuePayload).Cue)
		}
	}
}

func TestWheelSession_CloseAbandonsSpin(t *testing.T) {
	ts := newTestSession(t, quiet(), "A", "B")
	require.True(t, ts.Spin())
	ts.clock.RunFrames(5, frame)

	ts.Close()
	ts.clock.Advance(20 * time.Second)

	assert.Equal(t, domain.PhaseIdle, ts.GetPhase())
	assert.Empty(t, ts.GetHistory())
	ts.client.mu.Lock()
	assert.True(t, ts.client.closed)
	ts.client.mu.Unlock()
}

func TestWheelSession_ParticipantCommands(t *testing.T) {
	ts := newTestSession(t, quiet(), "A", "B")

	p, err := ts.AddParticipant("C")
	require.NoError(t, err)

	_, err = ts.AddParticipant("c")
	assert.ErrorIs(t, err, domain.ErrDuplicateName)

	require.NoError(t, ts.ReorderParticipants(2, 0))
	assert.Equal(t, "C", ts.GetState().Participants[0].Name)

	require.NoError(t, ts.RemoveParticipant(p.ID))
	assert.Equal(t, 2, ts.GetParticipantCount())

	added, err := ts.AddPreset()
	require.NoError(t, err)
	assert.Equal(t, len(domain.DemoRoster), added)

	assert.Eventually(t, func() bool {
		return ts.client.count(domain.EventParticipantsUpdated) == 4
	}, time.Second, 5*time.Millisecond)
}

func TestWheelSession_Persistence(t *testing.T) {
	ts := newTestSession(t, quiet(), "A", "B")

	snap, version := ts.Snapshot()
	assert.False(t, ts.IsDirty(), "setup happened before the session existed")
	assert.Len(t, snap.Participants, 2)

	_, err := ts.AddParticipant("C")
	require.NoError(t, err)
	assert.True(t, ts.IsDirty())

	snap, version = ts.Snapshot()
	_, err = ts.AddParticipant("D")
	require.NoError(t, err)

	ts.MarkClean(version)
	assert.True(t, ts.IsDirty(), "change after the snapshot is still unsaved")
	assert.Len(t, snap.Participants, 3)

	_, version = ts.Snapshot()
	ts.MarkClean(version)
	assert.False(t, ts.IsDirty())
}

func TestWheelSession_TransformFinishedDoesNotAffectResolution(t *testing.T) {
	ts := newTestSession(t, quiet(), "A", "B")
	require.True(t, ts.Spin())

	ts.TransformFinished("client-1", 1)
	assert.Equal(t, domain.PhaseSpinning, ts.GetPhase())

	ts.clock.RunUntilIdle(frame, 2000)
	ts.TransformFinished("client-1", 1)
	assert.Equal(t, domain.PhaseResolved, ts.GetPhase())
}

type seqRNG struct {
	values []float64
	i      int
}

func (r *seqRNG) Float64() float64 {
	v := r.values[r.i%len(r.values)]
	r.i++
	return v
}

func TestMessagePicker_NeverRepeats(t *testing.T) {
	p := newMessagePicker(VictoryMessages, &seqRNG{values: []float64{0, 0, 0.3, 0.3, 0.99, 0.99, 0}})

	prev := p.Pick()
	for i := 0; i < 20; i++ {
		next := p.Pick()
		assert.NotEqual(t, prev, next)
		assert.Contains(t, VictoryMessages, next)
		prev = next
	}
}

func TestMessagePicker_Small(t *testing.T) {
	assert.Equal(t, "", newMessagePicker(nil, fixedRNG(0)).Pick())

	one := newMessagePicker([]string{"only"}, fixedRNG(0))
	assert.Equal(t, "only", one.Pick())
	assert.Equal(t, "only", one.Pick())
}

func TestWheelSession_ClientRegistry(t *testing.T) {
	ts := newTestSession(t, quiet(), "A", "B")
	assert.Equal(t, 1, ts.GetClientCount())

	replacement := &fakeClient{id: ts.client.id}
	ts.RegisterClient(replacement.id, replacement)
	assert.Equal(t, 1, ts.GetClientCount())
	ts.client.mu.Lock()
	assert.True(t, ts.client.closed, "the old connection is closed")
	ts.client.mu.Unlock()

	ts.UnregisterClient(ts.client.id, ts.client)
	assert.Equal(t, 1, ts.GetClientCount(), "a stale connection cannot evict its replacement")

	ts.UnregisterClient(replacement.id, replacement)
	assert.Zero(t, ts.GetClientCount())
}
