package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/D371L/asmodeus/internal/app"
	"github.com/D371L/asmodeus/internal/clock"
	"github.com/D371L/asmodeus/internal/config"
	"github.com/D371L/asmodeus/internal/domain"
	"github.com/D371L/asmodeus/internal/storage"
)

type constRNG float64

func (c constRNG) Float64() float64 { return float64(c) }

type rig struct {
	hub    *app.WheelHub
	server *httptest.Server

	mu     sync.Mutex
	clocks []*clock.Manual
}

func newRig(t *testing.T) *rig {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := &rig{}
	r.hub = app.NewWheelHub(config.Default(), storage.NewRepository(storage.NewMemoryStore(), logger), logger,
		app.WithClockFactory(func(l sync.Locker) clock.Clock {
			c := clock.NewManual(time.Unix(0, 0), l)
			r.mu.Lock()
			r.clocks = append(r.clocks, c)
			r.mu.Unlock()
			return c
		}),
		app.WithRandomSource(constRNG(0.4)),
	)
	r.server = httptest.NewServer(NewHandler(r.hub, logger))
	t.Cleanup(func() {
		r.server.Close()
		r.hub.Close(context.Background())
	})
	return r
}

func (r *rig) lastClock() *clock.Manual {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clocks[len(r.clocks)-1]
}

func (r *rig) newWheel(t *testing.T, patch *domain.SettingsPatch) string {
	t.Helper()
	session, err := r.hub.CreateWheel(context.Background(), patch)
	require.NoError(t, err)
	return session.GetWheelID()
}

func (r *rig) url(query string) string {
	return "ws" + strings.TrimPrefix(r.server.URL, "http") + "/?" + query
}

type testConn struct {
	t    *testing.T
	conn *websocket.Conn
}

type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (r *rig) dial(t *testing.T, query string) *testConn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(r.url(query), nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return &testConn{t: t, conn: conn}
}

func (c *testConn) send(msgType MessageType, payload interface{}) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(&ClientMessage{Type: msgType, Payload: payload}))
}

// next reads until a message of the given type arrives
func (c *testConn) next(msgType string) inbound {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg inbound
		require.NoError(c.t, c.conn.ReadJSON(&msg), "waiting for %s", msgType)
		if msg.Type == msgType {
			return msg
		}
	}
}

func (c *testConn) nextError() ErrorPayload {
	c.t.Helper()
	var p ErrorPayload
	require.NoError(c.t, json.Unmarshal(c.next(string(MsgError)).Payload, &p))
	return p
}

func TestHandler_RejectsBadRequests(t *testing.T) {
	r := newRig(t)

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"missing wheel id", "", http.StatusBadRequest},
		{"unknown wheel", "wheelId=NOPE42", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(r.url(tt.query), nil)
			require.Error(t, err)
			require.NotNil(t, resp)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestHandler_Connected(t *testing.T) {
	r := newRig(t)
	wheelID := r.newWheel(t, nil)

	c := r.dial(t, "wheelId="+strings.ToLower(wheelID)+"&clientId=viewer-1")
	var connected ConnectedPayload
	require.NoError(t, json.Unmarshal(c.next(string(MsgConnected)).Payload, &connected))

	assert.Equal(t, "viewer-1", connected.ClientID)
	assert.Equal(t, wheelID, connected.WheelID)
	require.NotNil(t, connected.State)
	assert.Len(t, connected.State.Participants, len(domain.DemoRoster))

	c.send(MsgPing, nil)
	c.next(string(MsgPong))

	c.send(MsgSync, nil)
	var state domain.WheelState
	require.NoError(t, json.Unmarshal(c.next(string(MsgState)).Payload, &state))
	assert.Equal(t, domain.PhaseIdle, state.Phase)
}

func TestHandler_RosterEdits(t *testing.T) {
	r := newRig(t)
	off := false
	wheelID := r.newWheel(t, &domain.SettingsPatch{DemoMode: &off})

	c := r.dial(t, "wheelId="+wheelID)
	c.next(string(MsgConnected))

	c.send(MsgAddParticipant, map[string]string{"name": "Belial"})
	var updated domain.ParticipantsPayload
	require.NoError(t, json.Unmarshal(c.next(string(domain.EventParticipantsUpdated)).Payload, &updated))
	require.Len(t, updated.Participants, 1)
	assert.Equal(t, "Belial", updated.Participants[0].Name)
	assert.False(t, updated.CanSpin)

	t.Run("duplicate name", func(t *testing.T) {
		c.send(MsgAddParticipant, map[string]string{"name": "  belial "})
		assert.Equal(t, ErrCodeDuplicateName, c.nextError().Code)
	})

	t.Run("blank name", func(t *testing.T) {
		c.send(MsgAddParticipant, map[string]string{"name": "   "})
		assert.Equal(t, ErrCodeInvalidName, c.nextError().Code)
	})

	t.Run("unknown participant", func(t *testing.T) {
		c.send(MsgRemoveParticipant, map[string]string{"participantId": "ghost"})
		assert.Equal(t, ErrCodeParticipantNotFound, c.nextError().Code)
	})

	t.Run("fractional index", func(t *testing.T) {
		c.send(MsgReorderParticipants, map[string]float64{"from": 0.5, "to": 0})
		assert.Equal(t, ErrCodeInvalidMessage, c.nextError().Code)
	})

	t.Run("index out of range", func(t *testing.T) {
		c.send(MsgReorderParticipants, map[string]int{"from": 0, "to": 7})
		assert.Equal(t, ErrCodeInvalidAction, c.nextError().Code)
	})

	t.Run("remove", func(t *testing.T) {
		c.send(MsgRemoveParticipant, map[string]string{"participantId": updated.Participants[0].ID})
		var after domain.ParticipantsPayload
		require.NoError(t, json.Unmarshal(c.next(string(domain.EventParticipantsUpdated)).Payload, &after))
		assert.Empty(t, after.Participants)
	})
}

func TestHandler_UpdateSettings(t *testing.T) {
	r := newRig(t)
	wheelID := r.newWheel(t, nil)

	c := r.dial(t, "wheelId="+wheelID)
	c.next(string(MsgConnected))

	c.send(MsgUpdateSettings, map[string]interface{}{"soundEnabled": "yes"})
	assert.Equal(t, ErrCodeInvalidMessage, c.nextError().Code)

	c.send(MsgUpdateSettings, map[string]interface{}{})
	assert.Equal(t, ErrCodeInvalidMessage, c.nextError().Code)

	c.send(MsgUpdateSettings, map[string]interface{}{"eliminationMode": true})
	var got domain.SettingsPayload
	require.NoError(t, json.Unmarshal(c.next(string(domain.EventSettingsUpdated)).Payload, &got))
	assert.Equal(t, domain.Settings{SoundEnabled: true, EliminationMode: true, DemoMode: true}, got.Settings)
}

func TestHandler_SpinAndAcknowledge(t *testing.T) {
	r := newRig(t)
	off := false
	on := true
	wheelID := r.newWheel(t, &domain.SettingsPatch{SoundEnabled: &off, EliminationMode: &on})

	c := r.dial(t, "wheelId="+wheelID)
	c.next(string(MsgConnected))

	c.send(MsgAcknowledge, nil)
	assert.Equal(t, ErrCodeInvalidAction, c.nextError().Code, "nothing to acknowledge yet")

	c.send(MsgSpin, nil)
	var started domain.SpinPayload
	require.NoError(t, json.Unmarshal(c.next(string(domain.EventSpinStarted)).Payload, &started))
	assert.True(t, started.IsSpinning)
	assert.Len(t, started.Participants, len(domain.DemoRoster))

	c.send(MsgAddParticipant, map[string]string{"name": "Latecomer"})
	assert.Equal(t, ErrCodeSpinInProgress, c.nextError().Code)

	r.lastClock().RunUntilIdle(16*time.Millisecond, 2000)

	var resolved domain.SpinResolvedPayload
	require.NoError(t, json.Unmarshal(c.next(string(domain.EventSpinResolved)).Payload, &resolved))
	assert.Equal(t, started.Epoch, resolved.Epoch)
	assert.Equal(t, resolved.Winner.ID, resolved.WinnerID)
	assert.NotEmpty(t, resolved.Message)
	require.Len(t, resolved.History, 1)

	c.send(MsgTransformFinished, map[string]uint64{"epoch": resolved.Epoch})

	c.send(MsgAcknowledge, nil)
	var ack domain.ResultAcknowledgedPayload
	require.NoError(t, json.Unmarshal(c.next(string(domain.EventResultAcknowledged)).Payload, &ack))
	assert.True(t, ack.Eliminated)
	assert.Len(t, ack.Participants, len(domain.DemoRoster)-1)
	for _, p := range ack.Participants {
		assert.NotEqual(t, resolved.WinnerID, p.ID)
	}
}

func TestHandler_UnknownMessage(t *testing.T) {
	r := newRig(t)
	wheelID := r.newWheel(t, nil)

	c := r.dial(t, "wheelId="+wheelID)
	c.next(string(MsgConnected))

	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Equal(t, ErrCodeInvalidMessage, c.nextError().Code)

	c.send("dance", nil)
	assert.Equal(t, ErrCodeInvalidMessage, c.nextError().Code)
}

func TestHandler_ReconnectReplacesConnection(t *testing.T) {
	r := newRig(t)
	wheelID := r.newWheel(t, nil)
	session, err := r.hub.GetSession(wheelID)
	require.NoError(t, err)

	first := r.dial(t, "wheelId="+wheelID+"&clientId=same")
	first.next(string(MsgConnected))

	second := r.dial(t, "wheelId="+wheelID+"&clientId=same")
	second.next(string(MsgConnected))

	// The first connection is closed by the server
	require.NoError(t, first.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		if _, _, err := first.conn.ReadMessage(); err != nil {
			break
		}
	}

	assert.Equal(t, 1, session.GetClientCount())
	second.send(MsgPing, nil)
	second.next(string(MsgPong))
}
