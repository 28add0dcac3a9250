package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/D371L/asmodeus/internal/app"
	"github.com/D371L/asmodeus/internal/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Size of the send channel buffer
	sendBufferSize = 256
)

// Client represents a WebSocket client connection
type Client struct {
	conn     *websocket.Conn
	session  *app.WheelSession
	clientID string
	send     chan []byte
	done     chan struct{}
	logger   *slog.Logger
	mu       sync.Mutex
	closed   bool
}

// NewClient creates a new WebSocket client
func NewClient(conn *websocket.Conn, session *app.WheelSession, clientID string, logger *slog.Logger) *Client {
	return &Client{
		conn:     conn,
		session:  session,
		clientID: clientID,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
		logger:   logger,
	}
}

// GetClientID returns the ID of this client
func (c *Client) GetClientID() string {
	return c.clientID
}

// Send implements app.ClientConnection interface
func (c *Client) Send(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	select {
	case c.send <- data:
		return nil
	default:
		// Buffer full, message dropped
		c.logger.Warn("send buffer full, message dropped", "clientId", c.clientID)
		return nil
	}
}

// Close implements app.ClientConnection interface
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	close(c.done)
	return c.conn.Close()
}

// Run starts the client's read and write pumps
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// readPump pumps messages from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		c.session.UnregisterClient(c.clientID, c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error", "error", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the send channel to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One JSON document per frame; ticks arrive often and clients
			// parse each frame on its own
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming message from the client
func (c *Client) handleMessage(data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError(ErrCodeInvalidMessage, "Invalid message format")
		return
	}

	switch msg.Type {
	case MsgAddParticipant:
		c.handleAddParticipant(msg.Payload)
	case MsgRemoveParticipant:
		c.handleRemoveParticipant(msg.Payload)
	case MsgReorderParticipants:
		c.handleReorderParticipants(msg.Payload)
	case MsgAddPreset:
		if _, err := c.session.AddPreset(); err != nil {
			c.sendDomainError(err)
		}
	case MsgReset:
		if err := c.session.Reset(); err != nil {
			c.sendDomainError(err)
		}
	case MsgUpdateSettings:
		c.handleUpdateSettings(msg.Payload)
	case MsgSpin:
		// An unavailable spin is silently ignored
		c.session.Spin()
	case MsgAcknowledge:
		if err := c.session.Acknowledge(); err != nil {
			c.sendDomainError(err)
		}
	case MsgTransformFinished:
		c.handleTransformFinished(msg.Payload)
	case MsgSync:
		c.Send(NewServerMessage(MsgState, c.session.GetState()))
	case MsgPing:
		c.sendPong()
	default:
		c.sendError(ErrCodeInvalidMessage, "Unknown message type")
	}
}

// handleAddParticipant handles an add_participant message
func (c *Client) handleAddParticipant(payload interface{}) {
	payloadMap, ok := payload.(map[string]interface{})
	if !ok {
		c.sendError(ErrCodeInvalidMessage, "Invalid payload")
		return
	}

	name, ok := payloadMap["name"].(string)
	if !ok {
		c.sendError(ErrCodeInvalidMessage, "Name is required")
		return
	}

	if _, err := c.session.AddParticipant(name); err != nil {
		c.sendDomainError(err)
	}
}

// handleRemoveParticipant handles a remove_participant message
func (c *Client) handleRemoveParticipant(payload interface{}) {
	payloadMap, ok := payload.(map[string]interface{})
	if !ok {
		c.sendError(ErrCodeInvalidMessage, "Invalid payload")
		return
	}

	participantID, ok := payloadMap["participantId"].(string)
	if !ok || participantID == "" {
		c.sendError(ErrCodeInvalidMessage, "Participant ID is required")
		return
	}

	if err := c.session.RemoveParticipant(participantID); err != nil {
		c.sendDomainError(err)
	}
}

// handleReorderParticipants handles a reorder_participants message
func (c *Client) handleReorderParticipants(payload interface{}) {
	payloadMap, ok := payload.(map[string]interface{})
	if !ok {
		c.sendError(ErrCodeInvalidMessage, "Invalid payload")
		return
	}

	from, okFrom := intField(payloadMap, "from")
	to, okTo := intField(payloadMap, "to")
	if !okFrom || !okTo {
		c.sendError(ErrCodeInvalidMessage, "from and to must be whole numbers")
		return
	}

	if err := c.session.ReorderParticipants(from, to); err != nil {
		c.sendDomainError(err)
	}
}

// handleUpdateSettings handles an update_settings message
func (c *Client) handleUpdateSettings(payload interface{}) {
	payloadMap, ok := payload.(map[string]interface{})
	if !ok {
		c.sendError(ErrCodeInvalidMessage, "Invalid payload")
		return
	}

	var patch domain.SettingsPatch
	for key, dst := range map[string]**bool{
		"soundEnabled":    &patch.SoundEnabled,
		"eliminationMode": &patch.EliminationMode,
		"demoMode":        &patch.DemoMode,
	} {
		raw, present := payloadMap[key]
		if !present {
			continue
		}
		b, ok := raw.(bool)
		if !ok {
			c.sendError(ErrCodeInvalidMessage, key+" must be a boolean")
			return
		}
		*dst = &b
	}

	if patch.IsEmpty() {
		c.sendError(ErrCodeInvalidMessage, "No settings to update")
		return
	}

	c.session.UpdateSettings(patch)
}

// handleTransformFinished handles a transform_finished message
func (c *Client) handleTransformFinished(payload interface{}) {
	var epoch uint64
	if payloadMap, ok := payload.(map[string]interface{}); ok {
		if n, ok := intField(payloadMap, "epoch"); ok && n >= 0 {
			epoch = uint64(n)
		}
	}
	c.session.TransformFinished(c.clientID, epoch)
}

// intField reads a whole number from a decoded JSON object
func intField(m map[string]interface{}, key string) (int, bool) {
	f, ok := m[key].(float64)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// sendDomainError maps a domain error onto a client error code
func (c *Client) sendDomainError(err error) {
	switch {
	case errors.Is(err, domain.ErrDuplicateName):
		c.sendError(ErrCodeDuplicateName, "A participant with this name already exists")
	case errors.Is(err, domain.ErrEmptyName), errors.Is(err, domain.ErrNameTooLong):
		c.sendError(ErrCodeInvalidName, err.Error())
	case errors.Is(err, domain.ErrWheelFull):
		c.sendError(ErrCodeWheelFull, "The wheel is full")
	case errors.Is(err, domain.ErrParticipantNotFound):
		c.sendError(ErrCodeParticipantNotFound, "Participant not found")
	case errors.Is(err, domain.ErrSpinInProgress):
		c.sendError(ErrCodeSpinInProgress, "The wheel is spinning")
	case errors.Is(err, domain.ErrInvalidPhase), errors.Is(err, domain.ErrInvalidIndex):
		c.sendError(ErrCodeInvalidAction, err.Error())
	default:
		c.logger.Error("unexpected error handling message", "clientId", c.clientID, "error", err)
		c.sendError(ErrCodeInternalError, "Internal error")
	}
}

// sendConnected sends the connected message to the client
func (c *Client) sendConnected() {
	payload := &ConnectedPayload{
		ClientID: c.clientID,
		WheelID:  c.session.GetWheelID(),
		State:    c.session.GetState(),
	}

	msg := NewServerMessage(MsgConnected, payload)
	c.Send(msg)
}

// sendError sends an error message to the client
func (c *Client) sendError(code, message string) {
	payload := &ErrorPayload{
		Code:    code,
		Message: message,
	}

	msg := NewServerMessage(MsgError, payload)
	c.Send(msg)
}

// sendPong sends a pong message in response to ping
func (c *Client) sendPong() {
	msg := NewServerMessage(MsgPong, nil)
	c.Send(msg)
}
